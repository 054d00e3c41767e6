package provision

import (
	"context"

	"github.com/eventmirror/pretix-bridge/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("provision",
	fx.Provide(New),
	fx.Invoke(register),
)

// register validates the remote account and self-registers the webhook at
// startup. Opt-in: deployments without a public URL run with it off.
func register(lc fx.Lifecycle, cfg config.Config, svc *Service) {
	if !cfg.ProvisionOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.ValidateTemplateEvent(ctx); err != nil {
				return err
			}
			_, err := svc.EnsureWebhook(ctx)
			return err
		},
	})
}
