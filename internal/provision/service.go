package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/eventmirror/pretix-bridge/internal/config"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	webhookdomain "github.com/eventmirror/pretix-bridge/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Pretix *pretix.Client
	Log    *zap.Logger
}

// Service checks the pretix account is usable as a sync target and keeps the
// organizer-level webhook subscription pointed at this deployment.
type Service struct {
	cfg    config.Config
	pretix *pretix.Client
	log    *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		cfg:    p.Config,
		pretix: p.Pretix,
		log:    p.Log.Named("provision.service"),
	}
}

// ValidateTemplateEvent verifies the configured template event has the shape
// cloning relies on: an event series with exactly one sub-event, exactly one
// quota for it, and that quota covering exactly one product.
func (s *Service) ValidateTemplateEvent(ctx context.Context) error {
	templateSlug := s.cfg.Pretix.TemplateEventSlug

	events, err := s.pretix.GetEvents(ctx)
	if err != nil {
		return err
	}
	found := false
	for _, ev := range events.Results {
		if ev.Slug == templateSlug {
			found = true
			break
		}
	}
	if !found {
		return pretixdomain.NewValidation("validate_template",
			fmt.Sprintf("template event %q not found in organizer %q", templateSlug, s.pretix.OrganizerSlug()))
	}

	event, err := s.pretix.GetEvent(ctx, templateSlug)
	if err != nil {
		return err
	}
	if !event.HasSubevents {
		return pretixdomain.NewValidation("validate_template",
			fmt.Sprintf("template event %q is not an event series", templateSlug))
	}

	subs, err := s.pretix.GetSubEvents(ctx, templateSlug)
	if err != nil {
		return err
	}
	if len(subs.Results) != 1 {
		return pretixdomain.NewValidation("validate_template",
			fmt.Sprintf("template event %q must have exactly one sub-event, found %d", templateSlug, len(subs.Results)))
	}

	quotas, err := s.pretix.GetQuotas(ctx, templateSlug, pretix.QuotaFilter{SubEvent: &subs.Results[0].ID})
	if err != nil {
		return err
	}
	if len(quotas.Results) != 1 {
		return pretixdomain.NewValidation("validate_template",
			fmt.Sprintf("template event %q must have exactly one quota for its sub-event, found %d", templateSlug, len(quotas.Results)))
	}
	if len(quotas.Results[0].Items) != 1 {
		return pretixdomain.NewValidation("validate_template",
			fmt.Sprintf("template event %q quota must cover exactly one product, found %d", templateSlug, len(quotas.Results[0].Items)))
	}

	return nil
}

// EnsureWebhook registers this deployment's webhook endpoint with the
// organizer, updating an existing subscription with the same target in place.
func (s *Service) EnsureWebhook(ctx context.Context) (*pretixdomain.Webhook, error) {
	target := fmt.Sprintf("%s/webhook/%s",
		strings.TrimRight(s.cfg.PublicBaseURL, "/"),
		s.pretix.OrganizerSlug(),
	)
	req := pretixdomain.WebhookRequest{
		Enabled:     true,
		TargetURL:   target,
		AllEvents:   true,
		ActionTypes: webhookdomain.AllActionTypes(),
	}

	existing, err := s.pretix.GetWebhooks(ctx)
	if err != nil {
		return nil, err
	}
	for _, wh := range existing.Results {
		if wh.TargetURL != target {
			continue
		}
		updated, err := s.pretix.UpdateWebhook(ctx, wh.ID, req)
		if err != nil {
			return nil, err
		}
		s.log.Info("webhook subscription updated",
			zap.Int64("webhook_id", updated.ID),
			zap.String("target_url", target),
		)
		return &updated, nil
	}

	created, err := s.pretix.CreateWebhook(ctx, req)
	if err != nil {
		return nil, err
	}
	s.log.Info("webhook subscription created",
		zap.Int64("webhook_id", created.ID),
		zap.String("target_url", target),
	)
	return &created, nil
}
