package pretix

import (
	"github.com/eventmirror/pretix-bridge/internal/config"
	"github.com/eventmirror/pretix-bridge/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("pretix.client",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg config.Config, log *zap.Logger, m *metrics.Metrics) *Client {
	return New(cfg.Pretix, log, m)
}
