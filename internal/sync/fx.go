package sync

import (
	"github.com/eventmirror/pretix-bridge/internal/sync/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sync.service",
	fx.Provide(service.New),
)
