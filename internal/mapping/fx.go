package mapping

import (
	"github.com/eventmirror/pretix-bridge/internal/mapping/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("mapping.store",
	fx.Provide(repository.New),
)
