package event

import (
	"github.com/eventmirror/pretix-bridge/internal/event/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("event.store",
	fx.Provide(repository.Provide),
)
