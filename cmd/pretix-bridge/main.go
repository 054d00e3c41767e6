package main

import (
	"github.com/eventmirror/pretix-bridge/internal/config"
	"github.com/eventmirror/pretix-bridge/internal/event"
	"github.com/eventmirror/pretix-bridge/internal/mapping"
	"github.com/eventmirror/pretix-bridge/internal/migration"
	"github.com/eventmirror/pretix-bridge/internal/observability"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	"github.com/eventmirror/pretix-bridge/internal/providers/email"
	"github.com/eventmirror/pretix-bridge/internal/provision"
	"github.com/eventmirror/pretix-bridge/internal/server"
	eventsync "github.com/eventmirror/pretix-bridge/internal/sync"
	"github.com/eventmirror/pretix-bridge/internal/webhook"
	"github.com/eventmirror/pretix-bridge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		config.Module,
		observability.Module,
		db.Module,
		migration.Module,
		pretix.Module,
		event.Module,
		mapping.Module,
		email.Module,
		eventsync.Module,
		webhook.Module,
		provision.Module,
		server.Module,
	).Run()
}
