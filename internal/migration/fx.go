package migration

import (
	"github.com/eventmirror/pretix-bridge/internal/config"
	eventdomain "github.com/eventmirror/pretix-bridge/internal/event/domain"
	mappingdomain "github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql are dev conveniences; schema follows the models.
			return conn.AutoMigrate(
				&eventdomain.LocalEvent{},
				&eventdomain.DateItem{},
				&mappingdomain.EventMapping{},
				&mappingdomain.SubEventMapping{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
