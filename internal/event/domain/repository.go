package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LocalEvent, error)
	UpdateAvailabilitySummary(ctx context.Context, db *gorm.DB, id snowflake.ID, summary datatypes.JSON) error
}
