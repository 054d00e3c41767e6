package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/eventmirror/pretix-bridge/internal/event/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LocalEvent, error) {
	var event domain.LocalEvent
	err := db.WithContext(ctx).
		Preload("DateItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position asc, id asc")
		}).
		First(&event, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repo) UpdateAvailabilitySummary(ctx context.Context, db *gorm.DB, id snowflake.ID, summary datatypes.JSON) error {
	return db.WithContext(ctx).
		Model(&domain.LocalEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"availability_summary": summary,
			"updated_at":           time.Now().UTC(),
		}).Error
}
