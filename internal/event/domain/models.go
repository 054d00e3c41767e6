package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// LocalEvent is a locally managed event that gets mirrored to pretix.
// The content layer owns these records; the bridge reads them and only
// writes back cached remote state (AvailabilitySummary).
type LocalEvent struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug          string       `gorm:"not null;uniqueIndex" json:"slug"`
	Title         string       `gorm:"not null" json:"title"`
	Location      string       `json:"location,omitempty"`
	OrganizerSlug string       `gorm:"not null;index" json:"organizer_slug"`

	// TemplateEventSlug pins the pretix template event used at first
	// sync. Empty means the configured default applies.
	TemplateEventSlug string `json:"template_event_slug,omitempty"`

	// Live is the desired publication state on pretix.
	Live bool `gorm:"not null;default:false" json:"live"`

	// RecipientEmail receives order notifications for this event.
	RecipientEmail string `json:"recipient_email,omitempty"`

	// SyncAvailability opts the event into availability refresh on
	// order webhooks.
	SyncAvailability bool `gorm:"not null;default:false" json:"sync_availability"`

	// AvailabilitySummary is the aggregate availability cached from the
	// latest refresh. Written by the bridge, read by the content layer.
	AvailabilitySummary datatypes.JSON `json:"availability_summary,omitempty"`

	DateItems []DateItem `gorm:"foreignKey:EventID" json:"date_items"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// DateItem is one date instance of a local event. It maps to at most one
// pretix sub-event.
type DateItem struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	EventID snowflake.ID `gorm:"not null;index" json:"event_id"`

	// Position preserves the content layer's declared ordering.
	Position int `gorm:"not null;default:0" json:"position"`

	StartAt      *time.Time `json:"start_at"`
	PresaleStart *time.Time `json:"presale_start"`
	Capacity     int        `gorm:"not null;default:0" json:"capacity"`
	Price        float64    `gorm:"not null;default:0" json:"price"`
	Free         bool       `gorm:"not null;default:false" json:"free"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LocalEvent) TableName() string { return "local_events" }

func (DateItem) TableName() string { return "date_items" }
