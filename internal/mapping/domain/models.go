package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"gorm.io/datatypes"
)

// DateItemField is the owning-field identifier for date item mappings.
// Kept as an explicit column so additional item collections can map
// sub-events without a schema change.
const DateItemField = "date_items"

// EventMapping links a local event to its pretix event. The remote slug
// never changes for the life of the local event.
type EventMapping struct {
	EventID         snowflake.ID   `gorm:"primaryKey;column:event_id"`
	OrganizerSlug   string         `gorm:"not null;index:idx_event_mappings_slugs"`
	PretixEventSlug string         `gorm:"not null;index:idx_event_mappings_slugs"`
	Data            datatypes.JSON `gorm:"not null;default:'{}'"`
	UpdatedAt       time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// SubEventMapping links one date item to its pretix sub-event.
type SubEventMapping struct {
	FieldName        string         `gorm:"primaryKey;size:64"`
	ItemID           snowflake.ID   `gorm:"primaryKey"`
	PretixSubEventID int64          `gorm:"primaryKey;column:pretix_subevent_id;index"`
	Data             datatypes.JSON `gorm:"not null;default:'{}'"`
	UpdatedAt        time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (EventMapping) TableName() string { return "pretix_event_mappings" }

func (SubEventMapping) TableName() string { return "pretix_subevent_mappings" }

const (
	EventDataVersion    = 1
	SubEventDataVersion = 1
)

// EventData is the decoded metadata blob of an event mapping.
type EventData struct {
	Version           int                 `json:"version"`
	PretixURL         string              `json:"pretix_url,omitempty"`
	TemplateEventSlug string              `json:"template_event_slug,omitempty"`
	Event             *pretixdomain.Event `json:"event,omitempty"`
}

// Merge fills gaps in the stored data from incoming. Already-stored
// fields win: the template slug is set once at first sync and must never
// be overwritten by later runs.
func (d EventData) Merge(incoming EventData) EventData {
	out := d
	if out.Version == 0 {
		out.Version = EventDataVersion
	}
	if out.PretixURL == "" {
		out.PretixURL = incoming.PretixURL
	}
	if out.TemplateEventSlug == "" {
		out.TemplateEventSlug = incoming.TemplateEventSlug
	}
	if out.Event == nil {
		out.Event = incoming.Event
	}
	return out
}

// SubEventData is the decoded metadata blob of a sub-event mapping.
// Unlike the event shape it is replaced wholesale on every upsert, so
// availability refreshes take effect.
type SubEventData struct {
	Version      int                    `json:"version"`
	SubEvent     *pretixdomain.SubEvent `json:"subevent,omitempty"`
	Availability []pretixdomain.Quota   `json:"availability,omitempty"`
}

// EventRecord is an event mapping with its metadata decoded.
type EventRecord struct {
	EventID         snowflake.ID
	OrganizerSlug   string
	PretixEventSlug string
	Data            EventData
}

// SubEventRecord is a sub-event mapping with its metadata decoded.
type SubEventRecord struct {
	FieldName        string
	ItemID           snowflake.ID
	PretixSubEventID int64
	Data             SubEventData
}
