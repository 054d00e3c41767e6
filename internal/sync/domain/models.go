package domain

import "github.com/bwmarrin/snowflake"

// SyncStatus says whether a run created the remote event or updated it.
type SyncStatus string

const (
	StatusCreated SyncStatus = "created"
	StatusUpdated SyncStatus = "updated"
)

// SubEventResult is the outcome of reconciling one date item.
type SubEventResult struct {
	ItemID           snowflake.ID `json:"item_id"`
	PretixSubEventID int64        `json:"pretix_subevent_id"`
	Created          bool         `json:"created"`
}

// SyncResult is the outcome of a full synchronization run.
type SyncResult struct {
	Status          SyncStatus       `json:"status"`
	PretixEventSlug string           `json:"pretix_event_slug"`
	PretixURL       string           `json:"pretix_url"`
	Live            bool             `json:"live"`
	SubEvents       []SubEventResult `json:"sub_events"`
}
