package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Store persists and memoizes local-to-remote identifier links. Reads are
// served from a process-local cache unless forceRefresh is set; the cache
// is never invalidated automatically.
type Store interface {
	// GetEvent returns the event record, or nil when no mapping exists.
	GetEvent(ctx context.Context, eventID snowflake.ID, forceRefresh bool) (*EventRecord, error)

	// FindEventBySlugs resolves a mapping from the remote identifiers
	// carried by webhook payloads. Always reads through to storage.
	FindEventBySlugs(ctx context.Context, organizerSlug, pretixEventSlug string) (*EventRecord, error)

	// UpsertEvent merges data into the stored record (stored fields win)
	// and persists the result.
	UpsertEvent(ctx context.Context, eventID snowflake.ID, organizerSlug, pretixEventSlug string, data EventData) (*EventRecord, error)

	// DeleteEvent forgets the mapping for a local event, typically after
	// the remote event was removed.
	DeleteEvent(ctx context.Context, eventID snowflake.ID) error

	// GetSubEvent returns the record for a date item, or nil when absent.
	GetSubEvent(ctx context.Context, itemID snowflake.ID, forceRefresh bool) (*SubEventRecord, error)

	// GetSubEventByRemoteID resolves a record from a pretix sub-event id,
	// as carried by order positions. Always reads through to storage.
	GetSubEventByRemoteID(ctx context.Context, pretixSubEventID int64) (*SubEventRecord, error)

	// UpsertSubEvent replaces the stored data for a date item.
	UpsertSubEvent(ctx context.Context, itemID snowflake.ID, pretixSubEventID int64, data SubEventData) (*SubEventRecord, error)

	// PurgeSubEventsNotIn removes all sub-event records whose remote id
	// is not in keep. Used for orphan cleanup after reconciliation.
	PurgeSubEventsNotIn(ctx context.Context, keep []int64) error
}
