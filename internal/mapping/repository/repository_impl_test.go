package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) domain.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.EventMapping{}, &domain.SubEventMapping{}))
	return New(Params{DB: db, Log: zap.NewNop()})
}

func TestUpsertEventMergeFavorsStored(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	eventID := snowflake.ID(101)

	first, err := store.UpsertEvent(ctx, eventID, "acme", "event-101", domain.EventData{
		TemplateEventSlug: "template",
		PretixURL:         "https://pretix.example.com/acme/event-101/",
	})
	require.NoError(t, err)
	require.Equal(t, "template", first.Data.TemplateEventSlug)

	// A later run must not overwrite the template slug recorded at first sync.
	second, err := store.UpsertEvent(ctx, eventID, "acme", "event-101", domain.EventData{
		TemplateEventSlug: "other-template",
		Event:             &pretixdomain.Event{Slug: "event-101", Live: true},
	})
	require.NoError(t, err)
	require.Equal(t, "template", second.Data.TemplateEventSlug)
	require.Equal(t, "https://pretix.example.com/acme/event-101/", second.Data.PretixURL)
	require.NotNil(t, second.Data.Event)
	require.True(t, second.Data.Event.Live)

	reloaded, err := store.GetEvent(ctx, eventID, true)
	require.NoError(t, err)
	require.Equal(t, "template", reloaded.Data.TemplateEventSlug)
}

func TestGetEventCacheAndForceRefresh(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.EventMapping{}, &domain.SubEventMapping{}))
	store := New(Params{DB: db, Log: zap.NewNop()})
	eventID := snowflake.ID(202)

	_, err = store.UpsertEvent(ctx, eventID, "acme", "event-202", domain.EventData{TemplateEventSlug: "template"})
	require.NoError(t, err)

	// Mutate the row behind the store's back.
	require.NoError(t, db.Model(&domain.EventMapping{}).
		Where("event_id = ?", eventID).
		Update("pretix_event_slug", "renamed").Error)

	cached, err := store.GetEvent(ctx, eventID, false)
	require.NoError(t, err)
	require.Equal(t, "event-202", cached.PretixEventSlug)

	fresh, err := store.GetEvent(ctx, eventID, true)
	require.NoError(t, err)
	require.Equal(t, "renamed", fresh.PretixEventSlug)
}

func TestGetEventMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	rec, err := store.GetEvent(context.Background(), snowflake.ID(999), false)
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestUpsertSubEventReplacesData(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	itemID := snowflake.ID(301)

	avail := []pretixdomain.Quota{{ID: 9, Name: "quota"}}
	_, err := store.UpsertSubEvent(ctx, itemID, 7001, domain.SubEventData{
		SubEvent:     &pretixdomain.SubEvent{ID: 7001},
		Availability: avail,
	})
	require.NoError(t, err)

	// A full replace clears availability when the new data omits it.
	updated, err := store.UpsertSubEvent(ctx, itemID, 7001, domain.SubEventData{
		SubEvent: &pretixdomain.SubEvent{ID: 7001, Active: true},
	})
	require.NoError(t, err)
	require.Nil(t, updated.Data.Availability)
	require.True(t, updated.Data.SubEvent.Active)

	reloaded, err := store.GetSubEvent(ctx, itemID, true)
	require.NoError(t, err)
	require.Nil(t, reloaded.Data.Availability)
	require.True(t, reloaded.Data.SubEvent.Active)
}

func TestPurgeSubEventsNotIn(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, remoteID := range []int64{7001, 7002, 7003} {
		_, err := store.UpsertSubEvent(ctx, snowflake.ID(400+i), remoteID, domain.SubEventData{
			SubEvent: &pretixdomain.SubEvent{ID: remoteID},
		})
		require.NoError(t, err)
	}

	require.NoError(t, store.PurgeSubEventsNotIn(ctx, []int64{7001, 7003}))

	kept, err := store.GetSubEvent(ctx, snowflake.ID(400), true)
	require.NoError(t, err)
	require.NotNil(t, kept)

	purged, err := store.GetSubEvent(ctx, snowflake.ID(401), true)
	require.NoError(t, err)
	require.Nil(t, purged)

	// Purged records must also fall out of the memo cache.
	cachedPurged, err := store.GetSubEvent(ctx, snowflake.ID(401), false)
	require.NoError(t, err)
	require.Nil(t, cachedPurged)
}
