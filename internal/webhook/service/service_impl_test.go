package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/eventmirror/pretix-bridge/internal/config"
	eventdomain "github.com/eventmirror/pretix-bridge/internal/event/domain"
	eventrepository "github.com/eventmirror/pretix-bridge/internal/event/repository"
	mappingdomain "github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	mappingrepository "github.com/eventmirror/pretix-bridge/internal/mapping/repository"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	webhookdomain "github.com/eventmirror/pretix-bridge/internal/webhook/domain"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

type recordingProvider struct {
	sent []sentMail
}

func (p *recordingProvider) Send(ctx context.Context, to []string, subject string, body string) error {
	p.sent = append(p.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type webhookFixture struct {
	db       *gorm.DB
	mappings mappingdomain.Store
	mail     *recordingProvider
	svc      *Service

	order       *pretixdomain.Order
	orderStatus int
	orderCalls  int
	quotaCalls  int
	available   int
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&eventdomain.LocalEvent{},
		&eventdomain.DateItem{},
		&mappingdomain.EventMapping{},
		&mappingdomain.SubEventMapping{},
	))

	f := &webhookFixture{db: db, mail: &recordingProvider{}, orderStatus: http.StatusOK, available: 42}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{event}/orders/{code}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.orderCalls++
		if f.orderStatus != http.StatusOK {
			http.Error(w, `{"detail":"denied"}`, f.orderStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(f.order)
	})
	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{event}/quotas/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.quotaCalls++
		available := true
		size := 100
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pretixdomain.List[pretixdomain.Quota]{
			Count: 1,
			Results: []pretixdomain.Quota{
				{ID: 1, Size: &size, Available: &available, AvailableNumber: &f.available},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := config.Config{
		Pretix: config.PretixConfig{
			URL:           srv.URL,
			OrganizerSlug: "acme",
			Currency:      "DKK",
			DefaultLocale: "en",
		},
	}
	client := pretix.New(cfg.Pretix, zap.NewNop(), nil)
	f.mappings = mappingrepository.New(mappingrepository.Params{DB: db, Log: zap.NewNop()})

	f.svc = New(Params{
		DB:       db,
		Config:   cfg,
		Events:   eventrepository.Provide(),
		Mappings: f.mappings,
		Pretix:   client,
		Email:    f.mail,
		Log:      zap.NewNop(),
	})
	return f
}

// seedMappedEvent stores a local event, its event mapping and one sub-event
// mapping, mirroring the state a completed sync run leaves behind.
func (f *webhookFixture) seedMappedEvent(t *testing.T, syncAvailability bool) {
	t.Helper()
	ctx := context.Background()

	start := time.Date(2026, 10, 1, 19, 0, 0, 0, time.UTC)
	require.NoError(t, f.db.Create(&eventdomain.LocalEvent{
		ID:               snowflake.ID(1),
		Slug:             "jazz-night",
		Title:            "Jazz Night",
		OrganizerSlug:    "acme",
		RecipientEmail:   "booking@example.com",
		SyncAvailability: syncAvailability,
	}).Error)

	_, err := f.mappings.UpsertEvent(ctx, snowflake.ID(1), "acme", "jazz-night-1", mappingdomain.EventData{
		TemplateEventSlug: "template",
		PretixURL:         "https://pretix.example.com/acme/jazz-night-1/",
	})
	require.NoError(t, err)

	_, err = f.mappings.UpsertSubEvent(ctx, snowflake.ID(11), 7001, mappingdomain.SubEventData{
		SubEvent: &pretixdomain.SubEvent{
			ID:       7001,
			Name:     pretixdomain.MultiLingualString{"en": "Jazz Night — Opening"},
			DateFrom: &start,
		},
	})
	require.NoError(t, err)
}

func paidPayload() webhookdomain.Payload {
	return webhookdomain.Payload{
		Organizer: "acme",
		Event:     "jazz-night-1",
		Code:      "ABC12",
		Action:    string(webhookdomain.ActionOrderPaid),
	}
}

func orderWith(positions ...pretixdomain.OrderPosition) *pretixdomain.Order {
	total := pretixdomain.Amount(0)
	for _, p := range positions {
		total += p.Price
	}
	return &pretixdomain.Order{
		Code:      "ABC12",
		Status:    "p",
		Email:     "buyer@example.com",
		Total:     total,
		Positions: positions,
	}
}

func subEventRef(id int64) *int64 { return &id }

func TestPaidOrderSendsOneNotification(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedMappedEvent(t, false)
	f.order = orderWith(
		pretixdomain.OrderPosition{ID: 1, Item: 100, Price: 150, SubEvent: subEventRef(7001)},
		pretixdomain.OrderPosition{ID: 2, Item: 100, Price: 150, SubEvent: subEventRef(7001)},
	)

	result, err := f.svc.Handle(context.Background(), paidPayload())
	require.NoError(t, err)
	require.True(t, result.Handled)

	require.Len(t, f.mail.sent, 1)
	mail := f.mail.sent[0]
	require.Equal(t, []string{"booking@example.com"}, mail.to)
	require.Contains(t, mail.subject, "Jazz Night")
	require.Contains(t, mail.body, "ABC12")
	require.Contains(t, mail.body, "Jazz Night — Opening")
	require.Contains(t, mail.body, "Date: 2026-10-01 19:00")
	require.Contains(t, mail.body, "Quantity: 2")
	require.Contains(t, mail.body, "Price: 150.00 DKK")
}

func TestFreeOrderOmitsPriceLine(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedMappedEvent(t, false)
	f.order = orderWith(
		pretixdomain.OrderPosition{ID: 1, Item: 100, Price: 0, SubEvent: subEventRef(7001)},
	)

	_, err := f.svc.Handle(context.Background(), paidPayload())
	require.NoError(t, err)
	require.Len(t, f.mail.sent, 1)
	require.NotContains(t, f.mail.sent[0].body, "Price:")
}

func TestCheckinActionIsAcknowledgedNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedMappedEvent(t, false)

	payload := paidPayload()
	payload.Action = string(webhookdomain.ActionCheckin)
	result, err := f.svc.Handle(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, result.Handled)
	require.Equal(t, payload, result.Payload)
	require.Empty(t, f.mail.sent)
	require.Zero(t, f.orderCalls)
}

func TestUnknownActionIsAcknowledgedNoOp(t *testing.T) {
	f := newWebhookFixture(t)
	payload := paidPayload()
	payload.Action = "pretix.event.order.teleported"

	result, err := f.svc.Handle(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, result.Handled)
	require.Zero(t, f.orderCalls)
}

func TestOrderChangedVariantsAreNoOps(t *testing.T) {
	f := newWebhookFixture(t)
	payload := paidPayload()
	payload.Action = "pretix.event.order.changed.item"

	result, err := f.svc.Handle(context.Background(), payload)
	require.NoError(t, err)
	require.False(t, result.Handled)
	require.Zero(t, f.orderCalls)
}

func TestUnmappedEventIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	// No mapping seeded.
	result, err := f.svc.Handle(context.Background(), paidPayload())
	require.NoError(t, err)
	require.False(t, result.Handled)
	require.Empty(t, f.mail.sent)
	require.Zero(t, f.orderCalls)
}

func TestOrderFetchErrorPropagatesKindAndStatus(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedMappedEvent(t, false)
	f.orderStatus = http.StatusForbidden

	_, err := f.svc.Handle(context.Background(), paidPayload())
	require.Error(t, err)
	require.Equal(t, pretixdomain.KindRemoteAPI, pretixdomain.KindOf(err))
	require.Equal(t, http.StatusForbidden, pretixdomain.StatusCodeOf(err))
	require.Empty(t, f.mail.sent)
}

func TestMissingActionIsValidationError(t *testing.T) {
	f := newWebhookFixture(t)
	payload := paidPayload()
	payload.Action = ""

	_, err := f.svc.Handle(context.Background(), payload)
	require.Error(t, err)
	require.Equal(t, pretixdomain.KindValidation, pretixdomain.KindOf(err))
}

func TestPaidOrderRefreshesAvailability(t *testing.T) {
	ctx := context.Background()
	f := newWebhookFixture(t)
	f.seedMappedEvent(t, true)
	f.available = 17
	f.order = orderWith(
		pretixdomain.OrderPosition{ID: 1, Item: 100, Price: 150, SubEvent: subEventRef(7001)},
		pretixdomain.OrderPosition{ID: 2, Item: 100, Price: 150, SubEvent: subEventRef(7001)},
	)

	_, err := f.svc.Handle(ctx, paidPayload())
	require.NoError(t, err)

	rec, err := f.mappings.GetSubEventByRemoteID(ctx, 7001)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Data.Availability, 1)
	require.Equal(t, 17, *rec.Data.Availability[0].AvailableNumber)

	var local eventdomain.LocalEvent
	require.NoError(t, f.db.First(&local, "id = ?", 1).Error)
	require.True(t, strings.Contains(string(local.AvailabilitySummary), "7001"))
	require.True(t, strings.Contains(string(local.AvailabilitySummary), "17"))
}

func TestAvailabilityNotRefreshedWhenOptedOut(t *testing.T) {
	f := newWebhookFixture(t)
	f.seedMappedEvent(t, false)
	f.order = orderWith(
		pretixdomain.OrderPosition{ID: 1, Item: 100, Price: 150, SubEvent: subEventRef(7001)},
	)

	_, err := f.svc.Handle(context.Background(), paidPayload())
	require.NoError(t, err)
	require.Zero(t, f.quotaCalls)
}
