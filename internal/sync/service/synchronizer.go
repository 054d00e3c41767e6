package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/eventmirror/pretix-bridge/internal/config"
	eventdomain "github.com/eventmirror/pretix-bridge/internal/event/domain"
	mappingdomain "github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	"github.com/eventmirror/pretix-bridge/internal/observability/metrics"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"github.com/eventmirror/pretix-bridge/internal/sync/domain"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Config   config.Config
	Events   eventdomain.Repository
	Mappings mappingdomain.Store
	Pretix   *pretix.Client
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// Synchronizer mirrors a local event onto pretix: the event itself on first
// sync by cloning the template event, afterwards by updating in place, then
// its date items as sub-events. Runs synchronously in the caller's request;
// concurrent syncs of the same event are not serialized.
type Synchronizer struct {
	db         *gorm.DB
	cfg        config.Config
	events     eventdomain.Repository
	mappings   mappingdomain.Store
	pretix     *pretix.Client
	reconciler *Reconciler
	log        *zap.Logger
	metrics    *metrics.Metrics
}

func New(p Params) *Synchronizer {
	return &Synchronizer{
		db:         p.DB,
		cfg:        p.Config,
		events:     p.Events,
		mappings:   p.Mappings,
		pretix:     p.Pretix,
		reconciler: NewReconciler(p.Pretix, p.Mappings, p.Log, p.Config.Pretix.DefaultLocale),
		log:        p.Log.Named("sync.service"),
		metrics:    p.Metrics,
	}
}

// Sync drives the full create-or-update flow for one local event. The event
// mapping is persisted before sub-event reconciliation so a partial failure
// never loses the remote slug; re-running the sync converges.
func (s *Synchronizer) Sync(ctx context.Context, eventID snowflake.ID) (*domain.SyncResult, error) {
	result, err := s.sync(ctx, eventID)
	if s.metrics != nil {
		status := "error"
		if err == nil {
			status = string(result.Status)
		}
		s.metrics.SyncRuns.WithLabelValues(status).Inc()
	}
	return result, err
}

func (s *Synchronizer) sync(ctx context.Context, eventID snowflake.ID) (*domain.SyncResult, error) {
	local, err := s.events.FindByID(ctx, s.db, eventID)
	if err != nil {
		return nil, err
	}
	if local == nil {
		return nil, pretixdomain.NewNotFound("sync", fmt.Sprintf("event %d not found", eventID))
	}

	dateFrom := earliestStart(local.DateItems)
	if dateFrom == nil {
		return nil, pretixdomain.NewValidation("sync", "event has no start date")
	}

	templateSlug := local.TemplateEventSlug
	if templateSlug == "" {
		templateSlug = s.cfg.Pretix.TemplateEventSlug
	}
	organizer := local.OrganizerSlug
	if organizer == "" {
		organizer = s.pretix.OrganizerSlug()
	}

	stored, err := s.mappings.GetEvent(ctx, eventID, true)
	if err != nil {
		return nil, err
	}

	req := s.eventRequest(local, dateFrom)

	var (
		remote pretixdomain.Event
		status domain.SyncStatus
	)
	if stored == nil {
		// Clone copies settings, products and quotas from the template but
		// not has_subevents, so the request forces it on.
		req.Slug = slug.Make(fmt.Sprintf("%s-%d", local.Slug, local.ID))
		req.HasSubevents = boolPtr(true)
		req.Live = boolPtr(false)

		remote, err = s.pretix.CloneEvent(ctx, templateSlug, req)
		status = domain.StatusCreated
	} else {
		remote, err = s.pretix.UpdateEvent(ctx, stored.PretixEventSlug, req)
		status = domain.StatusUpdated
	}
	if err != nil {
		return nil, err
	}

	eventSlug := remote.Slug
	if eventSlug == "" && stored != nil {
		eventSlug = stored.PretixEventSlug
	}
	shopURL := fmt.Sprintf("%s/%s/%s/", s.cfg.Pretix.URL, organizer, eventSlug)

	record, err := s.mappings.UpsertEvent(ctx, eventID, organizer, eventSlug, mappingdomain.EventData{
		TemplateEventSlug: templateSlug,
		PretixURL:         shopURL,
		Event:             &remote,
	})
	if err != nil {
		return nil, err
	}

	subResults, err := s.reconciler.Reconcile(ctx, local, eventSlug, record.Data.TemplateEventSlug)
	if err != nil {
		return nil, err
	}

	// Publication state flips only after every date item reconciled, so an
	// event never goes live half-mirrored.
	remote, err = s.pretix.UpdateEvent(ctx, eventSlug, pretixdomain.EventRequest{Live: boolPtr(local.Live)})
	if err != nil {
		return nil, err
	}

	if _, err := s.mappings.UpsertEvent(ctx, eventID, organizer, eventSlug, mappingdomain.EventData{
		Event: &remote,
	}); err != nil {
		return nil, err
	}

	s.log.Info("event synchronized",
		zap.Int64("event_id", int64(eventID)),
		zap.String("pretix_event_slug", eventSlug),
		zap.String("status", string(status)),
		zap.Int("subevents", len(subResults)),
	)

	return &domain.SyncResult{
		Status:          status,
		PretixEventSlug: eventSlug,
		PretixURL:       record.Data.PretixURL,
		Live:            remote.Live,
		SubEvents:       subResults,
	}, nil
}

// Delete removes the remote event and forgets the mapping. The local event
// itself is untouched.
func (s *Synchronizer) Delete(ctx context.Context, eventID snowflake.ID) error {
	stored, err := s.mappings.GetEvent(ctx, eventID, true)
	if err != nil {
		return err
	}
	if stored == nil {
		return pretixdomain.NewNotFound("delete", fmt.Sprintf("no mapping for event %d", eventID))
	}

	if err := s.pretix.DeleteEvent(ctx, stored.PretixEventSlug); err != nil {
		return err
	}
	if err := s.mappings.DeleteEvent(ctx, eventID); err != nil {
		return err
	}

	s.log.Info("remote event deleted",
		zap.Int64("event_id", int64(eventID)),
		zap.String("pretix_event_slug", stored.PretixEventSlug),
	)
	return nil
}

func (s *Synchronizer) eventRequest(local *eventdomain.LocalEvent, dateFrom *time.Time) pretixdomain.EventRequest {
	locale := s.cfg.Pretix.DefaultLocale
	if locale == "" {
		locale = "en"
	}
	req := pretixdomain.EventRequest{
		Name:     pretixdomain.MultiLingualString{locale: local.Title},
		Currency: s.cfg.Pretix.Currency,
		DateFrom: dateFrom,
		// Visibility follows the local publication state, like the final
		// live flip does.
		IsPublic: boolPtr(local.Live),
	}
	if local.Location != "" {
		req.Location = pretixdomain.MultiLingualString{locale: local.Location}
	}
	return req
}

func earliestStart(items []eventdomain.DateItem) *time.Time {
	var earliest *time.Time
	for i := range items {
		start := items[i].StartAt
		if start == nil {
			continue
		}
		if earliest == nil || start.Before(*earliest) {
			earliest = start
		}
	}
	return earliest
}

func boolPtr(b bool) *bool { return &b }
