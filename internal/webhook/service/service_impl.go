package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eventmirror/pretix-bridge/internal/config"
	eventdomain "github.com/eventmirror/pretix-bridge/internal/event/domain"
	mappingdomain "github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	"github.com/eventmirror/pretix-bridge/internal/observability/metrics"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"github.com/eventmirror/pretix-bridge/internal/providers/email"
	"github.com/eventmirror/pretix-bridge/internal/webhook/domain"
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
	Email    email.Provider
	Log      *zap.Logger
	Metrics  *metrics.Metrics
}

// Service processes pretix webhook deliveries. Only paid and canceled order
// actions trigger work; every other recognized or unknown action is
// acknowledged by echoing the payload so pretix never retries.
type Service struct {
	db       *gorm.DB
	cfg      config.Config
	events   eventdomain.Repository
	mappings mappingdomain.Store
	pretix   *pretix.Client
	email    email.Provider
	log      *zap.Logger
	metrics  *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:       p.DB,
		cfg:      p.Config,
		events:   p.Events,
		mappings: p.Mappings,
		pretix:   p.Pretix,
		email:    p.Email,
		log:      p.Log.Named("webhook.service"),
		metrics:  p.Metrics,
	}
}

// Handle dispatches one delivery. Errors from the order flow propagate so the
// transport layer can answer with the matching status; pretix redelivers.
func (s *Service) Handle(ctx context.Context, payload domain.Payload) (*domain.Result, error) {
	result, err := s.handle(ctx, payload)
	if s.metrics != nil {
		outcome := "ignored"
		switch {
		case err != nil:
			outcome = "error"
		case result.Handled:
			outcome = "handled"
		}
		s.metrics.WebhookDeliveries.WithLabelValues(payload.Action, outcome).Inc()
	}
	return result, err
}

func (s *Service) handle(ctx context.Context, payload domain.Payload) (*domain.Result, error) {
	if payload.Action == "" {
		return nil, pretixdomain.NewValidation("webhook", "missing action")
	}

	action := domain.Action(payload.Action)
	echo := &domain.Result{Action: payload.Action, Payload: payload}

	var templateKey string
	switch action {
	case domain.ActionOrderPaid:
		templateKey = email.TemplateOrderPaid
	case domain.ActionOrderCanceled:
		templateKey = email.TemplateOrderCanceled
	default:
		if !action.Known() {
			s.log.Info("ignoring unknown webhook action", zap.String("action", payload.Action))
		}
		return echo, nil
	}

	handled, err := s.handleOrderUpdated(ctx, payload, templateKey)
	if err != nil {
		return nil, err
	}
	echo.Handled = handled
	return echo, nil
}

// handleOrderUpdated runs the order flow: resolve the mapping, fetch the
// order fresh, notify the event's recipient and refresh cached availability.
func (s *Service) handleOrderUpdated(ctx context.Context, payload domain.Payload, templateKey string) (bool, error) {
	rec, err := s.mappings.FindEventBySlugs(ctx, payload.Organizer, payload.Event)
	if err != nil {
		return false, err
	}
	if rec == nil {
		// Not one of ours. Acknowledge so pretix stops redelivering.
		s.log.Info("webhook for unmapped event",
			zap.String("organizer", payload.Organizer),
			zap.String("event", payload.Event),
		)
		return false, nil
	}

	local, err := s.events.FindByID(ctx, s.db, rec.EventID)
	if err != nil {
		return false, err
	}
	if local == nil {
		s.log.Warn("mapping points at missing local event",
			zap.Int64("event_id", int64(rec.EventID)),
		)
		return false, nil
	}

	order, err := s.pretix.GetOrder(ctx, payload.Organizer, payload.Event, payload.Code)
	if err != nil {
		return false, err
	}

	summary := s.renderOrderSummary(ctx, order)

	if local.RecipientEmail != "" {
		msg := email.OrderMessage{
			EventTitle: local.Title,
			OrderCode:  order.Code,
			OrderEmail: order.Email,
			Summary:    summary,
			ShopURL:    rec.Data.PretixURL,
		}
		if order.Total != 0 {
			msg.Total = s.formatPrice(order.Total)
		}
		subject, body, err := email.Render(templateKey, msg)
		if err != nil {
			s.log.Error("render order notification failed", zap.Error(err))
		} else if err := s.email.Send(ctx, []string{local.RecipientEmail}, subject, body); err != nil {
			// Notification failure must not make pretix redeliver.
			s.log.Error("send order notification failed",
				zap.String("recipient", local.RecipientEmail),
				zap.Error(err),
			)
		}
	}

	if local.SyncAvailability {
		s.refreshAvailability(ctx, local, rec, order)
	}

	return true, nil
}

// renderOrderSummary builds one plain-text block per distinct order line,
// lines grouped by product, sub-event and price, blocks separated by a blank
// line.
func (s *Service) renderOrderSummary(ctx context.Context, order pretixdomain.Order) string {
	type lineKey struct {
		item     int64
		subEvent int64
		price    pretixdomain.Amount
	}
	type line struct {
		key      lineKey
		quantity int
	}

	var lines []*line
	index := map[lineKey]*line{}
	for _, pos := range order.Positions {
		key := lineKey{item: pos.Item, price: pos.Price}
		if pos.SubEvent != nil {
			key.subEvent = *pos.SubEvent
		}
		if existing, ok := index[key]; ok {
			existing.quantity++
			continue
		}
		l := &line{key: key, quantity: 1}
		index[key] = l
		lines = append(lines, l)
	}

	locale := s.locale()
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteString("\n")
		}

		name := fmt.Sprintf("Order line %d", i+1)
		var date string
		var availability *int
		if l.key.subEvent != 0 {
			if rec, err := s.mappings.GetSubEventByRemoteID(ctx, l.key.subEvent); err == nil && rec != nil {
				if se := rec.Data.SubEvent; se != nil {
					if resolved := se.Name.Resolve(locale); resolved != "" {
						name = resolved
					}
					if se.DateFrom != nil {
						date = se.DateFrom.Format("2006-01-02 15:04")
					}
				}
				availability = availableNumber(rec.Data.Availability)
			}
		}

		b.WriteString(name + "\n")
		if date != "" {
			b.WriteString("Date: " + date + "\n")
		}
		fmt.Fprintf(&b, "Quantity: %d\n", l.quantity)
		if availability != nil {
			fmt.Fprintf(&b, "Available: %d\n", *availability)
		}
		if l.key.price != 0 {
			b.WriteString("Price: " + s.formatPrice(l.key.price) + "\n")
		}
	}
	return b.String()
}

// refreshAvailability re-reads quota availability for every sub-event the
// order touches and caches the aggregate on the local event. Best effort: a
// failed refresh logs and moves on.
func (s *Service) refreshAvailability(
	ctx context.Context,
	local *eventdomain.LocalEvent,
	rec *mappingdomain.EventRecord,
	order pretixdomain.Order,
) {
	seen := map[int64]struct{}{}
	summary := map[string]any{}
	if len(local.AvailabilitySummary) > 0 {
		_ = json.Unmarshal(local.AvailabilitySummary, &summary)
	}

	for _, pos := range order.Positions {
		if pos.SubEvent == nil {
			continue
		}
		subEventID := *pos.SubEvent
		if _, ok := seen[subEventID]; ok {
			continue
		}
		seen[subEventID] = struct{}{}

		stored, err := s.mappings.GetSubEventByRemoteID(ctx, subEventID)
		if err != nil || stored == nil {
			continue
		}

		quotas, err := s.pretix.GetQuotas(ctx, rec.PretixEventSlug, pretix.QuotaFilter{
			SubEvent:         &subEventID,
			WithAvailability: true,
		})
		if err != nil {
			s.log.Warn("availability refresh failed",
				zap.Int64("subevent_id", subEventID),
				zap.Error(err),
			)
			continue
		}

		data := stored.Data
		data.Availability = quotas.Results
		if _, err := s.mappings.UpsertSubEvent(ctx, stored.ItemID, subEventID, data); err != nil {
			s.log.Warn("persist availability failed",
				zap.Int64("subevent_id", subEventID),
				zap.Error(err),
			)
			continue
		}

		entry := map[string]any{}
		if n := availableNumber(quotas.Results); n != nil {
			entry["available_number"] = *n
			entry["available"] = *n > 0
		}
		summary[fmt.Sprintf("%d", subEventID)] = entry
	}

	encoded, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.events.UpdateAvailabilitySummary(ctx, s.db, local.ID, encoded); err != nil {
		s.log.Warn("persist availability summary failed", zap.Error(err))
	}
}

// availableNumber reduces a sub-event's quotas to the binding constraint:
// the smallest available number across them.
func availableNumber(quotas []pretixdomain.Quota) *int {
	var min *int
	for _, q := range quotas {
		if q.AvailableNumber == nil {
			continue
		}
		if min == nil || *q.AvailableNumber < *min {
			n := *q.AvailableNumber
			min = &n
		}
	}
	return min
}

func (s *Service) formatPrice(a pretixdomain.Amount) string {
	return fmt.Sprintf("%.2f %s", float64(a), s.cfg.Pretix.Currency)
}

func (s *Service) locale() string {
	if s.cfg.Pretix.DefaultLocale != "" {
		return s.cfg.Pretix.DefaultLocale
	}
	return "en"
}
