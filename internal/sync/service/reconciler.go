package service

import (
	"context"
	"fmt"

	eventdomain "github.com/eventmirror/pretix-bridge/internal/event/domain"
	mappingdomain "github.com/eventmirror/pretix-bridge/internal/mapping/domain"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"github.com/eventmirror/pretix-bridge/internal/sync/domain"
	"go.uber.org/zap"
)

// Reconciler drives each date item of a local event to a matching remote
// sub-event with exactly one quota, then removes remote sub-events that no
// longer correspond to any date item.
type Reconciler struct {
	pretix   *pretix.Client
	mappings mappingdomain.Store
	log      *zap.Logger
	locale   string
}

func NewReconciler(client *pretix.Client, mappings mappingdomain.Store, log *zap.Logger, locale string) *Reconciler {
	if locale == "" {
		locale = "en"
	}
	return &Reconciler{
		pretix:   client,
		mappings: mappings,
		log:      log.Named("sync.reconciler"),
		locale:   locale,
	}
}

// Reconcile processes the event's date items in declared order. Any failure
// aborts the run; items already reconciled keep their persisted mappings.
func (r *Reconciler) Reconcile(
	ctx context.Context,
	local *eventdomain.LocalEvent,
	eventSlug string,
	templateSlug string,
) ([]domain.SubEventResult, error) {
	results := make([]domain.SubEventResult, 0, len(local.DateItems))
	reconciled := make([]int64, 0, len(local.DateItems))

	// Resolved once per run, only when an item actually needs it.
	var product *pretixdomain.Item

	for i := range local.DateItems {
		item := &local.DateItems[i]

		stored, err := r.mappings.GetSubEvent(ctx, item.ID, true)
		if err != nil {
			return nil, err
		}

		req, err := r.buildRequest(ctx, local, item, stored, templateSlug, eventSlug, &product)
		if err != nil {
			return nil, err
		}

		var remote pretixdomain.SubEvent
		created := stored == nil
		if created {
			remote, err = r.pretix.CreateSubEvent(ctx, eventSlug, req)
		} else {
			remote, err = r.pretix.UpdateSubEvent(ctx, eventSlug, stored.PretixSubEventID, req)
		}
		if err != nil {
			return nil, err
		}

		if err := r.ensureQuota(ctx, eventSlug, templateSlug, remote.ID, item.Capacity, &product); err != nil {
			return nil, err
		}

		// Availability is a cache, not an invariant. A failed refresh must
		// not fail the run.
		availability := r.fetchAvailability(ctx, eventSlug, remote.ID)

		if _, err := r.mappings.UpsertSubEvent(ctx, item.ID, remote.ID, mappingdomain.SubEventData{
			SubEvent:     &remote,
			Availability: availability,
		}); err != nil {
			return nil, err
		}

		results = append(results, domain.SubEventResult{
			ItemID:           item.ID,
			PretixSubEventID: remote.ID,
			Created:          created,
		})
		reconciled = append(reconciled, remote.ID)
	}

	if err := r.deleteOrphans(ctx, eventSlug, reconciled); err != nil {
		return nil, err
	}
	if err := r.mappings.PurgeSubEventsNotIn(ctx, reconciled); err != nil {
		return nil, err
	}

	return results, nil
}

// buildRequest seeds the write payload from the stored snapshot when the item
// was synced before, otherwise from the template event's sub-event, then
// overlays the date item's own values.
func (r *Reconciler) buildRequest(
	ctx context.Context,
	local *eventdomain.LocalEvent,
	item *eventdomain.DateItem,
	stored *mappingdomain.SubEventRecord,
	templateSlug string,
	eventSlug string,
	product **pretixdomain.Item,
) (pretixdomain.SubEventRequest, error) {
	var req pretixdomain.SubEventRequest

	if stored != nil && stored.Data.SubEvent != nil {
		req = pretixdomain.SubEventRequestFromSnapshot(*stored.Data.SubEvent)
	} else {
		templateSub, err := r.templateSubEvent(ctx, templateSlug)
		if err != nil {
			return req, err
		}
		req = pretixdomain.SubEventRequestFromSnapshot(templateSub)

		p, err := r.resolveProduct(ctx, eventSlug, product)
		if err != nil {
			return req, err
		}
		req.ItemPriceOverrides = []pretixdomain.ItemPriceOverride{{Item: p.ID}}
	}

	req.Name = pretixdomain.MultiLingualString{r.locale: local.Title}
	req.Active = true
	req.IsPublic = true
	req.DateFrom = item.StartAt
	req.PresaleStart = item.PresaleStart

	// Not meaningful per date instance; cleared explicitly so updates null
	// out whatever the template or a previous run carried.
	req.DateTo = nil
	req.DateAdmission = nil
	req.PresaleEnd = nil
	req.Location = nil
	req.SeatingPlan = nil

	// Metadata is never mirrored; both maps go out as empty objects no
	// matter what the template or stored snapshot carried.
	req.MetaData = map[string]string{}
	req.SeatCategoryMapping = map[string]string{}

	price := pretixdomain.Amount(item.Price)
	if item.Free {
		price = 0
	}
	if len(req.ItemPriceOverrides) == 0 {
		p, err := r.resolveProduct(ctx, eventSlug, product)
		if err != nil {
			return req, err
		}
		req.ItemPriceOverrides = []pretixdomain.ItemPriceOverride{{Item: p.ID}}
	}
	req.ItemPriceOverrides[0].Price = &price

	return req, nil
}

// templateSubEvent fetches the template event's single sub-event, with the
// remote id intentionally not carried into any payload built from it.
func (r *Reconciler) templateSubEvent(ctx context.Context, templateSlug string) (pretixdomain.SubEvent, error) {
	list, err := r.pretix.GetSubEvents(ctx, templateSlug)
	if err != nil {
		return pretixdomain.SubEvent{}, err
	}
	if len(list.Results) == 0 {
		return pretixdomain.SubEvent{}, pretixdomain.NewValidation("template_subevent",
			fmt.Sprintf("template event %q has no sub-events", templateSlug))
	}
	return list.Results[0], nil
}

// resolveProduct returns the event's first product, fetching it once per run.
func (r *Reconciler) resolveProduct(ctx context.Context, eventSlug string, product **pretixdomain.Item) (*pretixdomain.Item, error) {
	if *product != nil {
		return *product, nil
	}
	items, err := r.pretix.GetItems(ctx, eventSlug)
	if err != nil {
		return nil, err
	}
	if len(items.Results) == 0 {
		return nil, pretixdomain.NewValidation("resolve_product",
			fmt.Sprintf("event %q has no products", eventSlug))
	}
	*product = &items.Results[0]
	return *product, nil
}

// ensureQuota guarantees the sub-event has exactly one quota sized to the
// item's capacity. A missing quota is cloned from the template event's quota.
func (r *Reconciler) ensureQuota(
	ctx context.Context,
	eventSlug string,
	templateSlug string,
	subEventID int64,
	capacity int,
	product **pretixdomain.Item,
) error {
	quotas, err := r.pretix.GetQuotas(ctx, eventSlug, pretix.QuotaFilter{SubEvent: &subEventID})
	if err != nil {
		return err
	}

	if len(quotas.Results) == 0 {
		templateSub, err := r.templateSubEvent(ctx, templateSlug)
		if err != nil {
			return err
		}
		templateQuotas, err := r.pretix.GetQuotas(ctx, templateSlug, pretix.QuotaFilter{SubEvent: &templateSub.ID})
		if err != nil {
			return err
		}
		if len(templateQuotas.Results) == 0 {
			return pretixdomain.NewValidation("ensure_quota",
				fmt.Sprintf("template event %q has no quota for its sub-event", templateSlug))
		}

		p, err := r.resolveProduct(ctx, eventSlug, product)
		if err != nil {
			return err
		}

		req := pretixdomain.QuotaRequestFromSnapshot(templateQuotas.Results[0])
		req.SubEvent = &subEventID
		req.Items = []int64{p.ID}
		if _, err := r.pretix.CreateQuota(ctx, eventSlug, req); err != nil {
			return err
		}

		quotas, err = r.pretix.GetQuotas(ctx, eventSlug, pretix.QuotaFilter{SubEvent: &subEventID})
		if err != nil {
			return err
		}
	}

	if len(quotas.Results) != 1 {
		return pretixdomain.NewState("ensure_quota",
			fmt.Sprintf("expected exactly one quota for sub-event %d, found %d", subEventID, len(quotas.Results)))
	}

	size := capacity
	_, err = r.pretix.UpdateQuota(ctx, eventSlug, quotas.Results[0].ID, pretixdomain.QuotaPatch{Size: &size})
	return err
}

func (r *Reconciler) fetchAvailability(ctx context.Context, eventSlug string, subEventID int64) []pretixdomain.Quota {
	quotas, err := r.pretix.GetQuotas(ctx, eventSlug, pretix.QuotaFilter{
		SubEvent:         &subEventID,
		WithAvailability: true,
	})
	if err != nil {
		r.log.Warn("availability refresh failed",
			zap.String("event_slug", eventSlug),
			zap.Int64("subevent_id", subEventID),
			zap.Error(err),
		)
		return nil
	}
	return quotas.Results
}

// deleteOrphans removes remote sub-events that no reconciled date item
// claimed this run.
func (r *Reconciler) deleteOrphans(ctx context.Context, eventSlug string, reconciled []int64) error {
	remote, err := r.pretix.GetSubEvents(ctx, eventSlug)
	if err != nil {
		return err
	}

	keep := make(map[int64]struct{}, len(reconciled))
	for _, id := range reconciled {
		keep[id] = struct{}{}
	}

	for _, se := range remote.Results {
		if _, ok := keep[se.ID]; ok {
			continue
		}
		r.log.Info("deleting orphaned sub-event",
			zap.String("event_slug", eventSlug),
			zap.Int64("subevent_id", se.ID),
		)
		if err := r.pretix.DeleteSubEvent(ctx, eventSlug, se.ID); err != nil {
			return err
		}
	}
	return nil
}
