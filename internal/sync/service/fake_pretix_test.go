package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/eventmirror/pretix-bridge/internal/config"
	"github.com/eventmirror/pretix-bridge/internal/pretix"
	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"go.uber.org/zap"
)

// fakePretix is an in-memory pretix API double covering the endpoints the
// synchronizer touches.
type fakePretix struct {
	mu sync.Mutex

	events map[string]*fakeEvent
	nextID int64

	subEventCreates int
	eventClones     int
}

type fakeEvent struct {
	event     pretixdomain.Event
	items     []pretixdomain.Item
	subEvents map[int64]pretixdomain.SubEvent
	quotas    map[int64]pretixdomain.Quota
}

// newFakePretix seeds a template event with one product, one sub-event and
// one quota covering that product.
func newFakePretix(t *testing.T) (*fakePretix, *httptest.Server, *pretix.Client) {
	t.Helper()

	size := 50
	templateSub := int64(900)
	f := &fakePretix{
		nextID: 1000,
		events: map[string]*fakeEvent{
			"template": {
				event: pretixdomain.Event{
					Slug:         "template",
					Name:         pretixdomain.MultiLingualString{"en": "Template"},
					HasSubevents: true,
					Currency:     "DKK",
				},
				items: []pretixdomain.Item{
					{ID: 100, Name: pretixdomain.MultiLingualString{"en": "Ticket"}, Active: true},
				},
				subEvents: map[int64]pretixdomain.SubEvent{
					templateSub: {
						ID:                  templateSub,
						Name:                pretixdomain.MultiLingualString{"en": "Template date"},
						Active:              true,
						SeatCategoryMapping: map[string]string{"Stalls": "General"},
						MetaData:            map[string]string{"theme": "template"},
					},
				},
				quotas: map[int64]pretixdomain.Quota{
					500: {ID: 500, Name: "Template quota", Size: &size, Items: []int64{100}, SubEvent: &templateSub},
				},
			},
		},
	}

	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	client := pretix.New(config.PretixConfig{
		URL:               srv.URL,
		APIToken:          "test-token",
		OrganizerSlug:     "acme",
		TemplateEventSlug: "template",
		Currency:          "DKK",
	}, zap.NewNop(), nil)

	return f, srv, client
}

func (f *fakePretix) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		events := make([]pretixdomain.Event, 0, len(f.events))
		for _, ev := range f.events {
			events = append(events, ev.event)
		}
		writeList(w, events)
	})

	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{event}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		writeJSON(w, ev.event)
	})

	mux.HandleFunc("POST /api/v1/organizers/{org}/events/{event}/clone/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		source, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		var req pretixdomain.EventRequest
		json.NewDecoder(r.Body).Decode(&req)

		clone := &fakeEvent{
			event: pretixdomain.Event{
				Slug:     req.Slug,
				Name:     req.Name,
				Currency: source.event.Currency,
				DateFrom: req.DateFrom,
				Location: req.Location,
			},
			items:     append([]pretixdomain.Item(nil), source.items...),
			subEvents: map[int64]pretixdomain.SubEvent{},
			quotas:    map[int64]pretixdomain.Quota{},
		}
		if req.HasSubevents != nil {
			clone.event.HasSubevents = *req.HasSubevents
		}
		if req.IsPublic != nil {
			clone.event.IsPublic = *req.IsPublic
		}
		f.events[req.Slug] = clone
		f.eventClones++
		writeJSON(w, clone.event)
	})

	mux.HandleFunc("PATCH /api/v1/organizers/{org}/events/{event}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		var req pretixdomain.EventRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Name != nil {
			ev.event.Name = req.Name
		}
		if req.DateFrom != nil {
			ev.event.DateFrom = req.DateFrom
		}
		if req.Location != nil {
			ev.event.Location = req.Location
		}
		if req.Live != nil {
			ev.event.Live = *req.Live
		}
		if req.IsPublic != nil {
			ev.event.IsPublic = *req.IsPublic
		}
		writeJSON(w, ev.event)
	})

	mux.HandleFunc("DELETE /api/v1/organizers/{org}/events/{event}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.events[r.PathValue("event")]; !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		delete(f.events, r.PathValue("event"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{event}/items/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		writeList(w, ev.items)
	})

	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{event}/subevents/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		subs := make([]pretixdomain.SubEvent, 0, len(ev.subEvents))
		for _, se := range ev.subEvents {
			subs = append(subs, se)
		}
		writeList(w, subs)
	})

	mux.HandleFunc("POST /api/v1/organizers/{org}/events/{event}/subevents/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		se, bad := decodeSubEvent(r)
		if bad {
			http.Error(w, `{"detail":"Invalid payload."}`, http.StatusBadRequest)
			return
		}
		f.nextID++
		se.ID = f.nextID
		ev.subEvents[se.ID] = se
		f.subEventCreates++
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, se)
	})

	mux.HandleFunc("PATCH /api/v1/organizers/{org}/events/{event}/subevents/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if _, ok := ev.subEvents[id]; !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		se, bad := decodeSubEvent(r)
		if bad {
			http.Error(w, `{"detail":"Invalid payload."}`, http.StatusBadRequest)
			return
		}
		se.ID = id
		ev.subEvents[id] = se
		writeJSON(w, se)
	})

	mux.HandleFunc("DELETE /api/v1/organizers/{org}/events/{event}/subevents/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		delete(ev.subEvents, id)
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/v1/organizers/{org}/events/{event}/quotas/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		withAvailability := r.URL.Query().Get("with_availability") == "true"
		var subEvent *int64
		if raw := r.URL.Query().Get("subevent"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			subEvent = &id
		}

		quotas := make([]pretixdomain.Quota, 0, len(ev.quotas))
		for _, q := range ev.quotas {
			if subEvent != nil && (q.SubEvent == nil || *q.SubEvent != *subEvent) {
				continue
			}
			if withAvailability {
				available := true
				n := 0
				if q.Size != nil {
					n = *q.Size
				}
				q.Available = &available
				q.AvailableNumber = &n
			}
			quotas = append(quotas, q)
		}
		writeList(w, quotas)
	})

	mux.HandleFunc("POST /api/v1/organizers/{org}/events/{event}/quotas/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		var req pretixdomain.QuotaRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.nextID++
		q := pretixdomain.Quota{
			ID:       f.nextID,
			Name:     req.Name,
			Size:     req.Size,
			Items:    req.Items,
			SubEvent: req.SubEvent,
		}
		ev.quotas[q.ID] = q
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, q)
	})

	mux.HandleFunc("PATCH /api/v1/organizers/{org}/events/{event}/quotas/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		ev, ok := f.events[r.PathValue("event")]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
		q, ok := ev.quotas[id]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		var patch pretixdomain.QuotaPatch
		json.NewDecoder(r.Body).Decode(&patch)
		if patch.Size != nil {
			q.Size = patch.Size
		}
		ev.quotas[id] = q
		writeJSON(w, q)
	})

	return mux
}

// decodeSubEvent enforces the payload rules pretix enforces: meta_data and
// seat_category_mapping must be JSON objects, and both must be present.
func decodeSubEvent(r *http.Request) (pretixdomain.SubEvent, bool) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return pretixdomain.SubEvent{}, true
	}
	for _, key := range []string{"meta_data", "seat_category_mapping"} {
		v, ok := raw[key]
		if !ok || len(v) == 0 || v[0] != '{' {
			return pretixdomain.SubEvent{}, true
		}
	}

	encoded, _ := json.Marshal(raw)
	var se pretixdomain.SubEvent
	if err := json.Unmarshal(encoded, &se); err != nil {
		return pretixdomain.SubEvent{}, true
	}
	return se, false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeList[T any](w http.ResponseWriter, results []T) {
	writeJSON(w, pretixdomain.List[T]{Count: len(results), Results: results})
}
