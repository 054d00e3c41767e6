package domain

import (
	"strconv"
	"strings"
	"time"
)

// MultiLingualString is pretix's localized string, keyed by locale code.
type MultiLingualString map[string]string

// Resolve returns the value for the preferred locale, falling back to "en"
// and then to any available locale.
func (m MultiLingualString) Resolve(locale string) string {
	if len(m) == 0 {
		return ""
	}
	if v, ok := m[locale]; ok && v != "" {
		return v
	}
	if v, ok := m["en"]; ok && v != "" {
		return v
	}
	for _, v := range m {
		if v != "" {
			return v
		}
	}
	return ""
}

// Amount is a pretix decimal. The API returns decimals as strings
// ("23.00") but accepts plain numbers on write.
type Amount float64

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(a), 'f', 2, 64)), nil
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// List is a paged pretix collection response.
type List[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// Event is a remote pretix event snapshot.
type Event struct {
	Slug         string             `json:"slug"`
	Name         MultiLingualString `json:"name"`
	Live         bool               `json:"live"`
	HasSubevents bool               `json:"has_subevents"`
	Currency     string             `json:"currency"`
	DateFrom     *time.Time         `json:"date_from"`
	DateTo       *time.Time         `json:"date_to"`
	IsPublic     bool               `json:"is_public"`
	Location     MultiLingualString `json:"location"`
}

// EventRequest is the write payload for event create, clone and update.
// Empty fields are omitted so partial updates only touch what they name.
type EventRequest struct {
	Slug         string             `json:"slug,omitempty"`
	Name         MultiLingualString `json:"name,omitempty"`
	Live         *bool              `json:"live,omitempty"`
	HasSubevents *bool              `json:"has_subevents,omitempty"`
	Currency     string             `json:"currency,omitempty"`
	DateFrom     *time.Time         `json:"date_from,omitempty"`
	IsPublic     *bool              `json:"is_public,omitempty"`
	Location     MultiLingualString `json:"location,omitempty"`
}

// ItemPriceOverride overrides one product's price on a sub-event.
type ItemPriceOverride struct {
	Item  int64   `json:"item"`
	Price *Amount `json:"price,omitempty"`
}

// SubEvent is a remote date instance of an event series.
type SubEvent struct {
	ID                  int64               `json:"id"`
	Name                MultiLingualString  `json:"name"`
	Active              bool                `json:"active"`
	IsPublic            bool                `json:"is_public"`
	DateFrom            *time.Time          `json:"date_from"`
	DateTo              *time.Time          `json:"date_to"`
	DateAdmission       *time.Time          `json:"date_admission"`
	PresaleStart        *time.Time          `json:"presale_start"`
	PresaleEnd          *time.Time          `json:"presale_end"`
	Location            MultiLingualString  `json:"location"`
	SeatingPlan         *int64              `json:"seating_plan"`
	SeatCategoryMapping map[string]string   `json:"seat_category_mapping"`
	ItemPriceOverrides  []ItemPriceOverride `json:"item_price_overrides"`
	MetaData            map[string]string   `json:"meta_data"`
}

// SubEventRequest is the write payload for sub-event create and update.
// Nullable fields serialize explicitly: the reconciler nulls out fields
// that are not meaningful per date instance. SeatCategoryMapping and
// MetaData must serialize as JSON objects even when empty; pretix rejects
// scalar or array values there.
type SubEventRequest struct {
	Name                MultiLingualString  `json:"name"`
	Active              bool                `json:"active"`
	IsPublic            bool                `json:"is_public"`
	DateFrom            *time.Time          `json:"date_from"`
	DateTo              *time.Time          `json:"date_to"`
	DateAdmission       *time.Time          `json:"date_admission"`
	PresaleStart        *time.Time          `json:"presale_start"`
	PresaleEnd          *time.Time          `json:"presale_end"`
	Location            MultiLingualString  `json:"location"`
	SeatingPlan         *int64              `json:"seating_plan"`
	SeatCategoryMapping map[string]string   `json:"seat_category_mapping"`
	ItemPriceOverrides  []ItemPriceOverride `json:"item_price_overrides"`
	MetaData            map[string]string   `json:"meta_data"`
}

// SubEventRequestFromSnapshot seeds a write payload from a sub-event
// snapshot, dropping the remote id.
func SubEventRequestFromSnapshot(se SubEvent) SubEventRequest {
	req := SubEventRequest{
		Name:                se.Name,
		Active:              se.Active,
		IsPublic:            se.IsPublic,
		DateFrom:            se.DateFrom,
		DateTo:              se.DateTo,
		DateAdmission:       se.DateAdmission,
		PresaleStart:        se.PresaleStart,
		PresaleEnd:          se.PresaleEnd,
		Location:            se.Location,
		SeatingPlan:         se.SeatingPlan,
		SeatCategoryMapping: se.SeatCategoryMapping,
		ItemPriceOverrides:  append([]ItemPriceOverride(nil), se.ItemPriceOverrides...),
		MetaData:            se.MetaData,
	}
	if req.SeatCategoryMapping == nil {
		req.SeatCategoryMapping = map[string]string{}
	}
	if req.MetaData == nil {
		req.MetaData = map[string]string{}
	}
	return req
}

// Quota is a remote capacity pool. Available and AvailableNumber are only
// populated when the listing was requested with availability.
type Quota struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Size             *int    `json:"size"`
	Items            []int64 `json:"items"`
	Variations       []int64 `json:"variations"`
	SubEvent         *int64  `json:"subevent"`
	CloseWhenSoldOut bool    `json:"close_when_sold_out"`
	Available        *bool   `json:"available,omitempty"`
	AvailableNumber  *int    `json:"available_number,omitempty"`
}

// QuotaRequest is the write payload for quota creation.
type QuotaRequest struct {
	Name             string  `json:"name"`
	Size             *int    `json:"size"`
	Items            []int64 `json:"items"`
	Variations       []int64 `json:"variations"`
	SubEvent         *int64  `json:"subevent"`
	CloseWhenSoldOut bool    `json:"close_when_sold_out"`
}

// QuotaRequestFromSnapshot seeds a creation payload from a quota snapshot,
// dropping the remote id and sub-event reference so the caller retargets it.
func QuotaRequestFromSnapshot(q Quota) QuotaRequest {
	return QuotaRequest{
		Name:             q.Name,
		Size:             q.Size,
		Items:            append([]int64(nil), q.Items...),
		Variations:       append([]int64(nil), q.Variations...),
		CloseWhenSoldOut: q.CloseWhenSoldOut,
	}
}

// QuotaPatch is a partial quota update.
type QuotaPatch struct {
	Size *int `json:"size,omitempty"`
}

// Item is a purchasable product on the remote event.
type Item struct {
	ID           int64              `json:"id"`
	Name         MultiLingualString `json:"name"`
	Active       bool               `json:"active"`
	DefaultPrice Amount             `json:"default_price"`
}

// Webhook is a remote webhook subscription.
type Webhook struct {
	ID          int64    `json:"id"`
	Enabled     bool     `json:"enabled"`
	TargetURL   string   `json:"target_url"`
	AllEvents   bool     `json:"all_events"`
	LimitEvents []string `json:"limit_events"`
	ActionTypes []string `json:"action_types"`
}

// WebhookRequest is the write payload for webhook subscriptions.
type WebhookRequest struct {
	Enabled     bool     `json:"enabled"`
	TargetURL   string   `json:"target_url"`
	AllEvents   bool     `json:"all_events"`
	LimitEvents []string `json:"limit_events"`
	ActionTypes []string `json:"action_types"`
}

// OrderPosition is one purchased line of an order.
type OrderPosition struct {
	ID           int64  `json:"id"`
	Item         int64  `json:"item"`
	Variation    *int64 `json:"variation"`
	Price        Amount `json:"price"`
	SubEvent     *int64 `json:"subevent"`
	AttendeeName string `json:"attendee_name,omitempty"`
}

// Order is a remote order snapshot, fetched fresh on every relevant webhook.
type Order struct {
	Code      string          `json:"code"`
	Status    string          `json:"status"`
	Email     string          `json:"email"`
	Datetime  *time.Time      `json:"datetime"`
	Total     Amount          `json:"total"`
	Positions []OrderPosition `json:"positions"`
}
