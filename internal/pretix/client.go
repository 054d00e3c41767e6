package pretix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eventmirror/pretix-bridge/internal/config"
	"github.com/eventmirror/pretix-bridge/internal/observability/metrics"
	"github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"go.uber.org/zap"
)

const maxErrorBody = 4 << 10

// Client is a typed wrapper over the pretix REST API, scoped to one
// organizer. Calls report failures once and never retry; the caller
// decides whether to re-invoke.
//
// See https://docs.pretix.eu/en/latest/api/resources/index.html
type Client struct {
	baseURL       string
	apiToken      string
	organizerSlug string

	client  *http.Client
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New builds a client from the pretix account configuration.
func New(cfg config.PretixConfig, log *zap.Logger, m *metrics.Metrics) *Client {
	return &Client{
		baseURL:       strings.TrimRight(cfg.URL, "/"),
		apiToken:      cfg.APIToken,
		organizerSlug: cfg.OrganizerSlug,
		client:        &http.Client{Timeout: 30 * time.Second},
		log:           log.Named("pretix.client"),
		metrics:       m,
	}
}

// OrganizerSlug returns the organizer scope this client operates in.
func (c *Client) OrganizerSlug() string {
	return c.organizerSlug
}

// QuotaFilter narrows quota listings.
type QuotaFilter struct {
	SubEvent         *int64
	WithAvailability bool
}

func (f QuotaFilter) values() url.Values {
	values := url.Values{}
	if f.SubEvent != nil {
		values.Set("subevent", strconv.FormatInt(*f.SubEvent, 10))
	}
	if f.WithAvailability {
		values.Set("with_availability", "true")
	}
	return values
}

func (c *Client) GetEvents(ctx context.Context) (domain.List[domain.Event], error) {
	var out domain.List[domain.Event]
	err := c.doRequest(ctx, "get_events", http.MethodGet, c.orgPath("events/"), nil, nil, &out)
	return out, err
}

func (c *Client) GetEvent(ctx context.Context, eventSlug string) (domain.Event, error) {
	var out domain.Event
	err := c.doRequest(ctx, "get_event", http.MethodGet, c.eventPath(eventSlug, ""), nil, nil, &out)
	return out, err
}

func (c *Client) CreateEvent(ctx context.Context, req domain.EventRequest) (domain.Event, error) {
	var out domain.Event
	err := c.doRequest(ctx, "create_event", http.MethodPost, c.orgPath("events/"), nil, req, &out)
	return out, err
}

// CloneEvent creates a new event by cloning an existing one. Settings,
// items and quotas are copied from the source event; has_subevents is not,
// so the request must set it explicitly.
func (c *Client) CloneEvent(ctx context.Context, sourceEventSlug string, req domain.EventRequest) (domain.Event, error) {
	var out domain.Event
	err := c.doRequest(ctx, "clone_event", http.MethodPost, c.eventPath(sourceEventSlug, "clone/"), nil, req, &out)
	return out, err
}

func (c *Client) UpdateEvent(ctx context.Context, eventSlug string, req domain.EventRequest) (domain.Event, error) {
	var out domain.Event
	err := c.doRequest(ctx, "update_event", http.MethodPatch, c.eventPath(eventSlug, ""), nil, req, &out)
	return out, err
}

func (c *Client) DeleteEvent(ctx context.Context, eventSlug string) error {
	return c.doRequest(ctx, "delete_event", http.MethodDelete, c.eventPath(eventSlug, ""), nil, nil, nil)
}

func (c *Client) GetItems(ctx context.Context, eventSlug string) (domain.List[domain.Item], error) {
	var out domain.List[domain.Item]
	err := c.doRequest(ctx, "get_items", http.MethodGet, c.eventPath(eventSlug, "items/"), nil, nil, &out)
	return out, err
}

func (c *Client) GetQuotas(ctx context.Context, eventSlug string, filter QuotaFilter) (domain.List[domain.Quota], error) {
	var out domain.List[domain.Quota]
	err := c.doRequest(ctx, "get_quotas", http.MethodGet, c.eventPath(eventSlug, "quotas/"), filter.values(), nil, &out)
	return out, err
}

func (c *Client) CreateQuota(ctx context.Context, eventSlug string, req domain.QuotaRequest) (domain.Quota, error) {
	var out domain.Quota
	err := c.doRequest(ctx, "create_quota", http.MethodPost, c.eventPath(eventSlug, "quotas/"), nil, req, &out)
	return out, err
}

func (c *Client) UpdateQuota(ctx context.Context, eventSlug string, quotaID int64, patch domain.QuotaPatch) (domain.Quota, error) {
	var out domain.Quota
	path := c.eventPath(eventSlug, fmt.Sprintf("quotas/%d/", quotaID))
	err := c.doRequest(ctx, "update_quota", http.MethodPatch, path, nil, patch, &out)
	return out, err
}

func (c *Client) GetSubEvents(ctx context.Context, eventSlug string) (domain.List[domain.SubEvent], error) {
	var out domain.List[domain.SubEvent]
	err := c.doRequest(ctx, "get_subevents", http.MethodGet, c.eventPath(eventSlug, "subevents/"), nil, nil, &out)
	return out, err
}

func (c *Client) CreateSubEvent(ctx context.Context, eventSlug string, req domain.SubEventRequest) (domain.SubEvent, error) {
	var out domain.SubEvent
	err := c.doRequest(ctx, "create_subevent", http.MethodPost, c.eventPath(eventSlug, "subevents/"), nil, req, &out)
	return out, err
}

func (c *Client) UpdateSubEvent(ctx context.Context, eventSlug string, subEventID int64, req domain.SubEventRequest) (domain.SubEvent, error) {
	var out domain.SubEvent
	path := c.eventPath(eventSlug, fmt.Sprintf("subevents/%d/", subEventID))
	err := c.doRequest(ctx, "update_subevent", http.MethodPatch, path, nil, req, &out)
	return out, err
}

func (c *Client) DeleteSubEvent(ctx context.Context, eventSlug string, subEventID int64) error {
	path := c.eventPath(eventSlug, fmt.Sprintf("subevents/%d/", subEventID))
	return c.doRequest(ctx, "delete_subevent", http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) GetWebhooks(ctx context.Context) (domain.List[domain.Webhook], error) {
	var out domain.List[domain.Webhook]
	err := c.doRequest(ctx, "get_webhooks", http.MethodGet, c.orgPath("webhooks/"), nil, nil, &out)
	return out, err
}

func (c *Client) CreateWebhook(ctx context.Context, req domain.WebhookRequest) (domain.Webhook, error) {
	var out domain.Webhook
	err := c.doRequest(ctx, "create_webhook", http.MethodPost, c.orgPath("webhooks/"), nil, req, &out)
	return out, err
}

func (c *Client) UpdateWebhook(ctx context.Context, webhookID int64, req domain.WebhookRequest) (domain.Webhook, error) {
	var out domain.Webhook
	path := c.orgPath(fmt.Sprintf("webhooks/%d/", webhookID))
	err := c.doRequest(ctx, "update_webhook", http.MethodPatch, path, nil, req, &out)
	return out, err
}

// GetOrder fetches an order by code. Unlike the other calls this one takes
// the organizer explicitly because webhook payloads carry their own scope.
func (c *Client) GetOrder(ctx context.Context, organizerSlug, eventSlug, code string) (domain.Order, error) {
	var out domain.Order
	path := fmt.Sprintf("organizers/%s/events/%s/orders/%s/", organizerSlug, eventSlug, code)
	err := c.doRequest(ctx, "get_order", http.MethodGet, path, nil, nil, &out)
	return out, err
}

func (c *Client) orgPath(suffix string) string {
	return "organizers/" + c.organizerSlug + "/" + suffix
}

func (c *Client) eventPath(eventSlug, suffix string) string {
	return c.orgPath("events/" + eventSlug + "/" + suffix)
}

func (c *Client) doRequest(
	ctx context.Context,
	op string,
	method string,
	path string,
	query url.Values,
	body any,
	out any,
) error {
	endpoint := c.baseURL + "/api/v1/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return domain.NewValidation(op, "encode request body: "+err.Error())
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return domain.NewTransport(op, err)
	}
	req.Header.Set("Accept", "application/json, text/javascript")
	req.Header.Set("Authorization", "Token "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.count(op, "transport_error")
		c.log.Error("pretix request failed",
			zap.String("operation", op),
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Error(err),
		)
		return domain.NewTransport(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.count(op, "api_error")
		c.log.Error("pretix api error",
			zap.String("operation", op),
			zap.String("method", method),
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return domain.NewRemoteAPI(op, resp.StatusCode, string(raw), "pretix api error")
	}

	c.count(op, "ok")

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewRemoteAPI(op, resp.StatusCode, "", "decode response: "+err.Error())
	}
	return nil
}

func (c *Client) count(op, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.RemoteCalls.WithLabelValues(op, outcome).Inc()
}
