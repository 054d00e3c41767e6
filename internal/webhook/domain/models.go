package domain

import (
	"sort"
	"strings"
)

// Action is a pretix webhook action type.
type Action string

const (
	ActionOrderPlaced                 Action = "pretix.event.order.placed"
	ActionOrderPlacedRequireApproval  Action = "pretix.event.order.placed.require_approval"
	ActionOrderPaid                   Action = "pretix.event.order.paid"
	ActionOrderCanceled               Action = "pretix.event.order.canceled"
	ActionOrderExpired                Action = "pretix.event.order.expired"
	ActionOrderModified               Action = "pretix.event.order.modified"
	ActionOrderContactChanged         Action = "pretix.event.order.contact.changed"
	ActionOrderRefundCreatedExternal  Action = "pretix.event.order.refund.created.externally"
	ActionOrderApproved               Action = "pretix.event.order.approved"
	ActionOrderDenied                 Action = "pretix.event.order.denied"
	ActionCheckin                     Action = "pretix.event.checkin"
	ActionCheckinReverted             Action = "pretix.event.checkin.reverted"

	// actionOrderChangedPrefix covers the pretix.event.order.changed.*
	// family, which pretix extends over time.
	actionOrderChangedPrefix = "pretix.event.order.changed."
)

var knownActions = map[Action]struct{}{
	ActionOrderPlaced:                {},
	ActionOrderPlacedRequireApproval: {},
	ActionOrderPaid:                  {},
	ActionOrderCanceled:              {},
	ActionOrderExpired:               {},
	ActionOrderModified:              {},
	ActionOrderContactChanged:        {},
	ActionOrderRefundCreatedExternal: {},
	ActionOrderApproved:              {},
	ActionOrderDenied:                {},
	ActionCheckin:                    {},
	ActionCheckinReverted:            {},
}

// AllActionTypes lists the concrete action types to subscribe a remote
// webhook to. The order.changed.* family is covered by its base type.
func AllActionTypes() []string {
	types := make([]string, 0, len(knownActions)+1)
	for a := range knownActions {
		types = append(types, string(a))
	}
	types = append(types, "pretix.event.order.changed")
	sort.Strings(types)
	return types
}

// Known reports whether the action belongs to the recognized set. Unknown
// actions are still acknowledged; the caller treats them as no-ops.
func (a Action) Known() bool {
	if _, ok := knownActions[a]; ok {
		return true
	}
	return strings.HasPrefix(string(a), actionOrderChangedPrefix)
}

// Payload is the body of a pretix webhook delivery.
type Payload struct {
	NotificationID int64  `json:"notification_id"`
	Organizer      string `json:"organizer"`
	Event          string `json:"event"`
	Code           string `json:"code"`
	Action         string `json:"action"`
}

// Result acknowledges a delivery. Unhandled actions echo the payload back
// unchanged.
type Result struct {
	Action  string  `json:"action"`
	Handled bool    `json:"handled"`
	Payload Payload `json:"payload"`
}
