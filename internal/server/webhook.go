package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	webhookdomain "github.com/eventmirror/pretix-bridge/internal/webhook/domain"
	"github.com/gin-gonic/gin"
)

// RejectWebhookMethod answers non-POST requests on the webhook path. pretix
// always delivers via POST, so anything else is a misconfigured caller.
func (s *Server) RejectWebhookMethod(c *gin.Context) {
	AbortWithError(c, pretixdomain.NewValidation("webhook",
		fmt.Sprintf("method %s not allowed, deliveries must be POST", c.Request.Method)))
}

// HandleWebhook ingests a pretix webhook delivery. The body must be a JSON
// object; anything else is rejected before any remote call happens.
func (s *Server) HandleWebhook(c *gin.Context) {
	organizer := strings.TrimSpace(c.Param("organizerSlug"))

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		AbortWithError(c, pretixdomain.NewValidation("webhook", "empty request body"))
		return
	}

	var payload webhookdomain.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		AbortWithError(c, pretixdomain.NewValidation("webhook", "malformed JSON body"))
		return
	}

	// The path segment is authoritative: pretix is configured to deliver to
	// /webhook/<organizer> and payloads must stay inside that scope.
	payload.Organizer = organizer

	result, err := s.webhookSvc.Handle(c.Request.Context(), payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
