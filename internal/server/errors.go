package server

import (
	"errors"
	"net/http"

	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"github.com/eventmirror/pretix-bridge/pkg/db"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type         string `json:"type"`
	Message      string `json:"message"`
	RemoteStatus int    `json:"remote_status,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware turns errors recorded on the context into one JSON
// error response, mapping the bridge error kinds onto HTTP statuses.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch pretixdomain.KindOf(err) {
	case pretixdomain.KindValidation:
		return http.StatusBadRequest, errorPayload{Type: "validation_error", Message: err.Error()}
	case pretixdomain.KindNotFound:
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case pretixdomain.KindState:
		return http.StatusConflict, errorPayload{Type: "state_error", Message: err.Error()}
	case pretixdomain.KindRemoteAPI:
		return http.StatusBadGateway, errorPayload{
			Type:         "remote_api_error",
			Message:      err.Error(),
			RemoteStatus: pretixdomain.StatusCodeOf(err),
		}
	case pretixdomain.KindTransport:
		return http.StatusBadGateway, errorPayload{Type: "transport_error", Message: err.Error()}
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "not found"}
	}
	if db.IsDuplicateKeyErr(err) {
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "duplicate resource"}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

func classifyErrorForLog(err error) (string, string) {
	if kind := pretixdomain.KindOf(err); kind != "" {
		return "bridge_error", string(kind)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "db_error", "record_not_found"
	}
	if db.IsDuplicateKeyErr(err) {
		return "db_error", "duplicate_key"
	}
	return "unknown", "unknown"
}
