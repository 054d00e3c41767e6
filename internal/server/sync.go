package server

import (
	"net/http"
	"strconv"

	pretixdomain "github.com/eventmirror/pretix-bridge/internal/pretix/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) HandleSyncEvent(c *gin.Context) {
	id, ok := s.eventID(c)
	if !ok {
		return
	}

	result, err := s.syncSvc.Sync(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) HandleDeleteEvent(c *gin.Context) {
	id, ok := s.eventID(c)
	if !ok {
		return
	}

	if err := s.syncSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) eventID(c *gin.Context) (snowflake.ID, bool) {
	raw, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || raw <= 0 {
		AbortWithError(c, pretixdomain.NewValidation("sync", "invalid event id"))
		return 0, false
	}
	return snowflake.ID(raw), true
}
