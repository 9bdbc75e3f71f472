package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	usagedomain "github.com/storynest/storynest/internal/usage/domain"
	"github.com/storynest/storynest/pkg/db/pagination"
)

func (s *Server) IngestUsageEvent(c *gin.Context) {
	var req usagedomain.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := s.usageSvc.Ingest(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}

func (s *Server) ListUsageEvents(c *gin.Context) {
	childID, err := parseOptionalSnowflakeID(c.Query("child_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	bookID, err := parseOptionalSnowflakeID(c.Query("book_id"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := usagedomain.ListEventsRequest{
		ChildID: childID,
		BookID:  bookID,
		From:    from,
		To:      to,
	}
	if kind := c.Query("kind"); kind != "" {
		parsed := usagedomain.EventKind(kind)
		if !parsed.Valid() {
			AbortWithError(c, usagedomain.ErrInvalidEventKind)
			return
		}
		req.Kind = &parsed
	}
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.Pagination = page

	resp, err := s.usageSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetUsageEvent(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	event, err := s.usageSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
