package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	analyticsdomain "github.com/storynest/storynest/internal/analytics/domain"
)

func (s *Server) UsageReport(c *gin.Context) {
	from, err := parseRequiredDate(c.Query("from"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := parseRequiredDate(c.Query("to"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	req := analyticsdomain.ReportRequest{From: from, To: to}
	if req.PublisherID, err = parseOptionalSnowflakeID(c.Query("publisher_id")); err != nil {
		AbortWithError(c, err)
		return
	}
	if req.BookID, err = parseOptionalSnowflakeID(c.Query("book_id")); err != nil {
		AbortWithError(c, err)
		return
	}
	if req.ChildID, err = parseOptionalSnowflakeID(c.Query("child_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.analyticsSvc.Report(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (s *Server) DailyMetrics(c *gin.Context) {
	from, err := parseRequiredDate(c.Query("from"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := parseRequiredDate(c.Query("to"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	publisherID, err := parseOptionalSnowflakeID(c.Query("publisher_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	metrics, err := s.analyticsSvc.Metrics(c.Request.Context(), from, to, publisherID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"metrics": metrics})
}

func (s *Server) RoyaltyPreview(c *gin.Context) {
	from, err := parseRequiredDate(c.Query("from"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	to, err := parseRequiredDate(c.Query("to"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	calculations, err := s.royaltySvc.Calculate(c.Request.Context(), from, to)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"calculations": calculations})
}
