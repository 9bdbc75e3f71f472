package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	payoutdomain "github.com/storynest/storynest/internal/payout/domain"
)

func (s *Server) CreatePayoutPeriod(c *gin.Context) {
	var req payoutdomain.CreatePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	period, err := s.payoutSvc.CreatePeriod(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, period)
}

func (s *Server) ListPayoutPeriods(c *gin.Context) {
	periods, err := s.payoutSvc.ListPeriods(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (s *Server) GetPayoutPeriod(c *gin.Context) {
	id, err := parsePeriodID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period, err := s.payoutSvc.GetPeriod(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, period)
}

func (s *Server) ListPeriodStatements(c *gin.Context) {
	id, err := parsePeriodID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	statements, err := s.payoutSvc.Statements(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"statements": statements})
}

func (s *Server) GeneratePayoutPeriod(c *gin.Context) {
	id, err := parsePeriodID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	period, err := s.payoutSvc.Generate(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, period)
}

func (s *Server) PayPayoutPeriod(c *gin.Context) {
	id, err := parsePeriodID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.payoutSvc.Pay(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func parsePeriodID(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id == 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}
