package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	contractdomain "github.com/storynest/storynest/internal/contract/domain"
)

func (s *Server) CreateContract(c *gin.Context) {
	publisherID, err := snowflake.ParseString(c.Param("publisher_id"))
	if err != nil || publisherID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req contractdomain.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.PublisherID = publisherID

	created, err := s.contractSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) ListPublisherContracts(c *gin.Context) {
	publisherID, err := snowflake.ParseString(c.Param("publisher_id"))
	if err != nil || publisherID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := contractdomain.ListContractsRequest{PublisherID: &publisherID}
	if status := c.Query("status"); status != "" {
		parsed := contractdomain.ContractStatus(status)
		if !parsed.Valid() {
			AbortWithError(c, contractdomain.ErrInvalidStatus)
			return
		}
		req.Status = &parsed
	}

	contracts, err := s.contractSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

func (s *Server) GetContract(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	contract, err := s.contractSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

func (s *Server) UpdateContractStatus(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil || id == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req struct {
		Status contractdomain.ContractStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	updated, err := s.contractSvc.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}
