package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type createCustomerRequest struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	ConsolidatedBilling bool   `json:"consolidated_billing"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		Name:                strings.TrimSpace(req.Name),
		Email:               strings.TrimSpace(req.Email),
		ConsolidatedBilling: req.ConsolidatedBilling,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name                string `form:"name"`
		Email               string `form:"email"`
		ConsolidatedBilling string `form:"consolidated_billing"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	consolidated, err := parseOptionalBool(query.ConsolidatedBilling)
	if err != nil {
		AbortWithError(c, newValidationError("consolidated_billing", "invalid_consolidated_billing", "invalid consolidated_billing"))
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken:           query.PageToken,
		PageSize:            int32(query.PageSize),
		Name:                strings.TrimSpace(query.Name),
		Email:               strings.TrimSpace(query.Email),
		ConsolidatedBilling: consolidated,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: id,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type consolidatedBillingRequest struct {
	Enabled *bool `json:"enabled"`
}

func (s *Server) SetConsolidatedBilling(c *gin.Context) {
	var req consolidatedBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		AbortWithError(c, newValidationError("enabled", "invalid_enabled", "enabled is required"))
		return
	}

	resp, err := s.customerSvc.SetConsolidatedBilling(c.Request.Context(), customerdomain.SetConsolidatedBillingRequest{
		ID:      strings.TrimSpace(c.Param("id")),
		Enabled: *req.Enabled,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
