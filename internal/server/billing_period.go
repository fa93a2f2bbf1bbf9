package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	storagebillingdomain "github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type createBillingPeriodRequest struct {
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	InvoiceDate string `json:"invoice_date"`
}

func (s *Server) CreateBillingPeriod(c *gin.Context) {
	var req createBillingPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingPeriodSvc.Create(c.Request.Context(), billingperioddomain.CreateBillingPeriodRequest{
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		InvoiceDate: req.InvoiceDate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBillingPeriods(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billingPeriodSvc.List(c.Request.Context(), billingperioddomain.ListBillingPeriodRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Status:    billingperioddomain.Status(strings.ToUpper(strings.TrimSpace(query.Status))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillingPeriodByID(c *gin.Context) {
	resp, err := s.billingPeriodSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// billingRunRequest carries per-run overrides of the rate card. Omitted
// fields fall back to the configured values.
type billingRunRequest struct {
	CustomerIDs          []string `json:"customer_ids"`
	SetupFee             *string  `json:"setup_fee"`
	MinimumMonthlyCharge *string  `json:"minimum_monthly_charge"`
	IncludeWorkOrders    *bool    `json:"include_work_orders"`
}

func (s *Server) bindRunRequest(c *gin.Context) (storagebillingdomain.RunRequest, bool) {
	var req billingRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return storagebillingdomain.RunRequest{}, false
		}
	}
	return storagebillingdomain.RunRequest{
		BillingPeriodID:      strings.TrimSpace(c.Param("id")),
		CustomerIDs:          req.CustomerIDs,
		SetupFee:             req.SetupFee,
		MinimumMonthlyCharge: req.MinimumMonthlyCharge,
		IncludeWorkOrders:    req.IncludeWorkOrders,
	}, true
}

func (s *Server) PreviewBillingPeriod(c *gin.Context) {
	req, ok := s.bindRunRequest(c)
	if !ok {
		return
	}

	resp, err := s.storageBillingSvc.Preview(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) InvoiceBillingPeriod(c *gin.Context) {
	req, ok := s.bindRunRequest(c)
	if !ok {
		return
	}

	resp, err := s.storageBillingSvc.Materialize(c.Request.Context(), req)
	if err != nil {
		var partial *storagebillingdomain.PartialFailureError
		if errors.As(err, &partial) {
			// committed invoices are reported next to the failures
			_ = c.Error(err)
			status, payload := mapError(err)
			c.JSON(status, gin.H{"error": payload, "data": resp})
			return
		}
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
