package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
)

type createContainerTypeRequest struct {
	Code                string `json:"code"`
	Name                string `json:"name"`
	StandardMonthlyRate string `json:"standard_monthly_rate"`
	StandardSetupFee    string `json:"standard_setup_fee"`
}

func (s *Server) CreateContainerType(c *gin.Context) {
	var req createContainerTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.containerSvc.CreateType(c.Request.Context(), containerdomain.CreateContainerTypeRequest{
		Code:                req.Code,
		Name:                req.Name,
		StandardMonthlyRate: req.StandardMonthlyRate,
		StandardSetupFee:    req.StandardSetupFee,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContainerTypes(c *gin.Context) {
	resp, err := s.containerSvc.ListTypes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createContainerRequest struct {
	CustomerID            string  `json:"customer_id"`
	ContainerTypeID       string  `json:"container_type_id"`
	Barcode               string  `json:"barcode"`
	State                 string  `json:"state"`
	NegotiatedMonthlyRate *string `json:"negotiated_monthly_rate"`
}

func (s *Server) CreateContainer(c *gin.Context) {
	var req createContainerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.containerSvc.Create(c.Request.Context(), containerdomain.CreateContainerRequest{
		CustomerID:            strings.TrimSpace(req.CustomerID),
		ContainerTypeID:       strings.TrimSpace(req.ContainerTypeID),
		Barcode:               req.Barcode,
		State:                 containerdomain.State(strings.ToUpper(strings.TrimSpace(req.State))),
		NegotiatedMonthlyRate: req.NegotiatedMonthlyRate,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListContainers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		CustomerID      string `form:"customer_id"`
		ContainerTypeID string `form:"container_type_id"`
		State           string `form:"state"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.containerSvc.List(c.Request.Context(), containerdomain.ListContainerRequest{
		PageToken:       query.PageToken,
		PageSize:        int32(query.PageSize),
		CustomerID:      strings.TrimSpace(query.CustomerID),
		ContainerTypeID: strings.TrimSpace(query.ContainerTypeID),
		State:           containerdomain.State(strings.ToUpper(strings.TrimSpace(query.State))),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetContainerByID(c *gin.Context) {
	resp, err := s.containerSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DestroyContainer(c *gin.Context) {
	resp, err := s.containerSvc.Destroy(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PermOutContainer(c *gin.Context) {
	resp, err := s.containerSvc.PermOut(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
