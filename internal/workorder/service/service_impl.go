package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/config"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/smallbiznis/vaultline/internal/workorder/domain"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	BillingConfig *config.BillingConfigHolder
	Repo          domain.Repository
	CustomerRepo  customerdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	billing      *config.BillingConfigHolder
	repo         domain.Repository
	customerRepo customerdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("workorder.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		billing:      p.BillingConfig,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateWorkOrderRequest) (domain.WorkOrder, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.WorkOrder{}, domain.ErrInvalidOrganization
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return domain.WorkOrder{}, domain.ErrInvalidCustomer
	}
	if !req.Kind.Valid() {
		return domain.WorkOrder{}, domain.ErrInvalidKind
	}

	quantity, err := decimal.NewFromString(strings.TrimSpace(req.Quantity))
	if err != nil || !quantity.IsPositive() {
		return domain.WorkOrder{}, domain.ErrInvalidQuantity
	}
	unitPrice, err := decimal.NewFromString(strings.TrimSpace(req.UnitPrice))
	if err != nil || unitPrice.IsNegative() {
		return domain.WorkOrder{}, domain.ErrInvalidUnitPrice
	}
	quantity = quantity.Round(2)
	unitPrice = unitPrice.Round(2)

	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, customerID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if customer == nil {
		return domain.WorkOrder{}, domain.ErrInvalidCustomer
	}

	productCode := strings.TrimSpace(req.ProductCode)
	if productCode == "" {
		productCode = s.defaultProductCode(req.Kind)
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultDescription(req.Kind)
	}

	now := s.clock.Now()
	order := domain.WorkOrder{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		CustomerID:  customerID,
		Kind:        req.Kind,
		State:       domain.StateScheduled,
		Description: description,
		ProductCode: productCode,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    quantity.Mul(unitPrice).Round(2),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		return domain.WorkOrder{}, err
	}

	return order, nil
}

func (s *Service) List(ctx context.Context, req domain.ListWorkOrderRequest) (domain.ListWorkOrderResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListWorkOrderResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListWorkOrderFilter{Kind: req.Kind, State: req.State}
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return domain.ListWorkOrderResponse{}, domain.ErrInvalidCustomer
		}
		filter.CustomerID = id
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return domain.ListWorkOrderResponse{}, domain.ErrInvalidKind
	}

	pageSize := int(req.PageSize)
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, orgID, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListWorkOrderResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(o *domain.WorkOrder) pagination.Cursor {
		return pagination.Cursor{
			ID:        o.ID.String(),
			CreatedAt: o.CreatedAt.Format(time.RFC3339Nano),
		}
	})

	orders := make([]domain.WorkOrder, 0, len(items))
	for _, item := range items {
		if item != nil {
			orders = append(orders, *item)
		}
	}
	return domain.ListWorkOrderResponse{PageInfo: pageInfo, WorkOrders: orders}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.WorkOrder, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.WorkOrder{}, domain.ErrInvalidOrganization
	}

	orderID, err := parseID(id)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, orderID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if item == nil {
		return domain.WorkOrder{}, domain.ErrNotFound
	}
	return *item, nil
}

// Complete closes the order. Customers on consolidated billing get the order
// queued for their next storage invoice.
func (s *Service) Complete(ctx context.Context, id string) (domain.WorkOrder, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, order.OrgID, order.CustomerID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if customer == nil {
		return domain.WorkOrder{}, domain.ErrInvalidCustomer
	}

	updated, err := s.repo.Complete(ctx, s.db, order.OrgID, order.ID, customer.ConsolidatedBilling, s.clock.Now())
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if !updated {
		return domain.WorkOrder{}, domain.ErrInvalidTransition
	}

	s.log.Info("work order completed",
		zap.String("work_order_id", order.ID.String()),
		zap.String("kind", string(order.Kind)),
		zap.Bool("pending_consolidated_billing", customer.ConsolidatedBilling),
	)
	return s.GetByID(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.WorkOrder, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.WorkOrder{}, err
	}

	updated, err := s.repo.Cancel(ctx, s.db, order.OrgID, order.ID, s.clock.Now())
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if !updated {
		return domain.WorkOrder{}, domain.ErrInvalidTransition
	}
	return s.GetByID(ctx, id)
}

func (s *Service) defaultProductCode(kind domain.Kind) string {
	catalog := s.billing.Get().Catalog
	if kind == domain.KindShredding {
		return catalog.WorkOrderShredding
	}
	return catalog.WorkOrderRetrieval
}

func defaultDescription(kind domain.Kind) string {
	if kind == domain.KindShredding {
		return "Shredding service"
	}
	return "Retrieval service"
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
