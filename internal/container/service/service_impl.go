package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/vaultline/internal/clock"
	"github.com/smallbiznis/vaultline/internal/container/domain"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	"github.com/smallbiznis/vaultline/internal/orgcontext"
	"github.com/smallbiznis/vaultline/pkg/db"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	CustomerRepo customerdomain.Repository
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	customerRepo customerdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("container.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		customerRepo: p.CustomerRepo,
	}
}

func (s *Service) CreateType(ctx context.Context, req domain.CreateContainerTypeRequest) (domain.ContainerType, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ContainerType{}, domain.ErrInvalidOrganization
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	if code == "" {
		return domain.ContainerType{}, domain.ErrInvalidCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ContainerType{}, domain.ErrInvalidName
	}

	monthly, err := parseAmount(req.StandardMonthlyRate)
	if err != nil {
		return domain.ContainerType{}, err
	}
	setup, err := parseAmount(req.StandardSetupFee)
	if err != nil {
		return domain.ContainerType{}, err
	}

	now := s.clock.Now()
	containerType := domain.ContainerType{
		ID:                  s.genID.Generate(),
		OrgID:               orgID,
		Code:                code,
		Name:                name,
		StandardMonthlyRate: monthly,
		StandardSetupFee:    setup,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.InsertType(ctx, s.db, &containerType); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ContainerType{}, domain.ErrDuplicateCode
		}
		return domain.ContainerType{}, err
	}

	return containerType, nil
}

func (s *Service) ListTypes(ctx context.Context) ([]domain.ContainerType, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListTypes(ctx, s.db, orgID)
}

func (s *Service) Create(ctx context.Context, req domain.CreateContainerRequest) (domain.Container, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Container{}, domain.ErrInvalidOrganization
	}

	customerID, err := parseID(req.CustomerID)
	if err != nil {
		return domain.Container{}, domain.ErrInvalidCustomer
	}
	typeID, err := parseID(req.ContainerTypeID)
	if err != nil {
		return domain.Container{}, domain.ErrInvalidContainerType
	}

	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return domain.Container{}, domain.ErrInvalidBarcode
	}

	state := req.State
	if state == "" {
		state = domain.StateActive
	}
	if !state.Valid() || state.Terminal() {
		return domain.Container{}, domain.ErrInvalidState
	}

	var negotiated decimal.NullDecimal
	if req.NegotiatedMonthlyRate != nil && strings.TrimSpace(*req.NegotiatedMonthlyRate) != "" {
		rate, err := parseAmount(*req.NegotiatedMonthlyRate)
		if err != nil {
			return domain.Container{}, err
		}
		negotiated = decimal.NewNullDecimal(rate)
	}

	customer, err := s.customerRepo.FindByID(ctx, s.db, orgID, customerID)
	if err != nil {
		return domain.Container{}, err
	}
	if customer == nil {
		return domain.Container{}, domain.ErrInvalidCustomer
	}

	containerType, err := s.repo.FindTypeByID(ctx, s.db, orgID, typeID)
	if err != nil {
		return domain.Container{}, err
	}
	if containerType == nil {
		return domain.Container{}, domain.ErrInvalidContainerType
	}

	now := s.clock.Now()
	container := domain.Container{
		ID:                    s.genID.Generate(),
		OrgID:                 orgID,
		CustomerID:            customerID,
		ContainerTypeID:       typeID,
		Barcode:               barcode,
		Active:                true,
		State:                 state,
		NegotiatedMonthlyRate: negotiated,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.Insert(ctx, s.db, &container); err != nil {
		return domain.Container{}, err
	}

	s.log.Info("container received",
		zap.String("container_id", container.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("container_type", containerType.Code),
	)
	return container, nil
}

func (s *Service) List(ctx context.Context, req domain.ListContainerRequest) (domain.ListContainerResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.ListContainerResponse{}, domain.ErrInvalidOrganization
	}

	filter := domain.ListContainerFilter{State: req.State}
	if strings.TrimSpace(req.CustomerID) != "" {
		id, err := parseID(req.CustomerID)
		if err != nil {
			return domain.ListContainerResponse{}, domain.ErrInvalidCustomer
		}
		filter.CustomerID = id
	}
	if strings.TrimSpace(req.ContainerTypeID) != "" {
		id, err := parseID(req.ContainerTypeID)
		if err != nil {
			return domain.ListContainerResponse{}, domain.ErrInvalidContainerType
		}
		filter.ContainerTypeID = id
	}
	if filter.State != "" && !filter.State.Valid() {
		return domain.ListContainerResponse{}, domain.ErrInvalidState
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
		return domain.ListContainerResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, pageSize, func(c *domain.Container) pagination.Cursor {
		return pagination.Cursor{
			ID:        c.ID.String(),
			CreatedAt: c.CreatedAt.Format(time.RFC3339Nano),
		}
	})

	containers := make([]domain.Container, 0, len(items))
	for _, item := range items {
		if item != nil {
			containers = append(containers, *item)
		}
	}
	return domain.ListContainerResponse{PageInfo: pageInfo, Containers: containers}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Container, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return domain.Container{}, domain.ErrInvalidOrganization
	}

	containerID, err := parseID(id)
	if err != nil {
		return domain.Container{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, orgID, containerID)
	if err != nil {
		return domain.Container{}, err
	}
	if item == nil {
		return domain.Container{}, domain.ErrNotFound
	}
	return *item, nil
}

// Destroy records certified destruction; the container leaves the billable population.
func (s *Service) Destroy(ctx context.Context, id string) (domain.Container, error) {
	return s.remove(ctx, id, domain.StateDestroyed)
}

// PermOut records a permanent withdrawal back to the customer.
func (s *Service) PermOut(ctx context.Context, id string) (domain.Container, error) {
	return s.remove(ctx, id, domain.StatePermOut)
}

func (s *Service) remove(ctx context.Context, id string, state domain.State) (domain.Container, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Container{}, err
	}
	if current.State.Terminal() {
		return domain.Container{}, domain.ErrAlreadyRemoved
	}

	updated, err := s.repo.UpdateState(ctx, s.db, current.OrgID, current.ID, state, false, s.clock.Now())
	if err != nil {
		return domain.Container{}, err
	}
	if !updated {
		return domain.Container{}, domain.ErrAlreadyRemoved
	}

	s.log.Info("container removed from storage",
		zap.String("container_id", current.ID.String()),
		zap.String("state", string(state)),
	)
	return s.GetByID(ctx, id)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, errors.Join(domain.ErrInvalidRate, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, domain.ErrInvalidRate
	}
	return amount.Round(2), nil
}
