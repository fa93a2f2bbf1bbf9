package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/pkg/db/option"
	"github.com/smallbiznis/vaultline/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertType(ctx context.Context, db *gorm.DB, containerType *domain.ContainerType) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO container_types (id, org_id, code, name, standard_monthly_rate, standard_setup_fee, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		containerType.ID,
		containerType.OrgID,
		containerType.Code,
		containerType.Name,
		containerType.StandardMonthlyRate,
		containerType.StandardSetupFee,
		containerType.CreatedAt,
		containerType.UpdatedAt,
	).Error
}

func (r *repo) FindTypeByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.ContainerType, error) {
	var containerType domain.ContainerType
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, code, name, standard_monthly_rate, standard_setup_fee, created_at, updated_at
		 FROM container_types WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&containerType).Error
	if err != nil {
		return nil, err
	}
	if containerType.ID == 0 {
		return nil, nil
	}
	return &containerType, nil
}

func (r *repo) ListTypes(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.ContainerType, error) {
	var types []domain.ContainerType
	err := db.WithContext(ctx).
		Model(&domain.ContainerType{}).
		Where("org_id = ?", orgID).
		Order("code asc").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *repo) ListTypesByIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID) ([]domain.ContainerType, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var types []domain.ContainerType
	err := db.WithContext(ctx).
		Model(&domain.ContainerType{}).
		Where("org_id = ? AND id IN ?", orgID, ids).
		Order("id asc").
		Find(&types).Error
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, container *domain.Container) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO containers (id, org_id, customer_id, container_type_id, barcode, active, state,
		 negotiated_monthly_rate, setup_fee_charged, setup_fee_invoice_id, last_billed_period_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		container.ID,
		container.OrgID,
		container.CustomerID,
		container.ContainerTypeID,
		container.Barcode,
		container.Active,
		container.State,
		container.NegotiatedMonthlyRate,
		container.SetupFeeCharged,
		container.SetupFeeInvoiceID,
		container.LastBilledPeriodID,
		container.CreatedAt,
		container.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.Container, error) {
	var container domain.Container
	err := db.WithContext(ctx).
		Model(&domain.Container{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&container).Error
	if err != nil {
		return nil, err
	}
	if container.ID == 0 {
		return nil, nil
	}
	return &container, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter domain.ListContainerFilter, page pagination.Pagination) ([]*domain.Container, error) {
	var containers []*domain.Container
	stmt := db.WithContext(ctx).
		Model(&domain.Container{}).
		Where("org_id = ?", orgID)
	if filter.CustomerID != 0 {
		stmt = option.ApplyOperator(option.Condition{Field: "customer_id", Operator: option.EQ, Value: filter.CustomerID}).Apply(stmt)
	}
	if filter.ContainerTypeID != 0 {
		stmt = option.ApplyOperator(option.Condition{Field: "container_type_id", Operator: option.EQ, Value: filter.ContainerTypeID}).Apply(stmt)
	}
	if filter.State != "" {
		stmt = option.ApplyOperator(option.Condition{Field: "state", Operator: option.EQ, Value: filter.State}).Apply(stmt)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&containers).Error
	if err != nil {
		return nil, err
	}
	return containers, nil
}

func (r *repo) UpdateState(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, state domain.State, active bool, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE containers SET state = ?, active = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND state NOT IN ?`,
		state,
		active,
		now,
		orgID,
		id,
		[]domain.State{domain.StateDestroyed, domain.StatePermOut},
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListBillable(ctx context.Context, db *gorm.DB, orgID, customerID snowflake.ID, createdBefore time.Time) ([]domain.Container, error) {
	var containers []domain.Container
	err := db.WithContext(ctx).
		Model(&domain.Container{}).
		Where("org_id = ? AND customer_id = ?", orgID, customerID).
		Where("active = ?", true).
		Where("created_at < ?", createdBefore).
		Where("state NOT IN ?", []domain.State{domain.StateDestroyed, domain.StatePermOut}).
		Order("id asc").
		Find(&containers).Error
	if err != nil {
		return nil, err
	}
	return containers, nil
}

func (r *repo) ListBillableCustomerIDs(ctx context.Context, db *gorm.DB, orgID snowflake.ID, createdBefore time.Time) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT customer_id FROM containers
		 WHERE org_id = ? AND active = ? AND state NOT IN ? AND created_at < ?
		 ORDER BY customer_id`,
		orgID,
		true,
		[]domain.State{domain.StateDestroyed, domain.StatePermOut},
		createdBefore,
	).Scan(&ids).Error
	return ids, err
}

func (r *repo) MarkSetupFeeCharged(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, invoiceID snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE containers SET setup_fee_charged = ?, setup_fee_invoice_id = ?, updated_at = ?
		 WHERE org_id = ? AND id IN ? AND setup_fee_charged = ? AND setup_fee_invoice_id IS NULL`,
		true,
		invoiceID,
		now,
		orgID,
		ids,
		false,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) SetLastBilledPeriod(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, periodID snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE containers SET last_billed_period_id = ?, updated_at = ?
		 WHERE org_id = ? AND id IN ?`,
		periodID,
		now,
		orgID,
		ids,
	)
	return result.RowsAffected, result.Error
}
