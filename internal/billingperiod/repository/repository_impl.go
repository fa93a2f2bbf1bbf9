package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, period *domain.BillingPeriod) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO billing_periods (id, org_id, period_start, period_end, status, invoice_date, claimed_at, claim_token, invoiced_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		period.ID,
		period.OrgID,
		period.PeriodStart,
		period.PeriodEnd,
		period.Status,
		period.InvoiceDate,
		period.ClaimedAt,
		period.ClaimToken,
		period.InvoicedAt,
		period.CreatedAt,
		period.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*domain.BillingPeriod, error) {
	var period domain.BillingPeriod
	err := db.WithContext(ctx).
		Model(&domain.BillingPeriod{}).
		Where("org_id = ? AND id = ?", orgID, id).
		Limit(1).
		Find(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) FindOverlapping(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) (*domain.BillingPeriod, error) {
	var period domain.BillingPeriod
	err := db.WithContext(ctx).
		Model(&domain.BillingPeriod{}).
		Where("org_id = ? AND period_start <= ? AND period_end >= ?", orgID, end, start).
		Order("period_start asc").
		Limit(1).
		Find(&period).Error
	if err != nil {
		return nil, err
	}
	if period.ID == 0 {
		return nil, nil
	}
	return &period, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, token string, claimedAt, staleBefore time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE billing_periods SET status = ?, claimed_at = ?, claim_token = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?
		 AND (status = ? OR (status = ? AND claimed_at < ?))`,
		domain.StatusInvoicing,
		claimedAt,
		token,
		claimedAt,
		orgID,
		id,
		domain.StatusOpen,
		domain.StatusInvoicing,
		staleBefore,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkInvoiced(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, token string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE billing_periods SET status = ?, claim_token = NULL, invoiced_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ? AND claim_token = ?`,
		domain.StatusInvoiced,
		now,
		now,
		orgID,
		id,
		domain.StatusInvoicing,
		token,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) Release(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, token string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE billing_periods SET status = ?, claimed_at = NULL, claim_token = NULL, updated_at = ?
		 WHERE org_id = ? AND id = ? AND status = ? AND claim_token = ?`,
		domain.StatusOpen,
		now,
		orgID,
		id,
		domain.StatusInvoicing,
		token,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
