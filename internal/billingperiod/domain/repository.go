package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, period *BillingPeriod) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*BillingPeriod, error)
	FindOverlapping(ctx context.Context, db *gorm.DB, orgID snowflake.ID, start, end time.Time) (*BillingPeriod, error)

	// Claim moves an OPEN period, or an INVOICING one claimed before
	// staleBefore, to INVOICING under token. It reports false when another
	// run holds it.
	Claim(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, token string, claimedAt, staleBefore time.Time) (bool, error)
	// MarkInvoiced and Release only apply while token still holds the claim.
	MarkInvoiced(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, token string, now time.Time) (bool, error)
	Release(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, token string, now time.Time) (bool, error)
}
