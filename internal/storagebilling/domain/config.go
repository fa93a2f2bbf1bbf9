package domain

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RunConfig is the complete pricing input of one billing run. It is built
// per call from the rate card snapshot plus request overrides.
type RunConfig struct {
	BillingPeriodID      snowflake.ID
	Currency             string
	MinimumMonthlyCharge decimal.NullDecimal
	SetupFee             decimal.NullDecimal
	IncludeWorkOrders    bool
	Catalog              Catalog
}

func (c RunConfig) Validate() error {
	if c.BillingPeriodID == 0 {
		return ErrMissingBillingPeriod
	}
	if !c.MinimumMonthlyCharge.Valid {
		return ErrMissingMinimumCharge
	}
	if c.MinimumMonthlyCharge.Decimal.IsNegative() {
		return fmt.Errorf("%w: minimum monthly charge", ErrNegativeAmount)
	}
	if !c.SetupFee.Valid {
		return ErrMissingSetupFee
	}
	if c.SetupFee.Decimal.IsNegative() {
		return fmt.Errorf("%w: setup fee", ErrNegativeAmount)
	}
	if len(strings.TrimSpace(c.Currency)) != 3 {
		return ErrInvalidCurrency
	}
	return c.Catalog.Validate()
}
