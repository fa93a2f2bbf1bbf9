package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateDraft              State = "DRAFT"
	StateActive             State = "ACTIVE"
	StatePendingDestruction State = "PENDING_DESTRUCTION"
	StateDestroyed          State = "DESTROYED"
	StatePermOut            State = "PERM_OUT"
)

// Terminal reports whether the container has left storage for good.
func (s State) Terminal() bool {
	return s == StateDestroyed || s == StatePermOut
}

func (s State) Valid() bool {
	switch s {
	case StateDraft, StateActive, StatePendingDestruction, StateDestroyed, StatePermOut:
		return true
	}
	return false
}

// ContainerType is a catalog entry such as a standard box or a tape canister.
type ContainerType struct {
	ID                  snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID               snowflake.ID    `gorm:"not null;uniqueIndex:ux_container_type_code,priority:1" json:"organization_id"`
	Code                string          `gorm:"not null;uniqueIndex:ux_container_type_code,priority:2" json:"code"`
	Name                string          `gorm:"not null" json:"name"`
	StandardMonthlyRate decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"standard_monthly_rate"`
	StandardSetupFee    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"standard_setup_fee"`
	CreatedAt           time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (ContainerType) TableName() string { return "container_types" }

// Container is a physical unit held in storage for a customer.
type Container struct {
	ID                    snowflake.ID        `gorm:"primaryKey" json:"id"`
	OrgID                 snowflake.ID        `gorm:"not null;index:ix_container_billable,priority:1" json:"organization_id"`
	CustomerID            snowflake.ID        `gorm:"not null;index:ix_container_billable,priority:2" json:"customer_id"`
	ContainerTypeID       snowflake.ID        `gorm:"not null;index" json:"container_type_id"`
	Barcode               string              `gorm:"not null" json:"barcode"`
	Active                bool                `gorm:"not null" json:"active"`
	State                 State               `gorm:"type:text;not null" json:"state"`
	NegotiatedMonthlyRate decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"negotiated_monthly_rate"`
	SetupFeeCharged       bool                `gorm:"not null" json:"setup_fee_charged"`
	SetupFeeInvoiceID     *snowflake.ID       `json:"setup_fee_invoice_id,omitempty"`
	LastBilledPeriodID    *snowflake.ID       `json:"last_billed_period_id,omitempty"`
	CreatedAt             time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time           `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Container) TableName() string { return "containers" }

// Billable reports whether the container is part of the monthly storage population.
func (c Container) Billable() bool {
	return c.Active && !c.State.Terminal()
}
