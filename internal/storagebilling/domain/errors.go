package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Configuration errors are reported before any state is read or written.
var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrMissingBillingPeriod  = errors.New("missing_billing_period")
	ErrMissingMinimumCharge  = errors.New("missing_minimum_charge")
	ErrMissingSetupFee       = errors.New("missing_setup_fee")
	ErrNegativeAmount        = errors.New("negative_amount")
	ErrInvalidCurrency       = errors.New("invalid_currency")
	ErrInvalidCatalog        = errors.New("invalid_catalog")
	ErrInvalidCustomer       = errors.New("invalid_customer")
	ErrBillingPeriodNotFound = errors.New("billing_period_not_found")
)

// Reentrancy errors.
var (
	ErrPeriodAlreadyInvoiced = errors.New("period_already_invoiced")
	ErrPeriodLocked          = errors.New("period_locked")
)

var (
	ErrPartialFailure = errors.New("partial_failure")
	// ErrStaleState aborts a customer whose containers or work orders were
	// billed by someone else between read and flag update.
	ErrStaleState = errors.New("billing_state_changed")
)

// IsConfigurationError reports whether err rejects the run's input.
func IsConfigurationError(err error) bool {
	for _, target := range []error{
		ErrInvalidOrganization,
		ErrMissingBillingPeriod,
		ErrMissingMinimumCharge,
		ErrMissingSetupFee,
		ErrNegativeAmount,
		ErrInvalidCurrency,
		ErrInvalidCatalog,
		ErrInvalidCustomer,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// CustomerFailure is one customer whose invoice could not be committed.
type CustomerFailure struct {
	CustomerID   snowflake.ID `json:"customer_id"`
	CustomerName string       `json:"customer_name"`
	Message      string       `json:"message"`
	Err          error        `json:"-"`
}

func (f CustomerFailure) Error() string {
	return fmt.Sprintf("customer %s: %v", f.CustomerID, f.Err)
}

// PartialFailureError lists the customers that failed in a materialization
// run. Invoices of every other customer stay committed and the period stays
// open so the run can be repeated.
type PartialFailureError struct {
	Failures []CustomerFailure
}

func (e *PartialFailureError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, failure := range e.Failures {
		parts = append(parts, failure.Error())
	}
	return fmt.Sprintf("%s: %d customer(s) failed: %s", ErrPartialFailure, len(e.Failures), strings.Join(parts, "; "))
}

func (e *PartialFailureError) Is(target error) bool {
	return target == ErrPartialFailure
}

func (e *PartialFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, failure := range e.Failures {
		errs = append(errs, failure.Err)
	}
	return errs
}
