package service

import (
	"github.com/shopspring/decimal"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	"github.com/smallbiznis/vaultline/internal/storagebilling/domain"
)

// resolveRate returns the monthly storage rate of a container: its negotiated
// rate when set and non-zero, else the type's standard rate. A zero result is
// reported as a gap so the caller can warn; it never fails the run.
func resolveRate(container containerdomain.Container, containerType *containerdomain.ContainerType) (decimal.Decimal, bool) {
	if container.NegotiatedMonthlyRate.Valid && !container.NegotiatedMonthlyRate.Decimal.IsZero() {
		return container.NegotiatedMonthlyRate.Decimal.Round(2), false
	}
	if containerType != nil && !containerType.StandardMonthlyRate.IsZero() {
		return containerType.StandardMonthlyRate.Round(2), false
	}
	return decimal.Zero, true
}

// effectiveSetupFee is the single setup fee applied to every new container of the run.
func effectiveSetupFee(cfg domain.RunConfig) decimal.Decimal {
	if !cfg.SetupFee.Valid {
		return decimal.Zero
	}
	return cfg.SetupFee.Decimal.Round(2)
}
