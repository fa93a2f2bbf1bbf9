package domain

import "strings"

// LineKind enumerates every billable line an engine run can produce.
type LineKind string

const (
	LineKindSetupFee          LineKind = "SETUP_FEE"
	LineKindStorageFee        LineKind = "STORAGE_FEE"
	LineKindMinimumAdjustment LineKind = "MINIMUM_ADJUSTMENT"
	LineKindWorkOrder         LineKind = "WORK_ORDER"
)

// Catalog maps line kinds to the product codes booked on invoices. It is
// fixed for the whole run; nothing is looked up by name at run time.
type Catalog struct {
	SetupFee           string
	StorageFee         string
	MinimumAdjustment  string
	WorkOrderShredding string
	WorkOrderRetrieval string
}

func (c Catalog) Validate() error {
	for _, code := range []string{c.SetupFee, c.StorageFee, c.MinimumAdjustment, c.WorkOrderShredding, c.WorkOrderRetrieval} {
		if strings.TrimSpace(code) == "" {
			return ErrInvalidCatalog
		}
	}
	return nil
}
