package domain

import "context"

type Service interface {
	// Preview computes every in-scope customer's charges without writing anything.
	Preview(context.Context, RunRequest) (Preview, error)
	// Materialize commits one invoice per customer with a positive total and
	// closes the period once every customer succeeded.
	Materialize(context.Context, RunRequest) (MaterializeResult, error)
}
