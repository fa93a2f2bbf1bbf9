package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingperioddomain "github.com/smallbiznis/vaultline/internal/billingperiod/domain"
	containerdomain "github.com/smallbiznis/vaultline/internal/container/domain"
	customerdomain "github.com/smallbiznis/vaultline/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/vaultline/internal/invoice/domain"
	storagebillingdomain "github.com/smallbiznis/vaultline/internal/storagebilling/domain"
	workorderdomain "github.com/smallbiznis/vaultline/internal/workorder/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type     string                                 `json:"type"`
	Message  string                                 `json:"message"`
	Errors   []ValidationError                      `json:"errors,omitempty"`
	Failures []storagebillingdomain.CustomerFailure `json:"failures,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var partial *storagebillingdomain.PartialFailureError
	if errors.As(err, &partial) {
		return http.StatusConflict, errorPayload{
			Type:     "partial_failure",
			Message:  "some customers could not be invoiced; the period stays open for a rerun",
			Failures: partial.Failures,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case storagebillingdomain.IsConfigurationError(err):
		code := err.Error()
		for _, target := range configurationErrors {
			if errors.Is(err, target) {
				code = target.Error()
				break
			}
		}
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "configuration_error",
			Message: "billing run rejected",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictCode(err),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the mapped error type and code.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := ""
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if code == "" && payload.Type == "conflict" {
		code = payload.Message
	}
	return payload.Type, code
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

var validationErrors = []error{
	ErrInvalidRequest,
	customerdomain.ErrInvalidOrganization,
	customerdomain.ErrInvalidName,
	customerdomain.ErrInvalidEmail,
	customerdomain.ErrInvalidID,
	containerdomain.ErrInvalidOrganization,
	containerdomain.ErrInvalidID,
	containerdomain.ErrInvalidCode,
	containerdomain.ErrInvalidName,
	containerdomain.ErrInvalidRate,
	containerdomain.ErrInvalidBarcode,
	containerdomain.ErrInvalidState,
	containerdomain.ErrInvalidCustomer,
	containerdomain.ErrInvalidContainerType,
	workorderdomain.ErrInvalidOrganization,
	workorderdomain.ErrInvalidID,
	workorderdomain.ErrInvalidCustomer,
	workorderdomain.ErrInvalidKind,
	workorderdomain.ErrInvalidQuantity,
	workorderdomain.ErrInvalidUnitPrice,
	billingperioddomain.ErrInvalidOrganization,
	billingperioddomain.ErrInvalidID,
	billingperioddomain.ErrInvalidPeriod,
	billingperioddomain.ErrInvalidInvoiceDate,
	billingperioddomain.ErrInvalidStatus,
	invoicedomain.ErrInvalidOrganization,
	invoicedomain.ErrInvalidID,
}

var configurationErrors = []error{
	storagebillingdomain.ErrInvalidOrganization,
	storagebillingdomain.ErrMissingBillingPeriod,
	storagebillingdomain.ErrMissingMinimumCharge,
	storagebillingdomain.ErrMissingSetupFee,
	storagebillingdomain.ErrNegativeAmount,
	storagebillingdomain.ErrInvalidCurrency,
	storagebillingdomain.ErrInvalidCatalog,
	storagebillingdomain.ErrInvalidCustomer,
}

var notFoundErrors = []error{
	ErrNotFound,
	customerdomain.ErrNotFound,
	containerdomain.ErrNotFound,
	workorderdomain.ErrNotFound,
	billingperioddomain.ErrNotFound,
	invoicedomain.ErrNotFound,
	storagebillingdomain.ErrBillingPeriodNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	ErrConflict,
	containerdomain.ErrDuplicateCode,
	containerdomain.ErrAlreadyRemoved,
	workorderdomain.ErrInvalidTransition,
	billingperioddomain.ErrOverlappingPeriod,
	storagebillingdomain.ErrPeriodAlreadyInvoiced,
	storagebillingdomain.ErrPeriodLocked,
	storagebillingdomain.ErrStaleState,
}

func matchAny(err error, targets []error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}

func isValidationError(err error) bool {
	return matchAny(err, validationErrors) != nil
}

func isNotFoundError(err error) bool {
	return matchAny(err, notFoundErrors) != nil
}

func isConflictError(err error) bool {
	return matchAny(err, conflictErrors) != nil
}

func conflictCode(err error) string {
	if target := matchAny(err, conflictErrors); target != nil {
		return target.Error()
	}
	return "conflict"
}

func validationErrorCode(err error) string {
	if target := matchAny(err, validationErrors); target != nil {
		return target.Error()
	}
	return err.Error()
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	case strings.HasPrefix(code, "missing_"):
		return strings.TrimPrefix(code, "missing_")
	case code == "negative_amount":
		return "amount"
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch {
	case code == "invalid_request":
		return "invalid request"
	case strings.HasPrefix(code, "missing_"):
		return "value is required"
	case code == "negative_amount":
		return "amount must not be negative"
	default:
		return "invalid value"
	}
}
