package errors

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Common error types that can be used across the application
var (
	ErrNotFound         = new(ErrCodeNotFound, "resource not found")
	ErrAlreadyExists    = new(ErrCodeAlreadyExists, "resource already exists")
	ErrVersionConflict  = new(ErrCodeVersionConflict, "version conflict")
	ErrValidation       = new(ErrCodeValidation, "validation error")
	ErrInvalidOperation = new(ErrCodeInvalidOperation, "invalid operation")
	ErrHTTPClient       = new(ErrCodeHTTPClient, "http client error")
	ErrDatabase         = new(ErrCodeDatabase, "database error")
	ErrSystem           = new(ErrCodeSystemError, "system error")

	// Payment taxonomy. Every error surfaced by the processor is marked with
	// exactly one of these; the transport layer derives the response body
	// {error_code, error_message, retryable} from the mark.
	ErrCartPaymentNotFound       = new(ErrCodeCartPaymentNotFound, "cart payment not found")
	ErrCartPaymentAmountInvalid  = new(ErrCodeCartPaymentAmountInvalid, "cart payment amount invalid")
	ErrCartPaymentUpdateConflict = new(ErrCodeCartPaymentUpdateConflict, "cart payment update conflict")
	ErrPaymentMethodNotFound     = new(ErrCodePaymentMethodNotFound, "payment method not found")
	ErrPaymentMethodMismatch     = new(ErrCodePaymentMethodMismatch, "payment method does not belong to payer")
	ErrProvider                  = new(ErrCodeProvider, "payment provider error")
	ErrProviderUnavailable       = new(ErrCodeProviderUnavailable, "payment provider unavailable")

	// ErrRetryableMark is never surfaced on its own. Marking an error with it
	// flips the retryable flag for kinds whose retryability depends on
	// provider guidance (PROVIDER_ERROR).
	ErrRetryableMark = new(ErrCodeRetryable, "retryable")

	// maps errors to http status codes
	statusCodeMap = map[error]int{
		ErrHTTPClient:                http.StatusInternalServerError,
		ErrDatabase:                  http.StatusInternalServerError,
		ErrNotFound:                  http.StatusNotFound,
		ErrAlreadyExists:             http.StatusConflict,
		ErrVersionConflict:           http.StatusConflict,
		ErrValidation:                http.StatusUnprocessableEntity,
		ErrInvalidOperation:          http.StatusUnprocessableEntity,
		ErrSystem:                    http.StatusInternalServerError,
		ErrCartPaymentNotFound:       http.StatusNotFound,
		ErrCartPaymentAmountInvalid:  http.StatusUnprocessableEntity,
		ErrCartPaymentUpdateConflict: http.StatusConflict,
		ErrPaymentMethodNotFound:     http.StatusNotFound,
		ErrPaymentMethodMismatch:     http.StatusUnprocessableEntity,
		ErrProvider:                  http.StatusBadGateway,
		ErrProviderUnavailable:       http.StatusServiceUnavailable,
	}

	// maps errors to static retryability; kinds not listed default to false.
	retryableMap = map[error]bool{
		ErrCartPaymentUpdateConflict: true,
		ErrProviderUnavailable:       true,
	}
)

const (
	ErrCodeHTTPClient       = "http_client_error"
	ErrCodeSystemError      = "system_error"
	ErrCodeNotFound         = "not_found"
	ErrCodeAlreadyExists    = "already_exists"
	ErrCodeVersionConflict  = "version_conflict"
	ErrCodeValidation       = "validation_error"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeDatabase         = "database_error"
	ErrCodeRetryable        = "retryable"

	ErrCodeCartPaymentNotFound       = "CART_PAYMENT_NOT_FOUND"
	ErrCodeCartPaymentAmountInvalid  = "CART_PAYMENT_AMOUNT_INVALID"
	ErrCodeCartPaymentUpdateConflict = "CART_PAYMENT_UPDATE_CONFLICT"
	ErrCodePaymentMethodNotFound     = "PAYMENT_METHOD_NOT_FOUND"
	ErrCodePaymentMethodMismatch     = "PAYMENT_METHOD_PAYER_MISMATCH"
	ErrCodeProvider                  = "PROVIDER_ERROR"
	ErrCodeProviderUnavailable       = "PROVIDER_UNAVAILABLE"
)

// InternalError represents a domain error
type InternalError struct {
	Code    string // Machine-readable error code
	Message string // Human-readable error message
	Op      string // Logical operation name
	Err     error  // Underlying error
}

func (e *InternalError) Error() string {
	if e.Err == nil {
		return e.DisplayError()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
}

func (e *InternalError) DisplayError() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is implements error matching for wrapped errors
func (e *InternalError) Is(target error) bool {
	if target == nil {
		return false
	}

	t, ok := target.(*InternalError)
	if !ok {
		return errors.Is(e.Err, target)
	}

	return e.Code == t.Code
}

// new creates a new InternalError
func new(code string, message string) *InternalError {
	return &InternalError{
		Code:    code,
		Message: message,
	}
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsNotFound checks if an error is a not found error of any kind
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrCartPaymentNotFound) ||
		errors.Is(err, ErrPaymentMethodNotFound)
}

// IsCartPaymentNotFound checks if an error is a cart payment not found error
func IsCartPaymentNotFound(err error) bool {
	return errors.Is(err, ErrCartPaymentNotFound)
}

// IsCartPaymentAmountInvalid checks if an error is an invalid amount error
func IsCartPaymentAmountInvalid(err error) bool {
	return errors.Is(err, ErrCartPaymentAmountInvalid)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsVersionConflict checks if an error is a version conflict error
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsInvalidOperation checks if an error is an invalid operation error
func IsInvalidOperation(err error) bool {
	return errors.Is(err, ErrInvalidOperation)
}

// IsHTTPClient checks if an error is an http client error
func IsHTTPClient(err error) bool {
	return errors.Is(err, ErrHTTPClient)
}

// IsUpdateConflict checks if an error is a cart payment update conflict
func IsUpdateConflict(err error) bool {
	return errors.Is(err, ErrCartPaymentUpdateConflict)
}

// IsProvider checks if an error came back from the payment provider
func IsProvider(err error) bool {
	return errors.Is(err, ErrProvider) || errors.Is(err, ErrProviderUnavailable)
}

func HTTPStatusFromErr(err error) int {
	for e, status := range statusCodeMap {
		if errors.Is(err, e) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// CodeFromErr returns the taxonomy code for an error, or a generic internal
// code when the error carries no mark.
func CodeFromErr(err error) string {
	var ie *InternalError
	if errors.As(err, &ie) {
		return ie.Code
	}
	for e := range statusCodeMap {
		if errors.Is(err, e) {
			return e.(*InternalError).Code
		}
	}
	return ErrCodeSystemError
}

// IsRetryable reports whether the client may retry the failed call as-is.
// Update conflicts and provider unavailability are always retryable; provider
// errors only when explicitly marked so from provider guidance; validation
// and not-found kinds never are.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRetryableMark) {
		return true
	}
	for e, retryable := range retryableMap {
		if retryable && errors.Is(err, e) {
			return true
		}
	}
	return false
}
