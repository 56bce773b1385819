package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Cart errors (CART_*)
	ErrorCodeCartEmpty        ErrorCode = "CART_EMPTY"
	ErrorCodeCartItemNotFound ErrorCode = "CART_ITEM_NOT_FOUND"
	ErrorCodeCartExpiredItems ErrorCode = "CART_EXPIRED_ITEMS"
	ErrorCodeCartInvalidItems ErrorCode = "CART_INVALID_ITEMS"

	// Transaction errors (TXN_*)
	ErrorCodeTxnNotFound        ErrorCode = "TXN_NOT_FOUND"
	ErrorCodeTxnAlreadyResolved ErrorCode = "TXN_ALREADY_RESOLVED"
	ErrorCodeTxnNotFailed       ErrorCode = "TXN_NOT_FAILED"
	ErrorCodeTxnNotRetryable    ErrorCode = "TXN_NOT_RETRYABLE"

	// Recurring donation errors (RECURRING_*)
	ErrorCodeRecurringNotFound  ErrorCode = "RECURRING_NOT_FOUND"
	ErrorCodeRecurringNotActive ErrorCode = "RECURRING_NOT_ACTIVE"
	ErrorCodeRecurringNotPaused ErrorCode = "RECURRING_NOT_PAUSED"
	ErrorCodeRecurringTerminal  ErrorCode = "RECURRING_TERMINAL_STATE"

	// BIN / routing errors (BIN_*)
	ErrorCodeBinNotFound ErrorCode = "BIN_NOT_FOUND"
	ErrorCodeBinInvalid  ErrorCode = "BIN_INVALID"

	// Donation errors (DONATION_*)
	ErrorCodeDonationNotFound ErrorCode = "DONATION_NOT_FOUND"

	// Validation errors (VALIDATION_*)
	ErrorCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationAmountInvalid ErrorCode = "VALIDATION_AMOUNT_INVALID"
	ErrorCodeValidationMissingField  ErrorCode = "VALIDATION_MISSING_FIELD"

	// Payment gateway errors (GATEWAY_*)
	ErrorCodeGatewayError    ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout  ErrorCode = "GATEWAY_TIMEOUT"
	ErrorCodeGatewayDeclined ErrorCode = "GATEWAY_DECLINED"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeCartItemNotFound ||
		code == ErrorCodeTxnNotFound ||
		code == ErrorCodeRecurringNotFound ||
		code == ErrorCodeDonationNotFound ||
		code == ErrorCodeBinNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed ||
		code == ErrorCodeValidationAmountInvalid ||
		code == ErrorCodeValidationMissingField ||
		code == ErrorCodeCartEmpty ||
		code == ErrorCodeCartExpiredItems ||
		code == ErrorCodeCartInvalidItems ||
		code == ErrorCodeBinInvalid
}

// IsConflictError checks if an error represents an invalid state transition
func IsConflictError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeTxnAlreadyResolved ||
		code == ErrorCodeTxnNotFailed ||
		code == ErrorCodeTxnNotRetryable ||
		code == ErrorCodeRecurringNotActive ||
		code == ErrorCodeRecurringNotPaused ||
		code == ErrorCodeRecurringTerminal
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError ||
		code == ErrorCodeGatewayTimeout ||
		code == ErrorCodeGatewayDeclined
}

// Structured error instances
var (
	ErrCartEmpty        = NewDomainError(ErrorCodeCartEmpty, "Sepet boş")
	ErrCartItemNotFound = NewDomainError(ErrorCodeCartItemNotFound, "sepet öğesi bulunamadı")

	ErrTxnNotFound        = NewDomainError(ErrorCodeTxnNotFound, "transaction not found")
	ErrTxnAlreadyResolved = NewDomainError(ErrorCodeTxnAlreadyResolved, "transaction already resolved")
	ErrTxnNotFailed       = NewDomainError(ErrorCodeTxnNotFailed, "only failed transactions can be retried")
	ErrTxnNotRetryable    = NewDomainError(ErrorCodeTxnNotRetryable, "this transaction is not retryable")

	ErrRecurringNotFound  = NewDomainError(ErrorCodeRecurringNotFound, "recurring donation not found")
	ErrRecurringNotActive = NewDomainError(ErrorCodeRecurringNotActive, "recurring donation is not active")
	ErrRecurringNotPaused = NewDomainError(ErrorCodeRecurringNotPaused, "only paused recurring donations can be resumed")
	ErrRecurringTerminal  = NewDomainError(ErrorCodeRecurringTerminal, "recurring donation is in a terminal state")

	ErrBinNotFound = NewDomainError(ErrorCodeBinNotFound, "BIN kodu bulunamadı")
	ErrBinInvalid  = NewDomainError(ErrorCodeBinInvalid, "Geçersiz kart numarası (en az 6 hane gerekli)")

	ErrDonationNotFound = NewDomainError(ErrorCodeDonationNotFound, "donation not found")

	ErrValidationAmountInvalid = NewDomainError(ErrorCodeValidationAmountInvalid, "invalid amount")

	ErrGatewayError    = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimedOut = NewDomainError(ErrorCodeGatewayTimeout, "payment gateway timeout")
	ErrGatewayDeclined = NewDomainError(ErrorCodeGatewayDeclined, "payment declined by gateway")
)
