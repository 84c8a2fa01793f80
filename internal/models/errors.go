// internal/models/errors.go
package models

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeStock        ErrorCode = "STOCK_ERROR"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"
	CodeSync         ErrorCode = "SYNC_ERROR"
	CodeRemote       ErrorCode = "REMOTE_ERROR"
)

// Error message constants for the cart domain.
const (
	ErrMsgProductIDRequired      = "product id is required"
	ErrMsgQuantityRange          = "quantity must be between 1 and %d"
	ErrMsgInsufficientStock      = "only %d units of %s are available"
	ErrMsgItemNotInCart          = "item not in cart"
	ErrMsgAuthRequired           = "authentication required"
	ErrMsgCouponCodeRequired     = "coupon code is required"
	ErrMsgCouponCodeTooLong      = "coupon code must be at most %d characters"
	ErrMsgCouponCodeInvalid      = "coupon code contains invalid characters"
	ErrMsgCouponNotValid         = "coupon is not valid"
	ErrMsgInvalidShipping        = "invalid shipping method"
	ErrMsgAddressIncomplete      = "shipping address is incomplete"
	ErrMsgSyncInProgress         = "cart sync already in progress"
	ErrMsgSyncFetchFailed        = "failed to fetch account cart"
	ErrMsgSyncSubmitFailed       = "failed to submit guest items"
	ErrMsgCartUnavailable        = "cart service unavailable"
	ErrMsgUnexpectedCollaborator = "unexpected failure in cart collaborator"
	ErrMsgProductNotFound        = "product not found"
)

type CartError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *CartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CartError) Unwrap() error {
	return e.Err
}

// Is matches another *CartError with the same code, so sentinel-style checks
// such as errors.Is(err, &CartError{Code: CodeStock}) work.
func (e *CartError) Is(target error) bool {
	t, ok := target.(*CartError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

func NewValidationError(format string, args ...interface{}) *CartError {
	return &CartError{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func NewStockError(format string, args ...interface{}) *CartError {
	return &CartError{Code: CodeStock, Message: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(message string) *CartError {
	return &CartError{Code: CodeNotFound, Message: message}
}

func NewUnauthorizedError(message string) *CartError {
	return &CartError{Code: CodeUnauthorized, Message: message}
}

func NewSyncError(message string, err error) *CartError {
	return &CartError{Code: CodeSync, Message: message, Err: err}
}

func NewRemoteError(message string, err error) *CartError {
	return &CartError{Code: CodeRemote, Message: message, Err: err}
}

// AsCartError converts any error into a *CartError, wrapping unknown errors
// as REMOTE_ERROR.
func AsCartError(err error) *CartError {
	if err == nil {
		return nil
	}
	var cartErr *CartError
	if errors.As(err, &cartErr) {
		return cartErr
	}
	return NewRemoteError(ErrMsgUnexpectedCollaborator, err)
}

// CodeOf returns the error code carried by err, or "" when err is not a cart error.
func CodeOf(err error) ErrorCode {
	var cartErr *CartError
	if errors.As(err, &cartErr) {
		return cartErr.Code
	}
	return ""
}
