package errors

import (
	"context"
	stderrors "errors"
	"net/http"
)

// Kind is the stable classification carried by every domain failure.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindForbidden         Kind = "FORBIDDEN"
	KindInvalidState      Kind = "INVALID_STATE"
	KindInvalidAmount     Kind = "INVALID_AMOUNT"
	KindEmptySelection    Kind = "EMPTY_SELECTION"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindAlreadyProcessed  Kind = "ALREADY_PROCESSED"
	KindUnavailable       Kind = "UNAVAILABLE"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindTimeout           Kind = "TIMEOUT"
	KindStorage           Kind = "STORAGE_ERROR"
)

// Error is a domain failure with a kind and a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a domain error.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

var (
	// ErrCardNotFound is returned when a card does not exist.
	ErrCardNotFound = New(KindNotFound, "card not found")
	// ErrItemNotFound is returned when a catalog item does not exist.
	ErrItemNotFound = New(KindNotFound, "item not found")
	// ErrLineNotFound is returned when no staged line matches (item, price).
	ErrLineNotFound = New(KindNotFound, "item not in selection")
	// ErrTopUpNotFound is returned when a top-up request does not exist.
	ErrTopUpNotFound = New(KindNotFound, "top-up request not found")
	// ErrNotCardHolder is returned when the caller does not own the card.
	ErrNotCardHolder = New(KindForbidden, "card does not belong to caller")
	// ErrCardInactive is returned when the card status is not active.
	ErrCardInactive = New(KindInvalidState, "card is not active")
	// ErrInvalidAmount is returned for non-positive or malformed amounts.
	ErrInvalidAmount = New(KindInvalidAmount, "invalid amount")
	// ErrInvalidTotal is returned when a staged selection totals zero or less.
	ErrInvalidTotal = New(KindInvalidAmount, "invalid purchase: total amount is 0")
	// ErrPriceNotOffered is returned when a staged unit price is not a catalog price.
	ErrPriceNotOffered = New(KindInvalidAmount, "price not offered for item")
	// ErrEmptySelection is returned when finalizing a card with nothing staged.
	ErrEmptySelection = New(KindEmptySelection, "please select items before finalizing purchase")
	// ErrInsufficientFunds is returned when the balance cannot cover a debit.
	ErrInsufficientFunds = New(KindInsufficientFunds, "insufficient balance")
	// ErrAlreadyProcessed is returned when a top-up request is no longer pending.
	ErrAlreadyProcessed = New(KindAlreadyProcessed, "already processed")
	// ErrItemUnavailable is returned when an item cannot currently be sold.
	ErrItemUnavailable = New(KindUnavailable, "item not available")
	// ErrCardExists is returned when a holder already has a card.
	ErrCardExists = New(KindAlreadyExists, "card already exists for this holder")
	// ErrInvalidDecision is returned for an unknown approval decision.
	ErrInvalidDecision = New(KindValidation, "invalid action")
)

// Storage wraps an infrastructure failure.
func Storage(err error) *Error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Reason: "operation timed out", Err: err}
	}
	return &Error{Kind: KindStorage, Reason: "storage failure", Err: err}
}

// Validation builds a request validation failure.
func Validation(reason string) *Error {
	return New(KindValidation, reason)
}

// KindOf returns the kind of err, or KindStorage for unclassified errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var statusByKind = map[Kind]int{
	KindNotFound:          http.StatusNotFound,
	KindForbidden:         http.StatusForbidden,
	KindInvalidState:      http.StatusConflict,
	KindInvalidAmount:     http.StatusBadRequest,
	KindEmptySelection:    http.StatusBadRequest,
	KindInsufficientFunds: http.StatusPaymentRequired,
	KindAlreadyProcessed:  http.StatusConflict,
	KindUnavailable:       http.StatusUnprocessableEntity,
	KindAlreadyExists:     http.StatusConflict,
	KindValidation:        http.StatusBadRequest,
	KindTimeout:           http.StatusGatewayTimeout,
}

// MapErrorToHTTP maps domain errors to HTTP errors.
// Storage failures never leak their cause to the client.
func MapErrorToHTTP(err error) *HTTPError {
	var e *Error
	if !stderrors.As(err, &e) || e.Kind == KindStorage {
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
	status, ok := statusByKind[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return NewHTTPError(status, e.Reason, string(e.Kind))
}
