package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels. Every AppError wraps exactly one of these so callers can branch
// with errors.Is regardless of the message.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidState        = errors.New("invalid state")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrTransactionConflict = errors.New("transaction conflict")
)

// kind maps a sentinel to its wire code and HTTP status. When exposeCause is
// set, a bare sentinel-wrapping error is shown to the client as is; otherwise
// the generic message is used.
type kind struct {
	sentinel    error
	code        string
	status      int
	message     string
	exposeCause bool
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found", false},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict, "resource already exists", false},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, "invalid input", true},
	{ErrInvalidState, "INVALID_STATE", http.StatusConflict, "operation not allowed in the current state", true},
	{ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusUnprocessableEntity, "insufficient stock", true},
	{ErrTransactionConflict, "TRANSACTION_CONFLICT", http.StatusConflict, "concurrent modification detected, retry the operation", false},
}

func kindOf(sentinel error) kind {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return k
		}
	}
	panic("errors: unregistered sentinel " + sentinel.Error())
}

// AppError is an error with a client-facing code, message and HTTP status.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(sentinel error, message string) *AppError {
	k := kindOf(sentinel)
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *AppError {
	return newError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists reports a unique key clash.
func AlreadyExists(resource, field, value string) *AppError {
	return newError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// InvalidInput reports a request that can never succeed as sent.
func InvalidInput(message string) *AppError {
	return newError(ErrInvalidInput, message)
}

// InvalidState reports an operation the document's current status does not
// allow, e.g. posting an order that is already posted.
func InvalidState(message string) *AppError {
	return newError(ErrInvalidState, message)
}

// InsufficientStock reports a decrement that would leave a product with
// negative quantity on hand.
func InsufficientStock(sku, available, requested string) *AppError {
	return newError(ErrInsufficientStock,
		fmt.Sprintf("insufficient stock for %s: available %s, requested %s", sku, available, requested))
}

// TransactionConflict reports a lost race on a row or order lock. The whole
// operation may be retried.
func TransactionConflict(cause error) *AppError {
	e := newError(ErrTransactionConflict, kindOf(ErrTransactionConflict).message)
	e.Err = errors.Join(ErrTransactionConflict, cause)
	return e
}

// Internal hides cause behind a generic 500.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     cause,
	}
}

// Wrap adds context to err, keeping it matchable with errors.Is.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Classify returns the AppError a client should see for err: the AppError in
// its chain, one derived from a wrapped sentinel, or Internal.
func Classify(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if !errors.Is(err, k.sentinel) {
			continue
		}
		msg := k.message
		if k.exposeCause {
			msg = err.Error()
		}
		return &AppError{Code: k.code, Message: msg, Status: k.status, Err: err}
	}
	return Internal(err)
}

// HTTPStatus returns the status Classify assigns to err.
func HTTPStatus(err error) int {
	return Classify(err).Status
}
