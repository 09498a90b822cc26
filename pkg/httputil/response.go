package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/WholesaleGo/pkg/errors"
	"github.com/utafrali/WholesaleGo/pkg/logger"
	"github.com/utafrali/WholesaleGo/pkg/validator"
)

// Response is the JSON envelope of every API reply. Exactly one of Data and
// Error is set.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error half of Response. RequestID echoes the
// correlation id so clients can quote it in support requests.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is out; an encode failure can only be a broken client.
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorCode writes an error envelope with an explicit code and message.
// r may be nil when no request id should be echoed.
func WriteErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := &ErrorResponse{Code: code, Message: message}
	if r != nil {
		body.RequestID = logger.CorrelationIDFromContext(r.Context())
	}
	WriteJSON(w, status, Response{Error: body})
}

// WriteError maps err through apperrors.Classify and writes the result.
// Internal errors are logged with the request-scoped logger when the
// RequestLogger middleware installed one, else with fallback.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	appErr := apperrors.Classify(err)

	if appErr.Status >= http.StatusInternalServerError {
		l := logger.FromContext(r.Context())
		if l == slog.Default() && fallback != nil {
			l = fallback
		}
		l.ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteErrorCode(w, r, appErr.Status, appErr.Code, appErr.Message)
}

// WriteValidationError writes a 400. Validator failures carry per-field
// messages; anything else is reported as INVALID_INPUT.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if !errors.As(err, &valErr) {
		WriteErrorCode(w, nil, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}
	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		},
	})
}

// PaginatedResponse is a page of T plus the counters a client needs to
// request the next one.
type PaginatedResponse[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// NewPaginatedResponse wraps one page of a listing. A nil page encodes as [].
func NewPaginatedResponse[T any](data []T, totalCount, page, perPage int) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if perPage > 0 {
		pages = (totalCount + perPage - 1) / perPage
	}
	return PaginatedResponse[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		PerPage:    perPage,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}

// ParseUUID parses a path parameter. On failure it writes a 400
// INVALID_PARAMETER and returns false.
func ParseUUID(w http.ResponseWriter, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(param)
	if err != nil {
		WriteErrorCode(w, nil, http.StatusBadRequest, "INVALID_PARAMETER", "invalid UUID: "+param)
		return uuid.Nil, false
	}
	return id, true
}
