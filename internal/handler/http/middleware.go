package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/utafrali/WholesaleGo/pkg/httputil"
	"github.com/utafrali/WholesaleGo/pkg/middleware"
	"github.com/utafrali/WholesaleGo/pkg/validator"
)

// ContentTypeJSON enforces Content-Type: application/json on requests that
// carry a body. Command endpoints such as post-stock are called without one.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasBody := r.ContentLength != 0 &&
			(r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch)
		if hasBody {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// tenant returns the caller's company id, writing 401 when the request was
// not authenticated with one.
func tenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	companyID, ok := middleware.CompanyIDFromContext(r.Context())
	if !ok {
		httputil.WriteErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing company")
		return uuid.Nil, false
	}
	return companyID, true
}

// decodeBody reads and validates a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteErrorCode(w, r, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: "+err.Error())
		return false
	}

	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}
