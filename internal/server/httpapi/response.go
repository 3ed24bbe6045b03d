package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/homedock/internal/common"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

type errorKind struct {
	target error
	status int
	code   string
	detail bool
}

// errorKinds maps sentinels to responses. Only validation errors carry
// their wrapped detail; everything else answers with the sentinel text.
var errorKinds = []errorKind{
	{common.ErrValidation, http.StatusBadRequest, "validation_error", true},
	{common.ErrDuplicateUsername, http.StatusBadRequest, "duplicate_username", false},
	{common.ErrDuplicateRole, http.StatusConflict, "duplicate_role", false},
	{common.ErrSystemRole, http.StatusBadRequest, "system_role", false},
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", false},
	{common.ErrInvalidRefreshToken, http.StatusUnauthorized, "invalid_refresh_token", false},
	{common.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", false},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "unauthorized", false},
	{common.ErrForbidden, http.StatusForbidden, "forbidden", false},
	{common.ErrorNotFound, http.StatusNotFound, "not_found", false},
	{common.ErrTamperedOrCorrupt, http.StatusUnprocessableEntity, "tampered_or_corrupt", false},
}

// classify returns the response for err. Unknown errors are infrastructure
// failures: 503 and retryable, with no detail.
func classify(err error) (int, ErrorBody) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			msg := k.target.Error()
			if k.detail {
				msg = err.Error()
			}
			return k.status, ErrorBody{Error: msg, Code: k.code}
		}
	}
	return http.StatusServiceUnavailable, ErrorBody{
		Error:     "service temporarily unavailable",
		Code:      "unavailable",
		Retryable: true,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status == http.StatusServiceUnavailable {
		a.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body into v. An empty body leaves v untouched when
// optional is set.
func decode(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON body", common.ErrValidation)
	}
	return nil
}
