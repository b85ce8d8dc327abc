package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"circolo/internal/core"
	"circolo/internal/ledger"
	applog "circolo/internal/log"
	"circolo/internal/services"
)

const maxBodyBytes = 1 << 20

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

func errorBody(kind, msg string) errorResponse {
	return errorResponse{Error: errorDetail{Kind: kind, Message: msg}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// headers are gone already, nothing left to report to the client
		return
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(err error) (int, string) {
	if errors.Is(err, services.ErrAuditQueueUnavailable) {
		return http.StatusServiceUnavailable, "unavailable"
	}
	switch kind := core.ErrorKind(err); kind {
	case core.KindValidation, core.KindParse:
		return http.StatusBadRequest, kind
	case core.KindNotFound:
		return http.StatusNotFound, kind
	case core.KindConflict:
		return http.StatusConflict, kind
	default:
		return http.StatusInternalServerError, core.KindInternal
	}
}

// writeError answers with the error envelope. Internal errors are logged and
// their message is not leaked to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := statusFor(err)
	msg := err.Error()
	logger := applog.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op, nil)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			applog.FieldOperation, op,
			applog.FieldErrorKind, kind,
			applog.FieldError, err.Error())
	}
	writeJSON(w, status, errorBody(kind, msg))
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &core.ValidationError{Field: "body", Msg: fmt.Sprintf("invalid JSON: %v", err)}
	}
	return nil
}

// intParam reads an optional integer query parameter.
func intParam(r *http.Request, name string, def int64) (int64, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &core.ValidationError{Field: name, Msg: fmt.Sprintf("not an integer: %q", v)}
	}
	return n, nil
}

// pathID reads a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, &core.ValidationError{Field: name, Msg: fmt.Sprintf("invalid id %q", v)}
	}
	return n, nil
}

// parseReportQuery reads type, method, start and end. Missing bounds leave
// that side of the range open.
func parseReportQuery(r *http.Request) (ledger.Filter, core.DateRange, error) {
	typ, err := intParam(r, "type", int64(ledger.TypeAll))
	if err != nil {
		return ledger.Filter{}, core.DateRange{}, err
	}
	method, err := intParam(r, "method", int64(core.PaymentUnset))
	if err != nil {
		return ledger.Filter{}, core.DateRange{}, err
	}
	f := ledger.Filter{Type: ledger.TypeFilter(typ), Method: core.PaymentMethod(method)}
	if err := f.Validate(); err != nil {
		return ledger.Filter{}, core.DateRange{}, err
	}

	q := r.URL.Query()
	period, err := core.NewDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		return ledger.Filter{}, core.DateRange{}, err
	}
	return f, period, nil
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
