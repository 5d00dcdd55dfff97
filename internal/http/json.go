package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/correlation"
	apperrors "github.com/SMASHLOUEWE12312312312/portal-cobranzas-sub001/internal/errors"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// Envelope is the JSON shape of every API response.
type Envelope struct {
	OK            bool       `json:"ok"`
	Data          any        `json:"data,omitempty"`
	Error         *ErrorBody `json:"error,omitempty"`
	CorrelationID string     `json:"correlationId"`
}

// ErrorBody is the error part of an Envelope. Detail is only filled in dev mode.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if _, err := buf.WriteTo(w); err != nil {
		// Response writer errors (e.g., client disconnect) can't be recovered from here.
		return
	}
}

// WriteOK writes a 200 success envelope.
func WriteOK(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, http.StatusOK, Envelope{
		OK:            true,
		Data:          data,
		CorrelationID: correlation.FromContext(r.Context()),
	})
}

// ErrorParams groups parameters for WriteAppError to adhere to the ≤3 params guideline.
type ErrorParams struct {
	Err error
	// Upstream marks an error returned by the backend call; SERVER_ERROR then maps to 502.
	Upstream bool
	Dev      bool
}

// WriteAppError writes the error envelope for p.Err. INVALID_TOKEN is reported as
// UNAUTHORIZED, errors outside the taxonomy as SERVER_ERROR, and causes only in dev mode.
func WriteAppError(w http.ResponseWriter, r *http.Request, p ErrorParams) {
	body := ErrorBody{Code: string(apperrors.ErrCodeServer), Message: "Internal server error"}

	var appErr *apperrors.AppError
	if errors.As(p.Err, &appErr) {
		code := appErr.Code
		if code == apperrors.ErrCodeInvalidToken {
			code = apperrors.ErrCodeUnauthorized
			appErr = apperrors.Unauthorized("Authentication required")
		}
		if apperrors.IsPublicCode(code) {
			body = ErrorBody{Code: string(code), Message: appErr.Message}
			if p.Dev {
				body.Detail = appErr.Detail
			}
		}
	}
	if p.Dev && body.Detail == "" && p.Err != nil {
		body.Detail = p.Err.Error()
	}

	WriteJSON(w, StatusFor(apperrors.ErrorCode(body.Code), p.Upstream), Envelope{
		OK:            false,
		Error:         &body,
		CorrelationID: correlation.FromContext(r.Context()),
	})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code apperrors.ErrorCode, upstream bool) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeAuthFailed, apperrors.ErrCodeUnauthorized, apperrors.ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeConfig:
		return http.StatusServiceUnavailable
	case apperrors.ErrCodeServer:
		if upstream {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSON decodes a JSON request body of at most MaxBodyBytes into dst.
// Failures are VALIDATION_ERROR.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Request body too large")
		}
		return apperrors.Wrap(err, apperrors.ErrCodeValidation, "Request body must be valid JSON")
	}
	if dec.More() {
		return apperrors.Validation("Request body must contain a single JSON value")
	}
	return nil
}

// decodeObjectBody reads an optional JSON object body. An empty body yields nil.
func decodeObjectBody(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "Request body too large")
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, apperrors.Validation("Request body must be a JSON object")
	}
	if dec.More() {
		return nil, apperrors.Validation("Request body must be a JSON object")
	}
	return obj, nil
}
