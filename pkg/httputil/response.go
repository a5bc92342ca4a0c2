package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is the error envelope every failing request resolves to:
// a JSON object {code, message, details?, hint?} with a matching HTTP status.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError constructs an APIError with the given HTTP status, code and message.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// WithDetails returns a copy of e carrying details text.
func (e *APIError) WithDetails(details string) *APIError {
	clone := *e
	clone.Details = details
	return &clone
}

// WithHint returns a copy of e carrying a hint for the client.
func (e *APIError) WithHint(hint string) *APIError {
	clone := *e
	clone.Hint = hint
	return &clone
}

// BindOrError decodes the JSON body of an HTTP request, r, into the given destination object, dst.
// If decoding fails, it responds with a 400 Bad Request error.
func BindOrError(r *http.Request, w http.ResponseWriter, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, NewAPIError(http.StatusBadRequest, "invalid_body", "invalid JSON body"))
		return err
	}
	return nil
}

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// Text writes a plain text response with the given status code and text content.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// Blob writes a binary response with the given status code and data.
func Blob(w http.ResponseWriter, statusCode int, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		http.Error(w, "Failed to write response", http.StatusInternalServerError)
	}
}

// WriteError serializes err as the JSON error envelope. Any error that is not
// an *APIError is reported as an opaque internal error so engine internals
// never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*APIError)
	if !ok {
		apiErr = NewAPIError(http.StatusInternalServerError, "internal_error", "internal server error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	if encErr := json.NewEncoder(w).Encode(apiErr); encErr != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

// Error sends a JSON error envelope with the given status code and message.
func Error(w http.ResponseWriter, statusCode int, message string) {
	WriteError(w, &APIError{Status: statusCode, Code: http.StatusText(statusCode), Message: message})
}
