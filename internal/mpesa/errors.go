package mpesa

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// StatusUnavailable is reported by ExchangeError when no HTTP status was observed
// (network failure, timeout, cancelled context).
const StatusUnavailable = http.StatusInternalServerError

// ConfigurationError is returned before any network access when the client
// configuration is incomplete, invalid, or its key material cannot produce a token.
type ConfigurationError struct {
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return "mpesa: configuration error: missing " + strings.Join(e.Missing, ", ")
	case e.Err != nil:
		return "mpesa: configuration error: " + e.Err.Error()
	default:
		return "mpesa: configuration error"
	}
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// DerivationError reports that a bearer token could not be derived from the
// configured API key and public key.
type DerivationError struct {
	Err error
}

func (e *DerivationError) Error() string {
	return "mpesa: token derivation failed: " + e.Err.Error()
}

func (e *DerivationError) Unwrap() error { return e.Err }

// RequestError rejects a request before dispatch because one of its values
// could never be a valid gateway input.
type RequestError struct {
	Operation Operation
	Field     string
	Reason    string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("mpesa: invalid %s request: %s %s", e.Operation, e.Field, e.Reason)
}

// ExchangeError is returned when the request did not complete as a business
// exchange: the transport failed, the gateway answered with a 5xx, or the body
// could not be interpreted.
type ExchangeError struct {
	Operation  Operation
	StatusCode int
	Message    string
	// Body holds the gateway's error body when it was valid JSON.
	Body json.RawMessage
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("mpesa: %s exchange failed: http=%d: %s", e.Operation, e.StatusCode, e.Message)
}

func (e *ExchangeError) Unwrap() error { return e.Err }

// BusinessError is the gateway's own rejection body, e.g. {"output_error": "..."}.
// It is a value carried by Result, not a Go error.
type BusinessError struct {
	Message string `json:"output_error"`
}
