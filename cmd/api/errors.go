package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"mpesa/internal/mpesa"
	"mpesa/internal/payments"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

func (app *application) serviceUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("service unavailable", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusServiceUnavailable, err.Error())
}

// badGatewayResponse reports an exchange that produced no business answer,
// passing through what the gateway said, if anything.
func (app *application) badGatewayResponse(w http.ResponseWriter, r *http.Request, xerr *mpesa.ExchangeError) {
	app.logger.Errorw("gateway exchange failed", "method", r.Method, "path", r.URL.Path,
		"operation", xerr.Operation.String(), "gateway_status", xerr.StatusCode, "error", xerr.Message)

	writeJSON(w, http.StatusBadGateway, &struct {
		Success         bool            `json:"success"`
		Message         string          `json:"message"`
		Status          int             `json:"status"`
		Operation       string          `json:"operation"`
		GatewayStatus   int             `json:"gateway_status"`
		GatewayResponse json.RawMessage `json:"gateway_response,omitempty"`
	}{
		Message:         xerr.Message,
		Status:          http.StatusBadGateway,
		Operation:       xerr.Operation.String(),
		GatewayStatus:   xerr.StatusCode,
		GatewayResponse: xerr.Body,
	})
}

// gatewayErrorResponse maps gateway client errors onto HTTP responses.
func (app *application) gatewayErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		xerr *mpesa.ExchangeError
		cerr *mpesa.ConfigurationError
		rerr *mpesa.RequestError
	)
	switch {
	case errors.As(err, &xerr):
		app.badGatewayResponse(w, r, xerr)
	case errors.As(err, &cerr):
		app.serviceUnavailableResponse(w, r, cerr)
	case errors.As(err, &rerr), errors.Is(err, payments.ErrGatewayNotRegistered):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}
