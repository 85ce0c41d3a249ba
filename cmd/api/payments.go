package main

import (
	"fmt"
	"net/http"

	"mpesa/internal/payments"
)

func checkoutMethod(r *http.Request) (string, error) {
	method := r.URL.Query().Get("method")
	if method == "" {
		return "", fmt.Errorf("missing method query param")
	}
	return method, nil
}

// CheckoutHandler godoc
//
//	@Summary		Start a checkout
//	@Description	Asks the customer to approve the payment on their phone. The call returns once they accept, decline or the gateway gives up.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			method	query		string						true	"Payment method, e.g. mpesa"
//	@Param			payload	body		payments.PaymentRequest		true	"References are generated when empty"
//	@Success		200		{object}	payments.PaymentResponse
//	@Failure		400		{object}	error
//	@Failure		502		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/checkout [post]
func (app *application) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	method, err := checkoutMethod(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload payments.PaymentRequest
	if !decodeOperation(app, w, r, &payload, &payload.TransactionID, &payload.Reference) {
		return
	}

	resp, err := app.payments.InitiatePayment(r.Context(), method, payload)
	if err != nil {
		app.gatewayErrorResponse(w, r, fmt.Errorf("failed to initiate payment: %w", err))
		return
	}

	if !resp.Accepted {
		app.logger.Infow("checkout declined", "method", method, "reference", payload.Reference,
			"code", resp.Code, "description", resp.Description)
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// VerifyCheckoutHandler godoc
//
//	@Summary	Check how a checkout ended
//	@Tags		checkout
//	@Accept		json
//	@Produce	json
//	@Param		method	query		string							true	"Payment method, e.g. mpesa"
//	@Param		payload	body		payments.PaymentVerifyRequest	true	"Reference is generated when empty"
//	@Success	200		{object}	payments.PaymentVerifyResponse
//	@Security	ApiKeyAuth
//	@Router		/checkout/verify [post]
func (app *application) VerifyCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	method, err := checkoutMethod(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload payments.PaymentVerifyRequest
	if !decodeOperation(app, w, r, &payload, nil, &payload.Reference) {
		return
	}

	resp, err := app.payments.VerifyPayment(r.Context(), method, payload)
	if err != nil {
		app.gatewayErrorResponse(w, r, fmt.Errorf("failed to verify payment: %w", err))
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}

// RefundCheckoutHandler godoc
//
//	@Summary		Refund a checkout
//	@Description	Reverses a completed payment, fully or by the given amount.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			method	query		string					true	"Payment method, e.g. mpesa"
//	@Param			payload	body		payments.RefundRequest	true	"Amount 0 reverses the whole payment; reference is generated when empty"
//	@Success		200		{object}	payments.RefundResponse
//	@Failure		400		{object}	error
//	@Failure		502		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/checkout/refund [post]
func (app *application) RefundCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	method, err := checkoutMethod(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload payments.RefundRequest
	if !decodeOperation(app, w, r, &payload, nil, &payload.Reference) {
		return
	}

	resp, err := app.payments.RefundPayment(r.Context(), method, payload)
	if err != nil {
		app.gatewayErrorResponse(w, r, fmt.Errorf("failed to refund payment: %w", err))
		return
	}

	if !resp.Accepted {
		app.logger.Infow("refund declined", "method", method, "reference", payload.Reference,
			"code", resp.Code, "description", resp.Description)
	}

	if err := app.jsonResponse(w, http.StatusOK, resp); err != nil {
		app.internalServerError(w, r, err)
	}
}
