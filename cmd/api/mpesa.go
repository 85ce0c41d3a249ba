package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"mpesa/internal/mpesa"
)

// GatewayResponse carries a business answer from the gateway. Rejected is set
// when the gateway replied with output_error; Response is its body unchanged.
type GatewayResponse struct {
	Operation     string          `json:"operation"`
	GatewayStatus int             `json:"gateway_status"`
	Rejected      bool            `json:"rejected"`
	Response      json.RawMessage `json:"response"`
}

func respondResult[T any](app *application, w http.ResponseWriter, r *http.Request, op mpesa.Operation, res *mpesa.Result[T], err error) {
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, GatewayResponse{
		Operation:     op.String(),
		GatewayStatus: res.StatusCode,
		Rejected:      res.Rejected(),
		Response:      res.Raw,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// fillReferences generates whichever references the caller left empty.
// A nil pointer means the operation has no such reference.
func (app *application) fillReferences(transactionRef, thirdPartyRef *string) error {
	if transactionRef != nil && *transactionRef == "" {
		*transactionRef = app.references.TransactionReference()
	}
	if thirdPartyRef != nil && *thirdPartyRef == "" {
		ref, err := app.references.ThirdPartyReference()
		if err != nil {
			return err
		}
		*thirdPartyRef = ref
	}
	return nil
}

// decodeOperation reads, completes and validates a JSON operation payload.
func decodeOperation(app *application, w http.ResponseWriter, r *http.Request, payload any, transactionRef, thirdPartyRef *string) bool {
	if err := readJSON(w, r, payload); err != nil {
		app.badRequestResponse(w, r, err)
		return false
	}
	if err := app.fillReferences(transactionRef, thirdPartyRef); err != nil {
		app.internalServerError(w, r, err)
		return false
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return false
	}
	return true
}

// c2bPaymentHandler godoc
//
//	@Summary		Collect a payment from a customer
//	@Tags			mpesa
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		mpesa.C2BPaymentRequest	true	"References are generated when empty"
//	@Success		200		{object}	GatewayResponse
//	@Failure		400		{object}	error
//	@Failure		502		{object}	error
//	@Failure		503		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/mpesa/c2b [post]
func (app *application) c2bPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req mpesa.C2BPaymentRequest
	if !decodeOperation(app, w, r, &req, &req.TransactionReference, &req.ThirdPartyReference) {
		return
	}

	res, err := app.mpesa.C2BPayment(r.Context(), req)
	respondResult(app, w, r, mpesa.OpC2BPayment, res, err)
}

// b2cPaymentHandler godoc
//
//	@Summary	Pay out to a customer
//	@Tags		mpesa
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		mpesa.B2CPaymentRequest	true	"References are generated when empty"
//	@Success	200		{object}	GatewayResponse
//	@Security	ApiKeyAuth
//	@Router		/mpesa/b2c [post]
func (app *application) b2cPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req mpesa.B2CPaymentRequest
	if !decodeOperation(app, w, r, &req, &req.TransactionReference, &req.ThirdPartyReference) {
		return
	}

	res, err := app.mpesa.B2CPayment(r.Context(), req)
	respondResult(app, w, r, mpesa.OpB2CPayment, res, err)
}

// b2bPaymentHandler godoc
//
//	@Summary	Pay another business
//	@Tags		mpesa
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		mpesa.B2BPaymentRequest	true	"References are generated when empty"
//	@Success	200		{object}	GatewayResponse
//	@Security	ApiKeyAuth
//	@Router		/mpesa/b2b [post]
func (app *application) b2bPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req mpesa.B2BPaymentRequest
	if !decodeOperation(app, w, r, &req, &req.TransactionReference, &req.ThirdPartyReference) {
		return
	}

	res, err := app.mpesa.B2BPayment(r.Context(), req)
	respondResult(app, w, r, mpesa.OpB2BPayment, res, err)
}

// reversalHandler godoc
//
//	@Summary	Reverse a transaction
//	@Tags		mpesa
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		mpesa.ReversalRequest	true	"Omit reversal_amount to reverse in full"
//	@Success	200		{object}	GatewayResponse
//	@Security	ApiKeyAuth
//	@Router		/mpesa/reversal [put]
func (app *application) reversalHandler(w http.ResponseWriter, r *http.Request) {
	var req mpesa.ReversalRequest
	if !decodeOperation(app, w, r, &req, nil, &req.ThirdPartyReference) {
		return
	}

	res, err := app.mpesa.Reversal(r.Context(), req)
	respondResult(app, w, r, mpesa.OpReversal, res, err)
}

// transactionStatusHandler godoc
//
//	@Summary	Query a transaction's status
//	@Tags		mpesa
//	@Produce	json
//	@Param		query_reference			query		string	true	"Gateway transaction id or the original reference"
//	@Param		third_party_reference	query		string	false	"Generated when empty"
//	@Success	200						{object}	GatewayResponse
//	@Security	ApiKeyAuth
//	@Router		/mpesa/transactions/status [get]
func (app *application) transactionStatusHandler(w http.ResponseWriter, r *http.Request) {
	req := mpesa.TransactionStatusRequest{
		QueryReference:      r.URL.Query().Get("query_reference"),
		ThirdPartyReference: r.URL.Query().Get("third_party_reference"),
	}
	if err := app.fillReferences(nil, &req.ThirdPartyReference); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := Validate.Struct(req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	res, err := app.mpesa.QueryTransactionStatus(r.Context(), req)
	respondResult(app, w, r, mpesa.OpQueryTransactionStatus, res, err)
}

// customerNameHandler godoc
//
//	@Summary	Look up the registered name behind an MSISDN
//	@Tags		mpesa
//	@Produce	json
//	@Param		msisdn					path		string	true	"e.g. 258843330333"
//	@Param		third_party_reference	query		string	false	"Generated when empty"
//	@Success	200						{object}	GatewayResponse
//	@Security	ApiKeyAuth
//	@Router		/mpesa/customers/{msisdn} [get]
func (app *application) customerNameHandler(w http.ResponseWriter, r *http.Request) {
	req := mpesa.CustomerNameRequest{
		MSISDN:              chi.URLParam(r, "msisdn"),
		ThirdPartyReference: r.URL.Query().Get("third_party_reference"),
	}
	if err := Validate.Var(req.MSISDN, "required,msisdn"); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := app.fillReferences(nil, &req.ThirdPartyReference); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if err := Validate.Struct(req); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	res, err := app.mpesa.QueryCustomerName(r.Context(), req)
	respondResult(app, w, r, mpesa.OpQueryCustomerName, res, err)
}
