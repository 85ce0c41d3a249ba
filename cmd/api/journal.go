package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mpesa/internal/mpesa"
	"mpesa/internal/params"
	"mpesa/internal/store"
)

// exchange outcomes since start, by operation and outcome
var exchangeCounts = expvar.NewMap("mpesa_exchanges")

// journalingTransport records every exchange that reaches the wire. Calls
// refused before dispatch (incomplete configuration, bad key material) never
// get here and are not recorded.
type journalingTransport struct {
	next     mpesa.Transport
	settings *mpesa.Store
	journal  store.Journal
	logger   *zap.SugaredLogger
}

func (t *journalingTransport) Do(ctx context.Context, req *mpesa.Request) (*mpesa.Response, error) {
	// the request was built for the host in its URL; settings may change mid-flight
	mode, ok := mpesa.ModeOf(req.URL)
	if !ok {
		mode = t.settings.Get().Mode
	}

	resp, err := t.next.Do(ctx, req)

	entry := newEntry(req, mode)
	switch {
	case err != nil:
		entry.HTTPStatus = mpesa.StatusUnavailable
		entry.Outcome = mpesa.OutcomeExchangeFailure.String()
		entry.ResponseDesc = err.Error()
	case resp == nil:
		entry.HTTPStatus = mpesa.StatusUnavailable
		entry.Outcome = mpesa.OutcomeExchangeFailure.String()
	default:
		entry.HTTPStatus = resp.StatusCode
		entry.Outcome = outcomeOf(resp).String()
		if json.Valid(resp.Body) {
			entry.Response = json.RawMessage(resp.Body)
			fillFromResponse(entry, resp.Body)
		}
	}

	exchangeCounts.Add(req.Operation.String()+"."+entry.Outcome, 1)

	// the journal outlives a cancelled request, and never fails the exchange
	if jerr := t.journal.Record(context.WithoutCancel(ctx), entry); jerr != nil {
		t.logger.Errorw("could not journal mpesa exchange",
			"operation", entry.Operation, "third_party_reference", entry.ThirdPartyReference, "err", jerr)
	}

	return resp, err
}

// outcomeOf mirrors the client's classification: a body that is not a JSON
// object cannot carry a business answer.
func outcomeOf(resp *mpesa.Response) mpesa.Outcome {
	if mpesa.Classify(resp.StatusCode) == mpesa.OutcomeExchangeFailure {
		return mpesa.OutcomeExchangeFailure
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(resp.Body), &fields); err != nil || fields == nil {
		return mpesa.OutcomeExchangeFailure
	}
	return mpesa.OutcomeBusiness
}

func newEntry(req *mpesa.Request, mode mpesa.Mode) *store.Entry {
	input := map[string]string{}
	if len(req.Body) > 0 {
		_ = json.Unmarshal(req.Body, &input)
	}
	for k := range req.Query {
		input[k] = req.Query.Get(k)
	}

	e := &store.Entry{
		Operation:            req.Operation.String(),
		Mode:                 string(mode),
		TransactionReference: input["input_TransactionReference"],
		ThirdPartyReference:  input["input_ThirdPartyReference"],
		MSISDN:               input["input_CustomerMSISDN"],
	}
	if e.TransactionReference == "" {
		// reversals and status queries point at an earlier transaction
		e.TransactionReference = input["input_TransactionID"] + input["input_QueryReference"]
	}

	amount := input["input_Amount"]
	if amount == "" {
		amount = input["input_ReversalAmount"]
	}
	if amount != "" {
		e.Amount, _ = strconv.ParseFloat(amount, 64)
	}
	return e
}

func fillFromResponse(e *store.Entry, body []byte) {
	var out struct {
		ResponseCode   string `json:"output_ResponseCode"`
		ResponseDesc   string `json:"output_ResponseDesc"`
		ConversationID string `json:"output_ConversationID"`
		TransactionID  string `json:"output_TransactionID"`
		Error          string `json:"output_error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return
	}
	e.ResponseCode = out.ResponseCode
	e.ResponseDesc = out.ResponseDesc
	if e.ResponseDesc == "" {
		e.ResponseDesc = out.Error
	}
	e.ConversationID = out.ConversationID
	e.GatewayTransactionID = out.TransactionID
}

// JournalPage is one page of recorded exchanges.
type JournalPage struct {
	Entries    []*store.Entry    `json:"entries"`
	Pagination params.Pagination `json:"pagination"`
}

// listJournalHandler godoc
//
//	@Summary	List recorded gateway exchanges
//	@Tags		journal
//	@Produce	json
//	@Param		page		query		int		false	"Page number"
//	@Param		limit		query		int		false	"Page size, at most 30"
//	@Param		operation	query		string	false	"e.g. c2bPayment"
//	@Success	200			{object}	JournalPage
//	@Security	ApiKeyAuth
//	@Router		/mpesa/journal [get]
func (app *application) listJournalHandler(w http.ResponseWriter, r *http.Request) {
	p := params.ParsePagination(r.URL.Query())

	operation := r.URL.Query().Get("operation")
	if operation != "" {
		if _, ok := mpesa.ParseOperation(operation); !ok {
			app.badRequestResponse(w, r, fmt.Errorf("unknown operation %q", operation))
			return
		}
	}

	entries, total, err := app.journal.List(r.Context(), operation, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)

	if entries == nil {
		entries = []*store.Entry{}
	}

	if err := app.jsonResponse(w, http.StatusOK, JournalPage{Entries: entries, Pagination: p}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getJournalHandler godoc
//
//	@Summary	Recorded exchanges for a third-party reference
//	@Tags		journal
//	@Produce	json
//	@Param		reference	path		string	true	"Third-party reference"
//	@Success	200			{array}		store.Entry
//	@Failure	404			{object}	error
//	@Security	ApiKeyAuth
//	@Router		/mpesa/journal/{reference} [get]
func (app *application) getJournalHandler(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "reference")

	entries, err := app.journal.GetByReference(r.Context(), ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, entries); err != nil {
		app.internalServerError(w, r, err)
	}
}
