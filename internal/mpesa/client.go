package mpesa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Client dispatches the six gateway operations. It is safe for concurrent use;
// calls share nothing but the configuration store.
type Client struct {
	store     *Store
	transport Transport
	resolve   func(Mode, Operation) (string, error)
	logger    *zap.SugaredLogger
}

type Option func(*Client)

// WithTransport replaces the HTTP transport, typically with a stub in tests.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithHTTPClient keeps the default transport but sends through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.transport = NewHTTPTransport(hc, DefaultTimeout) }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = l }
}

// WithResolver overrides endpoint resolution, e.g. to point at a local gateway mock.
func WithResolver(fn func(Mode, Operation) (string, error)) Option {
	return func(c *Client) { c.resolve = fn }
}

// NewClient builds a client that owns its configuration. apiKey, publicKey,
// origin and serviceProviderCode are required; mode defaults to sandbox.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	store := NewStore(cfg)
	if err := store.Get().Validate(); err != nil {
		return nil, err
	}
	return NewClientWithStore(store, opts...), nil
}

// NewClientWithStore builds a client over a store that may be shared. The store
// is checked on every dispatch rather than here.
func NewClientWithStore(store *Store, opts ...Option) *Client {
	c := &Client{
		store:     store,
		transport: NewHTTPTransport(nil, DefaultTimeout),
		resolve:   Resolve,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configuration returns a copy of the current configuration.
func (c *Client) Configuration() Config {
	return c.store.Get()
}

// UpdateConfiguration merges the non-empty fields of partial into the configuration.
func (c *Client) UpdateConfiguration(partial Config) {
	c.store.Update(partial)
}

func (c *Client) C2BPayment(ctx context.Context, req C2BPaymentRequest) (*Result[PaymentOutput], error) {
	if err := checkAmount(OpC2BPayment, "amount", req.Amount, false); err != nil {
		return nil, err
	}
	return dispatch[PaymentOutput](ctx, c, OpC2BPayment, func(cfg Config) map[string]string {
		return map[string]string{
			"input_TransactionReference": req.TransactionReference,
			"input_CustomerMSISDN":       req.MSISDN,
			"input_Amount":               formatAmount(req.Amount),
			"input_ThirdPartyReference":  req.ThirdPartyReference,
			"input_ServiceProviderCode":  cfg.ServiceProviderCode,
		}
	})
}

func (c *Client) B2CPayment(ctx context.Context, req B2CPaymentRequest) (*Result[PaymentOutput], error) {
	if err := checkAmount(OpB2CPayment, "amount", req.Amount, false); err != nil {
		return nil, err
	}
	return dispatch[PaymentOutput](ctx, c, OpB2CPayment, func(cfg Config) map[string]string {
		return map[string]string{
			"input_TransactionReference": req.TransactionReference,
			"input_CustomerMSISDN":       req.MSISDN,
			"input_Amount":               formatAmount(req.Amount),
			"input_ThirdPartyReference":  req.ThirdPartyReference,
			"input_ServiceProviderCode":  cfg.ServiceProviderCode,
		}
	})
}

func (c *Client) B2BPayment(ctx context.Context, req B2BPaymentRequest) (*Result[PaymentOutput], error) {
	if err := checkAmount(OpB2BPayment, "amount", req.Amount, false); err != nil {
		return nil, err
	}
	return dispatch[PaymentOutput](ctx, c, OpB2BPayment, func(cfg Config) map[string]string {
		return map[string]string{
			"input_TransactionReference": req.TransactionReference,
			"input_Amount":               formatAmount(req.Amount),
			"input_ThirdPartyReference":  req.ThirdPartyReference,
			"input_PrimaryPartyCode":     cfg.ServiceProviderCode,
			"input_ReceiverPartyCode":    req.ReceiverPartyCode,
		}
	})
}

func (c *Client) QueryTransactionStatus(ctx context.Context, req TransactionStatusRequest) (*Result[TransactionStatusOutput], error) {
	return dispatch[TransactionStatusOutput](ctx, c, OpQueryTransactionStatus, func(cfg Config) map[string]string {
		return map[string]string{
			"input_ThirdPartyReference": req.ThirdPartyReference,
			"input_QueryReference":      req.QueryReference,
			"input_ServiceProviderCode": cfg.ServiceProviderCode,
		}
	})
}

func (c *Client) Reversal(ctx context.Context, req ReversalRequest) (*Result[PaymentOutput], error) {
	if err := checkAmount(OpReversal, "reversal amount", req.ReversalAmount, true); err != nil {
		return nil, err
	}
	return dispatch[PaymentOutput](ctx, c, OpReversal, func(cfg Config) map[string]string {
		payload := map[string]string{
			"input_TransactionID":       req.TransactionID,
			"input_SecurityCredential":  req.SecurityCredential,
			"input_InitiatorIdentifier": req.InitiatorIdentifier,
			"input_ThirdPartyReference": req.ThirdPartyReference,
			"input_ServiceProviderCode": cfg.ServiceProviderCode,
		}
		if req.ReversalAmount > 0 {
			payload["input_ReversalAmount"] = formatAmount(req.ReversalAmount)
		}
		return payload
	})
}

func (c *Client) QueryCustomerName(ctx context.Context, req CustomerNameRequest) (*Result[CustomerNameOutput], error) {
	return dispatch[CustomerNameOutput](ctx, c, OpQueryCustomerName, func(cfg Config) map[string]string {
		return map[string]string{
			"input_CustomerMSISDN":      req.MSISDN,
			"input_ThirdPartyReference": req.ThirdPartyReference,
			"input_ServiceProviderCode": cfg.ServiceProviderCode,
		}
	})
}

// checkAmount rejects NaN, infinities and negative amounts. Zero is allowed
// only where the field is optional.
func checkAmount(op Operation, field string, amount float64, zeroAllowed bool) error {
	switch {
	case math.IsNaN(amount) || math.IsInf(amount, 0):
		return &RequestError{Operation: op, Field: field, Reason: "is not a finite number"}
	case amount < 0:
		return &RequestError{Operation: op, Field: field, Reason: "is negative"}
	case amount == 0 && !zeroAllowed:
		return &RequestError{Operation: op, Field: field, Reason: "must be greater than zero"}
	}
	return nil
}

// prepare runs the local half of a dispatch: precondition check, endpoint and
// token resolution, payload construction. It never touches the network.
func (c *Client) prepare(op Operation, build func(Config) map[string]string) (*Request, error) {
	cfg := c.store.Get()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	target, err := c.resolve(cfg.Mode, op)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	token, err := DeriveToken(cfg.APIKey, cfg.PublicKey)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	req := &Request{
		Operation: op,
		Method:    op.Method(),
		URL:       target,
		Header: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
			"Origin":        cfg.Origin,
		},
		Timeout: descriptors[op].timeout,
	}

	payload := build(cfg)
	if req.Method == http.MethodGet {
		req.Query = make(url.Values, len(payload))
		for k, v := range payload {
			req.Query.Set(k, v)
		}
		return req, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", op, err)
	}
	req.Body = body
	return req, nil
}

func dispatch[T any](ctx context.Context, c *Client, op Operation, build func(Config) map[string]string) (*Result[T], error) {
	req, err := c.prepare(op, build)
	if err != nil {
		return nil, err
	}

	c.logger.Debugw("mpesa dispatch", "operation", op.String(), "method", req.Method, "url", req.URL)

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		c.logger.Warnw("mpesa transport failure", "operation", op.String(), "err", err)
		return nil, &ExchangeError{
			Operation:  op,
			StatusCode: StatusUnavailable,
			Message:    err.Error(),
			Err:        err,
		}
	}
	if resp == nil {
		return nil, &ExchangeError{Operation: op, StatusCode: StatusUnavailable, Message: "transport returned no response"}
	}

	if Classify(resp.StatusCode) == OutcomeExchangeFailure {
		xerr := &ExchangeError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    statusMessage(resp),
		}
		if json.Valid(resp.Body) {
			xerr.Body = json.RawMessage(resp.Body)
		}
		c.logger.Warnw("mpesa gateway failure", "operation", op.String(), "status", resp.StatusCode)
		return nil, xerr
	}

	res, err := decodeResult[T](resp.StatusCode, resp.Body)
	if err != nil {
		c.logger.Warnw("mpesa non-conforming response", "operation", op.String(), "status", resp.StatusCode, "err", err)
		return nil, &ExchangeError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    "uninterpretable response: " + err.Error(),
			Err:        err,
		}
	}
	return res, nil
}

// statusMessage prefers the gateway's own output_error text over the status text.
func statusMessage(resp *Response) string {
	var be BusinessError
	if err := json.Unmarshal(resp.Body, &be); err == nil && be.Message != "" {
		return be.Message
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}

// IsExchangeError reports whether err is, or wraps, an *ExchangeError.
func IsExchangeError(err error) bool {
	var xerr *ExchangeError
	return errors.As(err, &xerr)
}
