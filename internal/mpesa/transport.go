package mpesa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds lookups and reversals, which have no timeout of their own.
const DefaultTimeout = 30 * time.Second

// Request is one outbound exchange. Body is sent for POST and PUT; Query is
// encoded onto the URL for GET.
type Request struct {
	// Operation is informational; transports route on Method and URL.
	Operation Operation
	Method    string
	URL       string
	Header    map[string]string
	Body      []byte
	Query     url.Values
	Timeout   time.Duration
}

// Response is what came back. Transports return it for every status; only
// failures to complete the exchange are reported as errors.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport performs a single exchange.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is the net/http implementation of Transport.
type HTTPTransport struct {
	client         *http.Client
	defaultTimeout time.Duration
}

// NewHTTPTransport wraps client. A nil client uses a fresh http.Client;
// defaultTimeout applies to requests that carry no timeout of their own.
func NewHTTPTransport(client *http.Client, defaultTimeout time.Duration) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &HTTPTransport{client: client, defaultTimeout: defaultTimeout}
}

func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := req.URL
	if len(req.Query) > 0 {
		u, err := url.Parse(req.URL)
		if err != nil {
			return nil, fmt.Errorf("parse url: %w", err)
		}
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: raw}, nil
}
