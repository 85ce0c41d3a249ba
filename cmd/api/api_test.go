package main

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mpesa/internal/auth"
	"mpesa/internal/mpesa"
	"mpesa/internal/ratelimiter"
	"mpesa/internal/reference"
	"mpesa/internal/store"
)

const (
	testOperator = "ops"
	testPassword = "s3cret-pass"
)

var (
	keyOnce    sync.Once
	testPubKey string
	hashOnce   sync.Once
	testHash   string
)

func testPublicKey(t *testing.T) string {
	t.Helper()
	keyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			panic(err)
		}
		testPubKey = base64.StdEncoding.EncodeToString(der)
	})
	return testPubKey
}

func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := auth.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		testHash = h
	})
	return testHash
}

type transportFunc func(ctx context.Context, req *mpesa.Request) (*mpesa.Response, error)

func (f transportFunc) Do(ctx context.Context, req *mpesa.Request) (*mpesa.Response, error) {
	return f(ctx, req)
}

// recordingTransport answers every exchange with the same status and body.
type recordingTransport struct {
	mu       sync.Mutex
	status   int
	body     string
	err      error
	requests []*mpesa.Request
}

func (t *recordingTransport) Do(_ context.Context, req *mpesa.Request) (*mpesa.Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.err != nil {
		return nil, t.err
	}
	return &mpesa.Response{StatusCode: t.status, Body: []byte(t.body)}, nil
}

func (t *recordingTransport) calls() []*mpesa.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*mpesa.Request(nil), t.requests...)
}

// memJournal keeps entries in memory in insertion order.
type memJournal struct {
	mu      sync.Mutex
	entries []*store.Entry
	fail    error
}

func (j *memJournal) Record(_ context.Context, e *store.Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.fail != nil {
		return j.fail
	}
	e.ID = int64(len(j.entries) + 1)
	e.CreatedAt = time.Now()
	j.entries = append(j.entries, e)
	return nil
}

func (j *memJournal) GetByReference(_ context.Context, ref string) ([]*store.Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []*store.Entry
	for _, e := range j.entries {
		if e.ThirdPartyReference == ref {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (j *memJournal) List(_ context.Context, operation string, limit, offset int) ([]*store.Entry, int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var matched []*store.Entry
	for _, e := range j.entries {
		if operation == "" || e.Operation == operation {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(a, b int) bool { return matched[a].ID > matched[b].ID })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return matched[offset:end], total, nil
}

func (j *memJournal) all() []*store.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*store.Entry(nil), j.entries...)
}

func testConfig(t *testing.T) config {
	t.Helper()
	return config{
		addr: ":0",
		env:  "test",
		mpesa: mpesa.Config{
			Mode:                mpesa.ModeSandbox,
			APIKey:              "test-api-key",
			PublicKey:           testPublicKey(t),
			Origin:              "developer.mpesa.vm.co.mz",
			ServiceProviderCode: "171717",
		},
		auth: authConfig{
			basic: auth.Credentials{Username: testOperator, PasswordHash: testPasswordHash(t)},
			token: tokenConfig{secret: "access", refreshSecret: "refresh", iss: "mpesa"},
		},
		referenceSecret: "ref-secret",
		rateLimiter:     ratelimiter.Config{RequestsPerTimeFrame: 100, TimeFrame: time.Minute, Enabled: false},
	}
}

type testApp struct {
	*application
	handler http.Handler
	journal *memJournal
}

func newTestApplication(t *testing.T, cfg config, transport mpesa.Transport) *testApp {
	t.Helper()

	refs, err := reference.NewGenerator(cfg.referenceSecret)
	require.NoError(t, err)

	limiter := ratelimiter.NewFixedWindowLimiter(cfg.rateLimiter.RequestsPerTimeFrame, cfg.rateLimiter.TimeFrame)
	t.Cleanup(limiter.Stop)

	journal := &memJournal{}
	app := newApplication(cfg, zap.NewNop().Sugar(), journal, refs,
		auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.refreshSecret, cfg.auth.token.iss, cfg.auth.token.iss),
		limiter, transport)

	return &testApp{application: app, handler: app.mount(), journal: journal}
}

func (a *testApp) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range header {
		req.Header[k] = v
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) bearer(t *testing.T) http.Header {
	t.Helper()
	access, _, err := a.authenticator.GenerateTokens(testOperator)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + access}}
}

func basicHeader(user, pass string) http.Header {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(user, pass)
	return http.Header{"Authorization": {req.Header.Get("Authorization")}}
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v), rec.Body.String())
}

type errorEnvelope struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	Status          int             `json:"status"`
	Operation       string          `json:"operation"`
	GatewayStatus   int             `json:"gateway_status"`
	GatewayResponse json.RawMessage `json:"gateway_response"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

var errNetwork = errors.New("dial tcp: connection refused")
