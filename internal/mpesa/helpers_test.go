package mpesa

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const testAPIKey = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

var (
	keyOnce    sync.Once
	testKey    *rsa.PrivateKey
	testPubB64 string
)

// testKeyPair returns a 2048-bit key shared by the package tests.
func testKeyPair(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	keyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
		if err != nil {
			panic(err)
		}
		testKey = k
		testPubB64 = base64.StdEncoding.EncodeToString(der)
	})
	return testKey, testPubB64
}

func testConfig(t *testing.T) Config {
	_, pub := testKeyPair(t)
	return Config{
		Mode:                ModeSandbox,
		APIKey:              testAPIKey,
		PublicKey:           pub,
		Origin:              "developer.mpesa.vm.co.mz",
		ServiceProviderCode: "171717",
	}
}

// decryptBearer recovers the API key from an Authorization header value.
func decryptBearer(t *testing.T, header string) string {
	t.Helper()
	priv, _ := testKeyPair(t)
	require.True(t, strings.HasPrefix(header, "Bearer "), "authorization header %q", header)
	ct, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Bearer "))
	require.NoError(t, err)
	pt, err := rsa.DecryptPKCS1v15(nil, priv, ct)
	require.NoError(t, err)
	return string(pt)
}

// newTestClient points every operation at an httptest server running handler,
// keeping the real path suffix.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(testConfig(t),
		WithHTTPClient(srv.Client()),
		WithResolver(func(mode Mode, op Operation) (string, error) {
			if _, err := Resolve(mode, op); err != nil {
				return "", err
			}
			return srv.URL + basePath + descriptors[op].path, nil
		}),
	)
	require.NoError(t, err)
	return c
}

// transportFunc adapts a function to Transport.
type transportFunc func(ctx context.Context, req *Request) (*Response, error)

func (f transportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// forbiddenTransport fails the test if any exchange is attempted.
func forbiddenTransport(t *testing.T) Transport {
	return transportFunc(func(ctx context.Context, req *Request) (*Response, error) {
		t.Errorf("transport must not be called, got %s %s", req.Method, req.URL)
		return nil, nil
	})
}

// callOp invokes op with fixed inputs and returns the raw body or error.
func callOp(ctx context.Context, c *Client, op Operation) (int, []byte, error) {
	switch op {
	case OpC2BPayment:
		r, err := c.C2BPayment(ctx, C2BPaymentRequest{Amount: 10, MSISDN: "258841234567", TransactionReference: "T1", ThirdPartyReference: "P1"})
		return unpack(r, err)
	case OpB2CPayment:
		r, err := c.B2CPayment(ctx, B2CPaymentRequest{Amount: 10, MSISDN: "258841234567", TransactionReference: "T1", ThirdPartyReference: "P1"})
		return unpack(r, err)
	case OpB2BPayment:
		r, err := c.B2BPayment(ctx, B2BPaymentRequest{Amount: 10, ReceiverPartyCode: "979797", TransactionReference: "T1", ThirdPartyReference: "P1"})
		return unpack(r, err)
	case OpQueryTransactionStatus:
		r, err := c.QueryTransactionStatus(ctx, TransactionStatusRequest{QueryReference: "Q1", ThirdPartyReference: "P1"})
		return unpack(r, err)
	case OpReversal:
		r, err := c.Reversal(ctx, ReversalRequest{TransactionID: "X1", SecurityCredential: "s", InitiatorIdentifier: "i", ThirdPartyReference: "P1"})
		return unpack(r, err)
	case OpQueryCustomerName:
		r, err := c.QueryCustomerName(ctx, CustomerNameRequest{MSISDN: "258841234567", ThirdPartyReference: "P1"})
		return unpack(r, err)
	}
	panic("unknown operation")
}

func unpack[T any](r *Result[T], err error) (int, []byte, error) {
	if err != nil {
		return 0, nil, err
	}
	return r.StatusCode, r.Raw, nil
}
