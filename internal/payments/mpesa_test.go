package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mpesa/internal/mpesa"
)

type fakeMpesa struct {
	c2b      func(mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error)
	status   func(mpesa.TransactionStatusRequest) (*mpesa.Result[mpesa.TransactionStatusOutput], error)
	reversal func(mpesa.ReversalRequest) (*mpesa.Result[mpesa.PaymentOutput], error)
}

func (f *fakeMpesa) C2BPayment(_ context.Context, req mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
	return f.c2b(req)
}

func (f *fakeMpesa) QueryTransactionStatus(_ context.Context, req mpesa.TransactionStatusRequest) (*mpesa.Result[mpesa.TransactionStatusOutput], error) {
	return f.status(req)
}

func (f *fakeMpesa) Reversal(_ context.Context, req mpesa.ReversalRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
	return f.reversal(req)
}

func paymentResult(status int, out *mpesa.PaymentOutput, be *mpesa.BusinessError) *mpesa.Result[mpesa.PaymentOutput] {
	var raw []byte
	if out != nil {
		raw, _ = json.Marshal(out)
	} else {
		raw, _ = json.Marshal(be)
	}
	return &mpesa.Result[mpesa.PaymentOutput]{StatusCode: status, Output: out, Error: be, Raw: raw}
}

func TestMpesaAdapter_InitiatePayment(t *testing.T) {
	var got mpesa.C2BPaymentRequest
	a := NewMpesaAdapter(&fakeMpesa{c2b: func(req mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
		got = req
		return paymentResult(http.StatusCreated, &mpesa.PaymentOutput{
			ConversationID: "C1",
			TransactionID:  "X1",
			ResponseCode:   "INS-0",
			ResponseDesc:   "Request processed successfully",
		}, nil), nil
	}})

	resp, err := a.InitiatePayment(context.Background(), PaymentRequest{
		TransactionID: "T1",
		Reference:     "P1",
		Amount:        10,
		CustomerPhone: "258841234567",
	})
	require.NoError(t, err)

	assert.Equal(t, mpesa.C2BPaymentRequest{Amount: 10, MSISDN: "258841234567", TransactionReference: "T1", ThirdPartyReference: "P1"}, got)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "X1", resp.ProviderRef)
	assert.Equal(t, "C1", resp.ConversationID)
	assert.Equal(t, "INS-0", resp.Code)
	assert.NotEmpty(t, resp.Raw)
}

func TestMpesaAdapter_InitiatePaymentBusinessRejections(t *testing.T) {
	cases := []struct {
		name string
		res  *mpesa.Result[mpesa.PaymentOutput]
		desc string
		code string
	}{
		{
			name: "response code",
			res:  paymentResult(http.StatusUnprocessableEntity, &mpesa.PaymentOutput{ResponseCode: "INS-2006", ResponseDesc: "Insufficient balance"}, nil),
			desc: "Insufficient balance",
			code: "INS-2006",
		},
		{
			name: "output error",
			res:  paymentResult(http.StatusUnauthorized, nil, &mpesa.BusinessError{Message: "Invalid API key"}),
			desc: "Invalid API key",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewMpesaAdapter(&fakeMpesa{c2b: func(mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
				return tc.res, nil
			}})

			resp, err := a.InitiatePayment(context.Background(), PaymentRequest{TransactionID: "T1", Reference: "P1", Amount: 10, CustomerPhone: "258841234567"})
			require.NoError(t, err)
			assert.False(t, resp.Accepted)
			assert.Equal(t, tc.desc, resp.Description)
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestMpesaAdapter_InitiatePaymentPropagatesExchangeErrors(t *testing.T) {
	xerr := &mpesa.ExchangeError{Operation: mpesa.OpC2BPayment, StatusCode: 503, Message: "Service Unavailable"}
	a := NewMpesaAdapter(&fakeMpesa{c2b: func(mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
		return nil, xerr
	}})

	_, err := a.InitiatePayment(context.Background(), PaymentRequest{TransactionID: "T1", Reference: "P1", Amount: 10, CustomerPhone: "258841234567"})
	require.Error(t, err)

	var got *mpesa.ExchangeError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, 503, got.StatusCode)
}

func TestMpesaAdapter_VerifyPayment(t *testing.T) {
	cases := []struct {
		state    string
		code     string
		success  bool
		terminal bool
	}{
		{"Completed", "INS-0", true, true},
		{"completed", "INS-0", true, true},
		{"Pending", "INS-0", false, false},
		{"Cancelled", "INS-0", false, true},
		{"Expired", "INS-0", false, true},
		{"N/A", "INS-0", false, false},
		{"Completed", "INS-996", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.state+"/"+tc.code, func(t *testing.T) {
			var got mpesa.TransactionStatusRequest
			a := NewMpesaAdapter(&fakeMpesa{status: func(req mpesa.TransactionStatusRequest) (*mpesa.Result[mpesa.TransactionStatusOutput], error) {
				got = req
				return &mpesa.Result[mpesa.TransactionStatusOutput]{
					StatusCode: http.StatusOK,
					Output:     &mpesa.TransactionStatusOutput{ResponseCode: tc.code, TransactionStatus: tc.state},
				}, nil
			}})

			resp, err := a.VerifyPayment(context.Background(), PaymentVerifyRequest{TransactionID: " X1 ", Reference: "P2"})
			require.NoError(t, err)
			assert.Equal(t, mpesa.TransactionStatusRequest{QueryReference: "X1", ThirdPartyReference: "P2"}, got)
			assert.Equal(t, tc.success, resp.Success)
			assert.Equal(t, tc.terminal, resp.Terminal)
			assert.Equal(t, tc.code, resp.Code)
		})
	}
}

func TestMpesaAdapter_VerifyPaymentRequiresTransactionID(t *testing.T) {
	a := NewMpesaAdapter(&fakeMpesa{status: func(mpesa.TransactionStatusRequest) (*mpesa.Result[mpesa.TransactionStatusOutput], error) {
		t.Fatal("status query must not be sent")
		return nil, nil
	}})

	_, err := a.VerifyPayment(context.Background(), PaymentVerifyRequest{TransactionID: "  "})
	assert.Error(t, err)
}

func TestMpesaAdapter_VerifyPaymentRejectedStaysOpen(t *testing.T) {
	a := NewMpesaAdapter(&fakeMpesa{status: func(mpesa.TransactionStatusRequest) (*mpesa.Result[mpesa.TransactionStatusOutput], error) {
		return &mpesa.Result[mpesa.TransactionStatusOutput]{StatusCode: http.StatusBadRequest, Error: &mpesa.BusinessError{Message: "Invalid reference"}}, nil
	}})

	resp, err := a.VerifyPayment(context.Background(), PaymentVerifyRequest{TransactionID: "X1", Reference: "P2"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.False(t, resp.Terminal)
	assert.Equal(t, "Invalid reference", resp.State)
}

func TestMpesaAdapter_RefundPayment(t *testing.T) {
	var got mpesa.ReversalRequest
	a := NewMpesaAdapter(&fakeMpesa{reversal: func(req mpesa.ReversalRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
		got = req
		return paymentResult(http.StatusOK, &mpesa.PaymentOutput{TransactionID: "R1", ResponseCode: "INS-0", ResponseDesc: "ok"}, nil), nil
	}})

	resp, err := a.RefundPayment(context.Background(), RefundRequest{
		ProviderRef:         "X1",
		Reference:           "P3",
		Amount:              2.5,
		SecurityCredential:  "cred",
		InitiatorIdentifier: "init",
	})
	require.NoError(t, err)
	assert.Equal(t, mpesa.ReversalRequest{
		TransactionID:       "X1",
		SecurityCredential:  "cred",
		InitiatorIdentifier: "init",
		ThirdPartyReference: "P3",
		ReversalAmount:      2.5,
	}, got)
	assert.True(t, resp.Accepted)
	assert.Equal(t, "R1", resp.ProviderRef)
}

func TestPaymentManager(t *testing.T) {
	m := NewPaymentManager()
	m.RegisterGateway("mpesa", NewMpesaAdapter(&fakeMpesa{c2b: func(mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error) {
		return paymentResult(http.StatusOK, &mpesa.PaymentOutput{ResponseCode: "INS-0"}, nil), nil
	}}))

	assert.Equal(t, []string{"mpesa"}, m.Methods())

	resp, err := m.InitiatePayment(context.Background(), "mpesa", PaymentRequest{TransactionID: "T1", Reference: "P1", Amount: 1, CustomerPhone: "258841234567"})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)

	_, err = m.InitiatePayment(context.Background(), "khalti", PaymentRequest{})
	assert.True(t, errors.Is(err, ErrGatewayNotRegistered))
	_, err = m.VerifyPayment(context.Background(), "khalti", PaymentVerifyRequest{})
	assert.ErrorIs(t, err, ErrGatewayNotRegistered)
	_, err = m.RefundPayment(context.Background(), "khalti", RefundRequest{})
	assert.ErrorIs(t, err, ErrGatewayNotRegistered)
}
