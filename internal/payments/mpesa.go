package payments

import (
	"context"
	"fmt"
	"strings"

	"mpesa/internal/mpesa"
)

// ResponseCodeSuccess is the gateway code for a processed request.
const ResponseCodeSuccess = "INS-0"

// MpesaClient is the subset of *mpesa.Client the adapter drives.
type MpesaClient interface {
	C2BPayment(ctx context.Context, req mpesa.C2BPaymentRequest) (*mpesa.Result[mpesa.PaymentOutput], error)
	QueryTransactionStatus(ctx context.Context, req mpesa.TransactionStatusRequest) (*mpesa.Result[mpesa.TransactionStatusOutput], error)
	Reversal(ctx context.Context, req mpesa.ReversalRequest) (*mpesa.Result[mpesa.PaymentOutput], error)
}

// MpesaAdapter collects customer payments through C2B, verifies them with the
// status query and refunds them with a reversal.
type MpesaAdapter struct {
	client MpesaClient
}

func NewMpesaAdapter(client MpesaClient) *MpesaAdapter {
	return &MpesaAdapter{client: client}
}

func (m *MpesaAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	res, err := m.client.C2BPayment(ctx, mpesa.C2BPaymentRequest{
		Amount:               req.Amount,
		MSISDN:               req.CustomerPhone,
		TransactionReference: req.TransactionID,
		ThirdPartyReference:  req.Reference,
	})
	if err != nil {
		return PaymentResponse{}, fmt.Errorf("mpesa c2b: %w", err)
	}

	out := PaymentResponse{Raw: res.Raw}
	if res.Rejected() {
		out.Description = res.Error.Message
		return out, nil
	}

	out.Accepted = res.Output.ResponseCode == ResponseCodeSuccess
	out.ProviderRef = res.Output.TransactionID
	out.ConversationID = res.Output.ConversationID
	out.Code = res.Output.ResponseCode
	out.Description = res.Output.ResponseDesc
	return out, nil
}

func (m *MpesaAdapter) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	queryRef := strings.TrimSpace(req.TransactionID)
	if queryRef == "" {
		return PaymentVerifyResponse{Success: false}, fmt.Errorf("mpesa verify requires a transaction id")
	}

	res, err := m.client.QueryTransactionStatus(ctx, mpesa.TransactionStatusRequest{
		QueryReference:      queryRef,
		ThirdPartyReference: req.Reference,
	})
	if err != nil {
		return PaymentVerifyResponse{Success: false}, fmt.Errorf("mpesa status query: %w", err)
	}

	out := PaymentVerifyResponse{Raw: res.Raw}
	if res.Rejected() {
		// nothing is known about the transaction yet; keep it open
		out.State = res.Error.Message
		return out, nil
	}

	state := strings.TrimSpace(res.Output.TransactionStatus)
	out.State = state
	out.Code = res.Output.ResponseCode
	out.Success = res.Output.ResponseCode == ResponseCodeSuccess && strings.EqualFold(state, "Completed")

	switch strings.ToLower(state) {
	case "completed", "cancelled", "expired", "failed", "reversed":
		out.Terminal = true
	default:
		// pending, N/A or anything new: hold and re-check
		out.Terminal = false
	}
	return out, nil
}

func (m *MpesaAdapter) RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	res, err := m.client.Reversal(ctx, mpesa.ReversalRequest{
		TransactionID:       req.ProviderRef,
		SecurityCredential:  req.SecurityCredential,
		InitiatorIdentifier: req.InitiatorIdentifier,
		ThirdPartyReference: req.Reference,
		ReversalAmount:      req.Amount,
	})
	if err != nil {
		return RefundResponse{}, fmt.Errorf("mpesa reversal: %w", err)
	}

	out := RefundResponse{Raw: res.Raw}
	if res.Rejected() {
		out.Description = res.Error.Message
		return out, nil
	}

	out.Accepted = res.Output.ResponseCode == ResponseCodeSuccess
	out.ProviderRef = res.Output.TransactionID
	out.Code = res.Output.ResponseCode
	out.Description = res.Output.ResponseDesc
	return out, nil
}
