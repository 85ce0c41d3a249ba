package payments

import (
	"context"
	"errors"
)

var ErrGatewayNotRegistered = errors.New("gateway not registered")

// PaymentGateway defines a common interface for all payment providers
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
	VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error)
	RefundPayment(ctx context.Context, req RefundRequest) (RefundResponse, error)
}
