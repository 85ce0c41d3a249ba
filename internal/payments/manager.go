package payments

import (
	"context"
	"fmt"
	"sort"
)

type PaymentManager struct {
	gateways map[string]PaymentGateway
}

func NewPaymentManager() *PaymentManager {
	return &PaymentManager{gateways: make(map[string]PaymentGateway)}
}

func (m *PaymentManager) RegisterGateway(name string, gateway PaymentGateway) {
	m.gateways[name] = gateway
}

// Methods lists registered gateway names, sorted.
func (m *PaymentManager) Methods() []string {
	names := make([]string, 0, len(m.gateways))
	for name := range m.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *PaymentManager) gateway(method string) (PaymentGateway, error) {
	gateway, ok := m.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGatewayNotRegistered, method)
	}
	return gateway, nil
}

func (m *PaymentManager) InitiatePayment(ctx context.Context, method string, req PaymentRequest) (PaymentResponse, error) {
	gateway, err := m.gateway(method)
	if err != nil {
		return PaymentResponse{}, err
	}
	return gateway.InitiatePayment(ctx, req)
}

func (m *PaymentManager) VerifyPayment(ctx context.Context, method string, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	gateway, err := m.gateway(method)
	if err != nil {
		return PaymentVerifyResponse{}, err
	}
	return gateway.VerifyPayment(ctx, req)
}

func (m *PaymentManager) RefundPayment(ctx context.Context, method string, req RefundRequest) (RefundResponse, error) {
	gateway, err := m.gateway(method)
	if err != nil {
		return RefundResponse{}, err
	}
	return gateway.RefundPayment(ctx, req)
}
