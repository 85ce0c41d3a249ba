package mpesa

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Mode string

const (
	ModeSandbox    Mode = "sandbox"
	ModeProduction Mode = "production"
)

const (
	SandboxHost    = "https://api.sandbox.vm.co.mz"
	ProductionHost = "https://api.vm.co.mz"

	basePath = "/ipg/v1x/"

	// Payment initiations wait on the customer confirming on the handset.
	paymentTimeout = 2 * time.Minute
)

type Operation int

const (
	OpC2BPayment Operation = iota + 1
	OpB2CPayment
	OpB2BPayment
	OpQueryTransactionStatus
	OpReversal
	OpQueryCustomerName
)

type descriptor struct {
	name    string
	method  string
	port    int
	path    string
	timeout time.Duration // zero means transport default
}

var descriptors = map[Operation]descriptor{
	OpC2BPayment:             {"c2bPayment", http.MethodPost, 18352, "c2bPayment/singleStage/", paymentTimeout},
	OpB2CPayment:             {"b2cPayment", http.MethodPost, 18345, "b2cPayment/", paymentTimeout},
	OpB2BPayment:             {"b2bPayment", http.MethodPost, 18349, "b2bPayment/", paymentTimeout},
	OpQueryTransactionStatus: {"queryTransactionStatus", http.MethodGet, 18353, "queryTransactionStatus/", 0},
	OpReversal:               {"reversal", http.MethodPut, 18354, "reversal/", 0},
	OpQueryCustomerName:      {"queryCustomerName", http.MethodGet, 19323, "queryCustomerName/", 0},
}

// Operations lists every gateway operation in declaration order.
func Operations() []Operation {
	return []Operation{
		OpC2BPayment,
		OpB2CPayment,
		OpB2BPayment,
		OpQueryTransactionStatus,
		OpReversal,
		OpQueryCustomerName,
	}
}

func (o Operation) String() string {
	if d, ok := descriptors[o]; ok {
		return d.name
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

// Method returns the HTTP method the gateway expects for o.
func (o Operation) Method() string {
	return descriptors[o].method
}

// ParseOperation maps a wire name such as "c2bPayment" back to its Operation.
func ParseOperation(name string) (Operation, bool) {
	for op, d := range descriptors {
		if d.name == name {
			return op, true
		}
	}
	return 0, false
}

func host(mode Mode) (string, error) {
	switch mode {
	case ModeSandbox:
		return SandboxHost, nil
	case ModeProduction:
		return ProductionHost, nil
	default:
		return "", fmt.Errorf("unknown mode %q", mode)
	}
}

// Resolve returns the fully qualified URL for op under mode.
func Resolve(mode Mode, op Operation) (string, error) {
	h, err := host(mode)
	if err != nil {
		return "", err
	}
	d, ok := descriptors[op]
	if !ok {
		return "", fmt.Errorf("unknown operation %d", int(op))
	}
	return fmt.Sprintf("%s:%d%s%s", h, d.port, basePath, d.path), nil
}

// ModeOf reports which mode's host rawURL points at. It returns false for
// any other host.
func ModeOf(rawURL string) (Mode, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", false
	}
	switch u.Scheme + "://" + u.Hostname() {
	case SandboxHost:
		return ModeSandbox, true
	case ProductionHost:
		return ModeProduction, true
	}
	return "", false
}
