package payments

import "encoding/json"

type PaymentRequest struct {
	TransactionID string  `json:"transaction_id" validate:"required,alphanum"`
	Reference     string  `json:"reference" validate:"required,alphanum"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	CustomerPhone string  `json:"customer_phone" validate:"required,numeric"`
}

type PaymentResponse struct {
	Accepted       bool            `json:"accepted"`
	ProviderRef    string          `json:"provider_ref,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	Code           string          `json:"code,omitempty"`
	Description    string          `json:"description,omitempty"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

type PaymentVerifyRequest struct {
	// TransactionID is the gateway's transaction id or the original reference.
	TransactionID string `json:"transaction_id" validate:"required"`
	Reference     string `json:"reference" validate:"required,alphanum"`
}

type PaymentVerifyResponse struct {
	Success  bool            `json:"success"`
	State    string          `json:"state"`
	Terminal bool            `json:"terminal"`
	Code     string          `json:"code,omitempty"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}

type RefundRequest struct {
	ProviderRef         string  `json:"provider_ref" validate:"required"`
	Reference           string  `json:"reference" validate:"required,alphanum"`
	Amount              float64 `json:"amount" validate:"gte=0"`
	SecurityCredential  string  `json:"security_credential" validate:"required"`
	InitiatorIdentifier string  `json:"initiator_identifier" validate:"required"`
}

type RefundResponse struct {
	Accepted    bool            `json:"accepted"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Code        string          `json:"code,omitempty"`
	Description string          `json:"description,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}
