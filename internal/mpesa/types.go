package mpesa

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

type C2BPaymentRequest struct {
	Amount               float64 `json:"amount" validate:"gt=0"`
	MSISDN               string  `json:"msisdn" validate:"required,numeric"`
	TransactionReference string  `json:"transaction_reference" validate:"required,alphanum"`
	ThirdPartyReference  string  `json:"third_party_reference" validate:"required,alphanum"`
}

type B2CPaymentRequest struct {
	Amount               float64 `json:"amount" validate:"gt=0"`
	MSISDN               string  `json:"msisdn" validate:"required,numeric"`
	TransactionReference string  `json:"transaction_reference" validate:"required,alphanum"`
	ThirdPartyReference  string  `json:"third_party_reference" validate:"required,alphanum"`
}

type B2BPaymentRequest struct {
	Amount               float64 `json:"amount" validate:"gt=0"`
	ReceiverPartyCode    string  `json:"receiver_party_code" validate:"required"`
	TransactionReference string  `json:"transaction_reference" validate:"required,alphanum"`
	ThirdPartyReference  string  `json:"third_party_reference" validate:"required,alphanum"`
}

type TransactionStatusRequest struct {
	QueryReference      string `json:"query_reference" validate:"required"`
	ThirdPartyReference string `json:"third_party_reference" validate:"required,alphanum"`
}

type ReversalRequest struct {
	TransactionID       string `json:"transaction_id" validate:"required"`
	SecurityCredential  string `json:"security_credential" validate:"required"`
	InitiatorIdentifier string `json:"initiator_identifier" validate:"required"`
	ThirdPartyReference string `json:"third_party_reference" validate:"required,alphanum"`
	// ReversalAmount is optional; zero reverses the full transaction.
	ReversalAmount float64 `json:"reversal_amount,omitempty" validate:"gte=0"`
}

type CustomerNameRequest struct {
	MSISDN              string `json:"msisdn" validate:"required,numeric"`
	ThirdPartyReference string `json:"third_party_reference" validate:"required,alphanum"`
}

// PaymentOutput is returned by C2B, B2C, B2B and reversal.
type PaymentOutput struct {
	ConversationID      string `json:"output_ConversationID"`
	TransactionID       string `json:"output_TransactionID"`
	ResponseDesc        string `json:"output_ResponseDesc"`
	ResponseCode        string `json:"output_ResponseCode"`
	ThirdPartyReference string `json:"output_ThirdPartyReference"`
}

type TransactionStatusOutput struct {
	ConversationID      string `json:"output_ConversationID"`
	ResponseDesc        string `json:"output_ResponseDesc"`
	ResponseCode        string `json:"output_ResponseCode"`
	TransactionStatus   string `json:"output_ResponseTransactionStatus"`
	ThirdPartyReference string `json:"output_ThirdPartyReference"`
}

type CustomerNameOutput struct {
	ConversationID      string `json:"output_ConversationID"`
	ResultDesc          string `json:"output_ResultDesc,omitempty"`
	ResultCode          string `json:"output_ResultCode,omitempty"`
	ResponseDesc        string `json:"output_ResponseDesc,omitempty"`
	ResponseCode        string `json:"output_ResponseCode,omitempty"`
	CustomerName        string `json:"output_CustomerName"`
	ThirdPartyReference string `json:"output_ThirdPartyReference"`
}

// Result is the gateway's business answer. Exactly one of Output and Error is set.
// Response codes are not interpreted here; callers check Output's code field.
type Result[T any] struct {
	StatusCode int
	Output     *T
	Error      *BusinessError
	// Raw is the response body exactly as received.
	Raw json.RawMessage
}

// Rejected reports whether the gateway answered with an output_error body.
func (r *Result[T]) Rejected() bool {
	return r.Error != nil
}

var errNotAnObject = errors.New("response body is not a JSON object")

func decodeResult[T any](status int, body []byte) (*Result[T], error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty response body")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil || fields == nil {
		return nil, errNotAnObject
	}

	res := &Result[T]{StatusCode: status, Raw: json.RawMessage(trimmed)}

	if _, ok := fields["output_error"]; ok {
		var be BusinessError
		if err := decodeLenient(trimmed, fields, &be); err != nil {
			return nil, err
		}
		res.Error = &be
		return res, nil
	}

	var out T
	if err := decodeLenient(trimmed, fields, &out); err != nil {
		return nil, err
	}
	res.Output = &out
	return res, nil
}

// decodeLenient decodes body into v. Output fields are all strings, so when
// the gateway sends a number or boolean instead, its literal text is used.
func decodeLenient(body []byte, fields map[string]json.RawMessage, v any) error {
	err := json.Unmarshal(body, v)
	var typeErr *json.UnmarshalTypeError
	if err == nil || !errors.As(err, &typeErr) {
		return err
	}

	normalized := make(map[string]json.RawMessage, len(fields))
	for k, raw := range fields {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] != '"' && raw[0] != '{' && raw[0] != '[' && !bytes.Equal(raw, []byte("null")) {
			quoted, qerr := json.Marshal(string(raw))
			if qerr != nil {
				return qerr
			}
			raw = quoted
		}
		normalized[k] = raw
	}

	again, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	return json.Unmarshal(again, v)
}

// formatAmount renders the shortest decimal form: 10 -> "10", 10.5 -> "10.5".
func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
