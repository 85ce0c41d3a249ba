package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mpesa/internal/db"
)

// Entry is one gateway exchange as recorded in mpesa_transactions.
type Entry struct {
	ID                   int64           `json:"id"`
	Operation            string          `json:"operation"`
	Mode                 string          `json:"mode"`
	TransactionReference string          `json:"transaction_reference,omitempty"`
	ThirdPartyReference  string          `json:"third_party_reference"`
	MSISDN               string          `json:"msisdn,omitempty"`
	Amount               float64         `json:"amount,omitempty"`
	HTTPStatus           int             `json:"http_status"`
	Outcome              string          `json:"outcome"`
	ResponseCode         string          `json:"response_code,omitempty"`
	ResponseDesc         string          `json:"response_desc,omitempty"`
	ConversationID       string          `json:"conversation_id,omitempty"`
	GatewayTransactionID string          `json:"gateway_transaction_id,omitempty"`
	Response             json.RawMessage `json:"response,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

type Journal interface {
	Record(ctx context.Context, e *Entry) error
	GetByReference(ctx context.Context, thirdPartyRef string) ([]*Entry, error)
	List(ctx context.Context, operation string, limit, offset int) ([]*Entry, int, error)
}

type JournalStore struct {
	q db.Querier
}

func NewJournalStore(q db.Querier) *JournalStore {
	return &JournalStore{q: q}
}

const entryColumns = `
	id, operation, mode, COALESCE(transaction_reference, ''), third_party_reference,
	COALESCE(msisdn, ''), COALESCE(amount, 0)::float8, http_status, outcome,
	COALESCE(response_code, ''), COALESCE(response_desc, ''), COALESCE(conversation_id, ''),
	COALESCE(gateway_transaction_id, ''), response, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner, extra ...any) (*Entry, error) {
	var (
		e    Entry
		resp []byte
	)
	dest := []any{
		&e.ID, &e.Operation, &e.Mode, &e.TransactionReference, &e.ThirdPartyReference,
		&e.MSISDN, &e.Amount, &e.HTTPStatus, &e.Outcome,
		&e.ResponseCode, &e.ResponseDesc, &e.ConversationID,
		&e.GatewayTransactionID, &resp, &e.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if len(resp) > 0 {
		e.Response = json.RawMessage(resp)
	}
	return &e, nil
}

func (s *JournalStore) Record(ctx context.Context, e *Entry) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	// jsonb rejects anything that is not JSON; the raw body is kept only when it parses
	var resp any
	if len(e.Response) > 0 && json.Valid(e.Response) {
		resp = []byte(e.Response)
	}

	err := s.q.QueryRow(ctx, `
		INSERT INTO mpesa_transactions (
			operation, mode, transaction_reference, third_party_reference, msisdn, amount,
			http_status, outcome, response_code, response_desc, conversation_id,
			gateway_transaction_id, response
		)
		VALUES (
			$1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), NULLIF($6::numeric, 0),
			$7, $8, NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''),
			NULLIF($12, ''), $13
		)
		RETURNING id, created_at
	`,
		e.Operation, e.Mode, e.TransactionReference, e.ThirdPartyReference, e.MSISDN, e.Amount,
		e.HTTPStatus, e.Outcome, e.ResponseCode, e.ResponseDesc, e.ConversationID,
		e.GatewayTransactionID, resp,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert mpesa transaction: %w", err)
	}
	return nil
}

// GetByReference returns every exchange made under a third-party reference,
// oldest first. ErrNotFound when there is none.
func (s *JournalStore) GetByReference(ctx context.Context, thirdPartyRef string) ([]*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.q.Query(ctx, `
		SELECT `+entryColumns+`
		FROM mpesa_transactions
		WHERE third_party_reference = $1
		ORDER BY id ASC
	`, thirdPartyRef)
	if err != nil {
		return nil, fmt.Errorf("get mpesa transactions: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mpesa transaction: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// List pages through the journal newest first. An empty operation lists all.
func (s *JournalStore) List(ctx context.Context, operation string, limit, offset int) ([]*Entry, int, error) {
	if limit <= 0 || limit > 30 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := s.q.Query(ctx, `
		SELECT `+entryColumns+`,
		       COUNT(*) OVER() AS total_count
		FROM mpesa_transactions
		WHERE ($1 = '' OR operation = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, operation, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list mpesa transactions: %w", err)
	}
	defer rows.Close()

	var (
		entries    []*Entry
		totalCount int
	)
	for rows.Next() {
		var t int
		e, err := scanEntry(rows, &t)
		if err != nil {
			return nil, 0, fmt.Errorf("scan mpesa transaction: %w", err)
		}
		if totalCount == 0 {
			totalCount = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}

	// paged past the end: no rows, but the total may still be > 0
	if len(entries) == 0 && offset > 0 {
		if err := s.q.QueryRow(ctx, `
			SELECT COUNT(*) FROM mpesa_transactions WHERE ($1 = '' OR operation = $1)
		`, operation).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count mpesa transactions: %w", err)
		}
	}

	return entries, totalCount, nil
}

// NopJournal drops every entry. Used when no database is configured.
type NopJournal struct{}

func (NopJournal) Record(context.Context, *Entry) error { return nil }

func (NopJournal) GetByReference(context.Context, string) ([]*Entry, error) {
	return nil, ErrNotFound
}

func (NopJournal) List(context.Context, string, int, int) ([]*Entry, int, error) {
	return nil, 0, nil
}
