// Package reference issues the references attached to gateway calls when the
// caller does not bring its own.
package reference

import (
	"encoding/base32"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	hashids "github.com/speps/go-hashids/v2"
)

const (
	alphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	minLength = 10
)

type Generator struct {
	ids    *hashids.HashID
	seq    atomic.Int64
	now    func() time.Time
}

func NewGenerator(secret string) (*Generator, error) {
	if secret == "" {
		return nil, errors.New("reference secret is required")
	}

	hd := hashids.NewData()
	hd.Salt = secret
	hd.MinLength = minLength
	hd.Alphabet = alphabet

	ids, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("reference encoder: %w", err)
	}

	return &Generator{ids: ids, now: time.Now}, nil
}

// ThirdPartyReference encodes the issue time and a process-local counter.
// Values are uppercase alphanumeric and decode back with Issued.
func (g *Generator) ThirdPartyReference() (string, error) {
	n := g.seq.Add(1)
	ref, err := g.ids.EncodeInt64([]int64{g.now().Unix(), n})
	if err != nil {
		return "", fmt.Errorf("encode reference: %w", err)
	}
	return ref, nil
}

// Issued reports when a reference from ThirdPartyReference was made.
func (g *Generator) Issued(ref string) (time.Time, error) {
	nums, err := g.ids.DecodeInt64WithError(ref)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode reference: %w", err)
	}
	if len(nums) != 2 {
		return time.Time{}, fmt.Errorf("decode reference: unexpected shape")
	}
	return time.Unix(nums[0], 0), nil
}

// TransactionReference returns a random reference such as "TK4QZ7MDJ2XWA6B3N".
// The 16 characters after the prefix carry 74 random bits of a version 4 UUID.
func (g *Generator) TransactionReference() string {
	id := uuid.New()
	return "T" + txnEncoding.EncodeToString(id[:])[:16]
}

var txnEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)
