// Package ledger records which completion hashes have already been exchanged
// for a key.
//
// A Record is written at most once per completion hash and is never modified
// or deleted afterwards. Put is insert-if-absent, so two racing requests for
// the same hash cannot both succeed.
//
// Three implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, lost on restart.
//   - PostgresLedger: durable, shared between instances.
//   - RedisLedger: shared between instances, durable as far as Redis is.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get when no record exists for a hash.
var ErrNotFound = errors.New("issuance record not found")

// Record is the proof that a key was issued for one completion hash.
// KeyDigest is the HMAC digest of the key; the key itself is never stored.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Hash      string    `json:"hash"`
	KeyDigest string    `json:"key_digest"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Ledger is the storage interface for issuance records.
type Ledger interface {
	// Has reports whether a record exists for hash.
	Has(ctx context.Context, hash string) (bool, error)

	// Get returns the record for hash, or ErrNotFound.
	Get(ctx context.Context, hash string) (*Record, error)

	// Put stores rec if no record exists for rec.Hash.
	// It returns false, leaving the stored record untouched, if one already did.
	Put(ctx context.Context, rec *Record) (bool, error)

	// List returns every record ordered by IssuedAt, oldest first.
	List(ctx context.Context) ([]*Record, error)
}

func (r *Record) clone() *Record {
	cp := *r
	return &cp
}
