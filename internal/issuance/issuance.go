// Package issuance decides, for one completion hash, whether a key is minted.
//
// The decision is independent of HTTP: Complete returns a tagged Result that
// the handler layer renders.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/keygate/internal/ledger"
	"github.com/jmerrifield20/keygate/internal/oracle"
	"go.uber.org/zap"
)

// MaxHashLength bounds the completion hash accepted from callers.
const MaxHashLength = 512

// ErrInternal wraps entropy and storage failures. Callers must not treat it
// as a rejected verification.
var ErrInternal = errors.New("internal issuance fault")

// Kind is the terminal state reached for a completion request.
type Kind string

const (
	KindInvalidInput  Kind = "invalid"
	KindAlreadyIssued Kind = "already_issued"
	KindRejected      Kind = "rejected"
	KindIssued        Kind = "issued"
)

// Result is the outcome of Complete.
type Result struct {
	Kind Kind

	// Credential is the plaintext key. Set only when Kind is KindIssued and
	// not recoverable from anywhere else once this Result is discarded.
	Credential string

	// Record is the stored proof of issuance. Set only when Kind is KindIssued.
	Record *ledger.Record

	// Oracle is the verification outcome; empty when the oracle was not consulted.
	Oracle oracle.Outcome
}

// Verifier is the verification oracle, satisfied by *oracle.Client.
type Verifier interface {
	Check(ctx context.Context, completionHash string) oracle.Outcome
}

// KeyGenerator is satisfied by *keygen.Generator.
type KeyGenerator interface {
	Generate() (string, error)
}

// Digester is satisfied by *digest.Hasher.
type Digester interface {
	Digest(credential string) string
}

// MetricsRecordFunc is an optional callback invoked with each terminal state.
type MetricsRecordFunc func(kind Kind)

// Service runs the issuance state machine.
type Service struct {
	ledger    ledger.Ledger
	verifier  Verifier
	keys      KeyGenerator
	digester  Digester
	now       func() time.Time
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// NewService creates a Service.
func NewService(l ledger.Ledger, v Verifier, keys KeyGenerator, d Digester, logger *zap.Logger) *Service {
	return &Service{
		ledger:   l,
		verifier: v,
		keys:     keys,
		digester: d,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetMetricsRecord configures the metrics recording callback.
func (s *Service) SetMetricsRecord(fn MetricsRecordFunc) {
	s.onMetrics = fn
}

// Complete processes one completion callback for hash.
//
// A rejected verification leaves the ledger untouched so the same hash can be
// retried. When two requests for a fresh hash race, the ledger insert decides
// the winner and the loser is reported as KindAlreadyIssued.
func (s *Service) Complete(ctx context.Context, hash string) (*Result, error) {
	res, err := s.complete(ctx, hash)
	if err == nil && s.onMetrics != nil {
		s.onMetrics(res.Kind)
	}
	return res, err
}

func (s *Service) complete(ctx context.Context, hash string) (*Result, error) {
	if strings.TrimSpace(hash) == "" || len(hash) > MaxHashLength {
		return &Result{Kind: KindInvalidInput}, nil
	}

	used, err := s.ledger.Has(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: check ledger: %v", ErrInternal, err)
	}
	if used {
		s.logger.Info("completion hash already used", zap.String("hash", hash))
		return &Result{Kind: KindAlreadyIssued}, nil
	}

	outcome := s.verifier.Check(ctx, hash)
	if outcome != oracle.OutcomeVerified {
		s.logger.Info("completion not verified",
			zap.String("hash", hash),
			zap.String("oracle", string(outcome)),
		)
		return &Result{Kind: KindRejected, Oracle: outcome}, nil
	}

	credential, err := s.keys.Generate()
	if err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", ErrInternal, err)
	}

	rec := &ledger.Record{
		ID:        uuid.New(),
		Hash:      hash,
		KeyDigest: s.digester.Digest(credential),
		IssuedAt:  s.now().UTC(),
	}
	won, err := s.ledger.Put(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: record issuance: %v", ErrInternal, err)
	}
	if !won {
		s.logger.Warn("concurrent completion lost the ledger insert; key discarded",
			zap.String("hash", hash),
		)
		return &Result{Kind: KindAlreadyIssued, Oracle: outcome}, nil
	}

	s.logger.Info("key issued",
		zap.String("hash", hash),
		zap.String("record_id", rec.ID.String()),
	)
	return &Result{Kind: KindIssued, Credential: credential, Record: rec, Oracle: outcome}, nil
}

// List returns every issuance record, oldest first.
func (s *Service) List(ctx context.Context) ([]*ledger.Record, error) {
	recs, err := s.ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list ledger: %v", ErrInternal, err)
	}
	return recs, nil
}
