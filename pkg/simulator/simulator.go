// Package simulator produces the investor walkthrough: canned pipeline
// runs, attack attempts, advisor consensus and model calls, each recorded
// as one block in a block ledger. It never touches a session.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/blockledger"
	"github.com/alphavisionmethod/alphabet-weaver-sub000/pkg/observability"
)

// Block event types.
const (
	EventPipeline  = "pipeline_execution"
	EventConsensus = "advisor_consensus"
	EventLLMCall   = "llm_call"
	eventAttack    = "attack_"
)

var (
	ErrUnknownAttack   = errors.New("simulator: unknown attack kind")
	ErrUnknownCategory = errors.New("simulator: unknown category")
)

// Simulator appends to the ledger it was given. Callers may share one
// ledger between simulators; appends are serialized by the ledger.
type Simulator struct {
	ledger  *blockledger.Ledger
	logger  *slog.Logger
	metrics *observability.Metrics
}

type Option func(*Simulator)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Simulator) { s.metrics = m }
}

// New creates a simulator over ledger; a nil ledger gets a fresh default one.
func New(ledger *blockledger.Ledger, opts ...Option) *Simulator {
	if ledger == nil {
		ledger = blockledger.New(nil, nil)
	}
	s := &Simulator{
		ledger: ledger,
		logger: slog.Default().With("component", "simulator"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger returns the simulator's block ledger.
func (s *Simulator) Ledger() *blockledger.Ledger {
	return s.ledger
}

func (s *Simulator) record(ctx context.Context, eventType string, payload interface{}) (*blockledger.Block, error) {
	b, err := s.ledger.AppendBlock(ctx, eventType, payload)
	if err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	s.metrics.RecordBlock(ctx, eventType)
	s.logger.InfoContext(ctx, "block recorded", "event_type", eventType, "block", b.BlockNumber)
	return &b, nil
}

// VerifyLedger re-walks the block ledger.
func (s *Simulator) VerifyLedger(ctx context.Context) (blockledger.Verification, error) {
	v, err := s.ledger.Verify(ctx)
	if err != nil {
		return v, err
	}
	s.metrics.RecordVerification(ctx, "blocks", v.Valid)
	return v, nil
}

// Reset clears the block ledger.
func (s *Simulator) Reset() {
	s.ledger.Reset()
	s.logger.Info("block ledger reset")
}
