// Package backend defines the boundary operations the core invokes on the
// two backing stores. Each interface has one production implementation here
// and deterministic fakes in the tests that need them; nothing in the core
// requires a real network to be exercised.
package backend

import (
	"context"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

// LedgerStore is the durable, single-writer-per-record store holding raw
// note content.
type LedgerStore interface {
	PutNote(ctx context.Context, note *domain.Note) error
	GetNote(ctx context.Context, id string) (*domain.Note, error)
	ListNotes(ctx context.Context, identity string) ([]*domain.Note, error)
}

// CollabStore is the multi-party store hosting proposals, approvals, and
// shared contexts.
type CollabStore interface {
	CreateSharedContext(ctx context.Context, recipients []string, keyShares [][]byte) (string, error)
	GetSharedContext(ctx context.Context, noteID string) ([]string, error)
	Propose(ctx context.Context, actions []domain.Action) (string, error)
	Approve(ctx context.Context, proposalID string) error
}

// ExternalCaller executes the proposal workflow's outward-facing actions.
type ExternalCaller interface {
	Call(ctx context.Context, target, method, args string, deposit uint64) error
	Transfer(ctx context.Context, target string, amount uint64) error
}
