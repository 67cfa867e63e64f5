package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type recordedCall struct {
	kind   string
	target string
	amount uint64
}

type fakeExternalCaller struct {
	mu       sync.Mutex
	calls    []recordedCall
	failNext bool
}

func (f *fakeExternalCaller) Call(_ context.Context, target, method, args string, deposit uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("call to %s failed: %w", target, domain.ErrRemoteFailure)
	}
	f.calls = append(f.calls, recordedCall{kind: "call", target: target})
	return nil
}

func (f *fakeExternalCaller) Transfer(_ context.Context, target string, amount uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return fmt.Errorf("transfer to %s failed: %w", target, domain.ErrRemoteFailure)
	}
	f.calls = append(f.calls, recordedCall{kind: "transfer", target: target, amount: amount})
	return nil
}

func (f *fakeExternalCaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type proposalFixture struct {
	*noteFixture
	external  *fakeExternalCaller
	proposals *ProposalService
}

func newProposalFixture(t *testing.T) *proposalFixture {
	t.Helper()
	nf := newNoteFixture(t)
	external := &fakeExternalCaller{}
	proposals := NewProposalService(nf.store.Proposals, nf.store.Config, nf.notes, external, nil, nil)
	return &proposalFixture{
		noteFixture: nf,
		external:    external,
		proposals:   proposals,
	}
}

func mustRawParams(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshaling params: %v", err)
	}
	return raw
}

func transferRequest(t *testing.T, target, amount string) domain.ActionRequest {
	t.Helper()
	return domain.ActionRequest{
		Type:   string(domain.ActionTransfer),
		Params: mustRawParams(t, map[string]string{"target": target, "amount": amount}),
	}
}

func TestProposalCreateValidatesActions(t *testing.T) {
	f := newProposalFixture(t)

	_, err := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{{
			Type:   "mint_tokens",
			Params: mustRawParams(t, map[string]string{}),
		}},
	})
	if !errors.Is(err, domain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for unknown type, got %v", err)
	}

	_, err = f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "not-a-number")},
	})
	if !errors.Is(err, domain.ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for a bad amount, got %v", err)
	}

	proposals, _ := f.proposals.List()
	if len(proposals) != 0 {
		t.Errorf("expected no proposals persisted after rejected create, got %d", len(proposals))
	}
}

func TestProposalCreateRejectsAnonymous(t *testing.T) {
	f := newProposalFixture(t)

	_, err := f.proposals.Create("", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "5")},
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestApproveBelowThresholdStaysOpen(t *testing.T) {
	f := newProposalFixture(t)

	proposal, err := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "5")},
	})
	if err != nil {
		t.Fatalf("creating proposal: %v", err)
	}
	if proposal.MinApprovals != 2 {
		t.Fatalf("expected threshold 2 from config, got %d", proposal.MinApprovals)
	}

	got, err := f.proposals.Approve(context.Background(), "alice", proposal.ID)
	if err != nil {
		t.Fatalf("first approval: %v", err)
	}
	if got.Status != domain.ProposalOpen {
		t.Errorf("expected proposal still open below threshold, got %s", got.Status)
	}
	if len(f.external.calls) != 0 {
		t.Errorf("expected no execution below threshold, got %d calls", len(f.external.calls))
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newProposalFixture(t)

	proposal, _ := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "5")},
	})

	for i := 0; i < 3; i++ {
		got, err := f.proposals.Approve(context.Background(), "alice", proposal.ID)
		if err != nil {
			t.Fatalf("approval %d: %v", i, err)
		}
		if len(got.Approvals) != 1 {
			t.Fatalf("expected 1 approval after repeat approvals, got %d", len(got.Approvals))
		}
	}
	if len(f.external.calls) != 0 {
		t.Errorf("repeat approvals by one identity must not execute, got %d calls", len(f.external.calls))
	}
}

func TestThresholdExecutesActionsInOrder(t *testing.T) {
	f := newProposalFixture(t)

	proposal, err := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{
			{
				Type: string(domain.ActionExternalCall),
				Params: mustRawParams(t, map[string]string{
					"target": "registry", "method": "ping", "args": "{}", "deposit": "0",
				}),
			},
			transferRequest(t, "treasury", "7"),
		},
	})
	if err != nil {
		t.Fatalf("creating proposal: %v", err)
	}

	f.proposals.Approve(context.Background(), "alice", proposal.ID)
	got, err := f.proposals.Approve(context.Background(), "bob", proposal.ID)
	if err != nil {
		t.Fatalf("threshold approval: %v", err)
	}

	if got.Status != domain.ProposalExecuted {
		t.Fatalf("expected executed status, got %s", got.Status)
	}
	if got.ExecutedAt == nil {
		t.Error("expected ExecutedAt to be set")
	}
	if len(f.external.calls) != 2 {
		t.Fatalf("expected 2 effects, got %d", len(f.external.calls))
	}
	if f.external.calls[0].kind != "call" || f.external.calls[1].kind != "transfer" {
		t.Errorf("expected declaration order preserved, got %+v", f.external.calls)
	}
	if f.external.calls[1].amount != 7 {
		t.Errorf("expected transfer amount 7, got %d", f.external.calls[1].amount)
	}
}

func TestExecutionHappensAtMostOnce(t *testing.T) {
	f := newProposalFixture(t)

	proposal, _ := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "5")},
	})

	f.proposals.Approve(context.Background(), "alice", proposal.ID)
	f.proposals.Approve(context.Background(), "bob", proposal.ID)

	// A late approval of an executed proposal is a no-op.
	got, err := f.proposals.Approve(context.Background(), "carol", proposal.ID)
	if err != nil {
		t.Fatalf("late approval: %v", err)
	}
	if got.Status != domain.ProposalExecuted {
		t.Errorf("expected executed status, got %s", got.Status)
	}
	if len(f.external.calls) != 1 {
		t.Fatalf("expected exactly 1 execution, got %d", len(f.external.calls))
	}
}

func TestConcurrentApprovalsExecuteOnce(t *testing.T) {
	f := newProposalFixture(t)

	proposal, err := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "5")},
	})
	if err != nil {
		t.Fatalf("creating proposal: %v", err)
	}

	if _, err := f.proposals.Approve(context.Background(), "alice", proposal.ID); err != nil {
		t.Fatalf("first approval: %v", err)
	}

	// Two approvers cross the threshold together; only one of them may
	// trigger execution.
	var wg sync.WaitGroup
	for _, approver := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(approver string) {
			defer wg.Done()
			if _, err := f.proposals.Approve(context.Background(), approver, proposal.ID); err != nil {
				t.Errorf("approval by %s: %v", approver, err)
			}
		}(approver)
	}
	wg.Wait()

	if got := f.external.count(); got != 1 {
		t.Fatalf("action executed %d times, want exactly 1", got)
	}

	got, err := f.proposals.Get(proposal.ID)
	if err != nil {
		t.Fatalf("reading proposal: %v", err)
	}
	if got.Status != domain.ProposalExecuted {
		t.Errorf("expected executed status, got %s", got.Status)
	}
}

func TestPartialFailureIsReportedAndRetryable(t *testing.T) {
	f := newProposalFixture(t)

	proposal, _ := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{
			transferRequest(t, "treasury", "5"),
			transferRequest(t, "reserve", "9"),
		},
	})

	f.proposals.Approve(context.Background(), "alice", proposal.ID)

	f.external.failNext = true
	_, err := f.proposals.Approve(context.Background(), "bob", proposal.ID)

	var execErr *ProposalExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected a ProposalExecutionError, got %v", err)
	}
	if execErr.ActionIndex != 0 {
		t.Errorf("expected the failing action index 0, got %d", execErr.ActionIndex)
	}
	if !errors.Is(err, domain.ErrRemoteFailure) {
		t.Errorf("expected the cause to unwrap, got %v", err)
	}

	// Approvals survive the failure; a later approval retries execution.
	got, err := f.proposals.Approve(context.Background(), "bob", proposal.ID)
	if err != nil {
		t.Fatalf("retry approval: %v", err)
	}
	if got.Status != domain.ProposalExecuted {
		t.Fatalf("expected executed after retry, got %s", got.Status)
	}
	if len(f.external.calls) != 2 {
		t.Fatalf("expected both transfers delivered on retry, got %d", len(f.external.calls))
	}
}

func TestProposalDrivesNoteActions(t *testing.T) {
	f := newProposalFixture(t)

	proposal, err := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{{
			Type: string(domain.ActionCreateNote),
			Params: mustRawParams(t, map[string]interface{}{
				"note_id":           "note-via-proposal",
				"owner":             "alice",
				"encrypted_content": []byte("agreed content"),
				"metadata":          map[string]interface{}{"title": "joint note"},
			}),
		}},
	})
	if err != nil {
		t.Fatalf("creating proposal: %v", err)
	}

	f.proposals.Approve(context.Background(), "alice", proposal.ID)
	if _, err := f.proposals.Approve(context.Background(), "bob", proposal.ID); err != nil {
		t.Fatalf("threshold approval: %v", err)
	}

	note, err := f.notes.Get("alice", "note-via-proposal")
	if err != nil {
		t.Fatalf("expected the note created by the proposal: %v", err)
	}
	if string(note.EncryptedContent) != "agreed content" {
		t.Errorf("unexpected note content %q", note.EncryptedContent)
	}
}

func TestSetApprovalThresholdAction(t *testing.T) {
	f := newProposalFixture(t)

	proposal, _ := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{{
			Type:   string(domain.ActionSetApprovalThreshold),
			Params: mustRawParams(t, map[string]int{"threshold": 3}),
		}},
	})

	f.proposals.Approve(context.Background(), "alice", proposal.ID)
	if _, err := f.proposals.Approve(context.Background(), "bob", proposal.ID); err != nil {
		t.Fatalf("threshold approval: %v", err)
	}

	if got := f.store.Config.ApprovalThreshold(); got != 3 {
		t.Errorf("expected threshold raised to 3, got %d", got)
	}

	// New proposals pick up the raised threshold; existing behavior is
	// unchanged for already created ones.
	next, _ := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "1")},
	})
	if next.MinApprovals != 3 {
		t.Errorf("expected new proposal threshold 3, got %d", next.MinApprovals)
	}
}

func TestProposalMessages(t *testing.T) {
	f := newProposalFixture(t)

	proposal, _ := f.proposals.Create("alice", &domain.CreateProposalRequest{
		Actions: []domain.ActionRequest{transferRequest(t, "treasury", "5")},
	})

	if _, err := f.proposals.SendMessage("bob", proposal.ID, "why 5?"); err != nil {
		t.Fatalf("sending message: %v", err)
	}
	if _, err := f.proposals.SendMessage("alice", proposal.ID, "operating costs"); err != nil {
		t.Fatalf("replying: %v", err)
	}

	messages, err := f.proposals.ListMessages(proposal.ID)
	if err != nil {
		t.Fatalf("listing messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Author != "bob" {
		t.Errorf("expected messages in send order, got %s first", messages[0].Author)
	}

	if _, err := f.proposals.SendMessage("bob", "missing", "hello?"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing proposal, got %v", err)
	}
}
