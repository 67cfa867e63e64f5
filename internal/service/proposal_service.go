package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Buildathonzx/whisperrnote/internal/auth"
	"github.com/Buildathonzx/whisperrnote/internal/backend"
	"github.com/Buildathonzx/whisperrnote/internal/domain"
	"github.com/Buildathonzx/whisperrnote/internal/events"
	"github.com/Buildathonzx/whisperrnote/internal/repository"

	"github.com/google/uuid"
)

// ProposalExecutionError reports a proposal whose execution halted partway.
// The approval that triggered execution was still recorded; callers must be
// able to tell "approved" apart from "approved and fully executed".
type ProposalExecutionError struct {
	ProposalID  string
	ActionIndex int
	Err         error
}

func (e *ProposalExecutionError) Error() string {
	return fmt.Sprintf("proposal %s: action %d failed: %v", e.ProposalID, e.ActionIndex, e.Err)
}

func (e *ProposalExecutionError) Unwrap() error {
	return e.Err
}

// ProposalService runs the multi-party approval workflow. Proposals land on
// the collaboration side first; executed note mutations flow to the note
// store through the dispatcher and from there to the ledger via sync.
type ProposalService struct {
	proposals repository.ProposalRepository
	config    repository.ConfigRepository
	notes     *NoteService
	external  backend.ExternalCaller
	collab    backend.CollabStore
	bus       *events.Bus
	locks     *keyedMutex
}

func NewProposalService(
	proposals repository.ProposalRepository,
	config repository.ConfigRepository,
	notes *NoteService,
	external backend.ExternalCaller,
	collab backend.CollabStore,
	bus *events.Bus,
) *ProposalService {
	return &ProposalService{
		proposals: proposals,
		config:    config,
		notes:     notes,
		external:  external,
		collab:    collab,
		bus:       bus,
		locks:     newKeyedMutex(),
	}
}

func (s *ProposalService) publish(eventType domain.EventType, proposalID, identity, noteID string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(domain.Event{
		Type:      eventType,
		Source:    domain.SourceCollab,
		Proposal:  proposalID,
		Identity:  identity,
		NoteID:    noteID,
		Timestamp: time.Now(),
	})
}

// Create validates every action up front: malformed input fails here, never
// at execution time.
func (s *ProposalService) Create(author string, req *domain.CreateProposalRequest) (*domain.Proposal, error) {
	if auth.IsAnonymous(author) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}

	actions := make([]domain.Action, 0, len(req.Actions))
	for _, ar := range req.Actions {
		action, err := domain.ParseAction(ar)
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
	}

	proposal := &domain.Proposal{
		ID:           uuid.New().String(),
		Author:       author,
		Actions:      actions,
		Approvals:    []string{},
		MinApprovals: s.config.ApprovalThreshold(),
		Status:       domain.ProposalOpen,
		CreatedAt:    time.Now(),
	}

	if err := s.proposals.Create(proposal); err != nil {
		return nil, err
	}

	if s.collab != nil {
		if _, err := s.collab.Propose(context.Background(), actions); err != nil {
			log.Printf("collab write-through for proposal %s failed, sweep will retry: %v", proposal.ID, err)
		}
	}

	s.publish(domain.EventProposalCreated, proposal.ID, author, firstNoteID(actions))

	return proposal, nil
}

// Approve records the approval and, once the threshold is met, executes the
// proposal's actions in order. Approval is idempotent; execution happens at
// most once. A failed action halts execution with the approvals intact, so
// a later approval call retries from the top.
//
// The whole read-approve-execute sequence holds the proposal's lock: two
// approvers crossing the threshold together must not both see the proposal
// open and run the actions twice.
func (s *ProposalService) Approve(ctx context.Context, approver, proposalID string) (*domain.Proposal, error) {
	if auth.IsAnonymous(approver) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}

	defer s.locks.lock(proposalID)()

	proposal, err := s.proposals.Get(proposalID)
	if err != nil {
		return nil, err
	}

	// Re-approval after execution is a no-op, never a re-execution.
	if proposal.Status == domain.ProposalExecuted {
		return proposal, nil
	}

	if !proposal.HasApproved(approver) {
		proposal.Approvals = append(proposal.Approvals, approver)
		if err := s.proposals.Update(proposal); err != nil {
			return nil, err
		}
	}

	if len(proposal.Approvals) < proposal.MinApprovals {
		return proposal, nil
	}

	// Threshold met: run the actions in order, best effort. Partial
	// execution is possible and reported, not hidden.
	for i, action := range proposal.Actions {
		if err := s.execute(ctx, action); err != nil {
			return proposal, &ProposalExecutionError{
				ProposalID:  proposalID,
				ActionIndex: i,
				Err:         err,
			}
		}
	}

	now := time.Now()
	proposal.Status = domain.ProposalExecuted
	proposal.ExecutedAt = &now
	if err := s.proposals.Update(proposal); err != nil {
		return nil, err
	}

	if s.collab != nil {
		if err := s.collab.Approve(ctx, proposalID); err != nil {
			log.Printf("collab approval write-through for proposal %s failed: %v", proposalID, err)
		}
	}

	s.publish(domain.EventApprovedProposal, proposalID, approver, firstNoteID(proposal.Actions))

	return proposal, nil
}

// execute maps one validated action to its effect. The match is exhaustive
// over the closed variant; an unknown kind cannot occur post-validation.
func (s *ProposalService) execute(ctx context.Context, action domain.Action) error {
	switch action.Kind {
	case domain.ActionExternalCall:
		if s.external == nil {
			return fmt.Errorf("no external caller configured: %w", domain.ErrRemoteFailure)
		}
		a := action.ExternalCall
		return s.external.Call(ctx, a.Target, a.Method, a.Args, a.Deposit)

	case domain.ActionTransfer:
		if s.external == nil {
			return fmt.Errorf("no external caller configured: %w", domain.ErrRemoteFailure)
		}
		a := action.Transfer
		return s.external.Transfer(ctx, a.Target, a.Amount)

	case domain.ActionSetConfigValue:
		s.config.SetValue(action.SetConfigValue.Key, action.SetConfigValue.Value)
		return nil

	case domain.ActionSetApprovalThreshold:
		s.config.SetApprovalThreshold(action.SetApprovalThreshold.Threshold)
		return nil

	case domain.ActionDeleteProposal:
		return s.proposals.Delete(action.DeleteProposal.ProposalID)

	case domain.ActionCreateNote:
		return s.notes.ApplyCreateAction(action.CreateNote)

	case domain.ActionShareNote:
		return s.notes.ApplyShareAction(action.ShareNote)

	default:
		return fmt.Errorf("%w: unexecutable action kind %q", domain.ErrInvalidAction, action.Kind)
	}
}

func (s *ProposalService) Get(proposalID string) (*domain.Proposal, error) {
	return s.proposals.Get(proposalID)
}

func (s *ProposalService) List() ([]*domain.Proposal, error) {
	return s.proposals.List()
}

// SendMessage appends to the proposal's discussion thread.
func (s *ProposalService) SendMessage(author, proposalID, text string) (*domain.ProposalMessage, error) {
	if auth.IsAnonymous(author) {
		return nil, fmt.Errorf("anonymous caller: %w", domain.ErrUnauthorized)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidAction)
	}

	msg := &domain.ProposalMessage{
		ID:         uuid.New().String(),
		ProposalID: proposalID,
		Author:     author,
		Text:       text,
		CreatedAt:  time.Now(),
	}
	if err := s.proposals.AppendMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *ProposalService) ListMessages(proposalID string) ([]*domain.ProposalMessage, error) {
	return s.proposals.ListMessages(proposalID)
}

func firstNoteID(actions []domain.Action) string {
	for _, a := range actions {
		switch a.Kind {
		case domain.ActionCreateNote:
			return a.CreateNote.NoteID
		case domain.ActionShareNote:
			return a.ShareNote.NoteID
		}
	}
	return ""
}
