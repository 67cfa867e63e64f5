package repository

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Buildathonzx/whisperrnote/internal/domain"
)

type ProposalRepository interface {
	Create(proposal *domain.Proposal) error
	Get(id string) (*domain.Proposal, error)
	Update(proposal *domain.Proposal) error
	Delete(id string) error
	List() ([]*domain.Proposal, error)
	AppendMessage(msg *domain.ProposalMessage) error
	ListMessages(proposalID string) ([]*domain.ProposalMessage, error)
}

type memoryProposalRepository struct {
	mu        sync.RWMutex
	proposals map[string]*domain.Proposal
	messages  map[string][]*domain.ProposalMessage
}

func NewProposalRepository() ProposalRepository {
	return &memoryProposalRepository{
		proposals: make(map[string]*domain.Proposal),
		messages:  make(map[string][]*domain.ProposalMessage),
	}
}

func cloneProposal(p *domain.Proposal) *domain.Proposal {
	c := *p
	c.Actions = append([]domain.Action(nil), p.Actions...)
	c.Approvals = append([]string(nil), p.Approvals...)
	if p.ExecutedAt != nil {
		t := *p.ExecutedAt
		c.ExecutedAt = &t
	}
	return &c
}

func (r *memoryProposalRepository) Create(proposal *domain.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.proposals[proposal.ID]; exists {
		return fmt.Errorf("proposal %s: %w", proposal.ID, domain.ErrAlreadyExists)
	}
	r.proposals[proposal.ID] = cloneProposal(proposal)
	return nil
}

func (r *memoryProposalRepository) Get(id string) (*domain.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.proposals[id]
	if !exists {
		return nil, fmt.Errorf("proposal %s: %w", id, domain.ErrNotFound)
	}
	return cloneProposal(p), nil
}

func (r *memoryProposalRepository) Update(proposal *domain.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.proposals[proposal.ID]; !exists {
		return fmt.Errorf("proposal %s: %w", proposal.ID, domain.ErrNotFound)
	}
	r.proposals[proposal.ID] = cloneProposal(proposal)
	return nil
}

func (r *memoryProposalRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.proposals[id]; !exists {
		return fmt.Errorf("proposal %s: %w", id, domain.ErrNotFound)
	}
	delete(r.proposals, id)
	delete(r.messages, id)
	return nil
}

func (r *memoryProposalRepository) List() ([]*domain.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Proposal, 0, len(r.proposals))
	for _, p := range r.proposals {
		out = append(out, cloneProposal(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryProposalRepository) AppendMessage(msg *domain.ProposalMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.proposals[msg.ProposalID]; !exists {
		return fmt.Errorf("proposal %s: %w", msg.ProposalID, domain.ErrNotFound)
	}
	c := *msg
	r.messages[msg.ProposalID] = append(r.messages[msg.ProposalID], &c)
	return nil
}

func (r *memoryProposalRepository) ListMessages(proposalID string) ([]*domain.ProposalMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.proposals[proposalID]; !exists {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, domain.ErrNotFound)
	}
	msgs := r.messages[proposalID]
	out := make([]*domain.ProposalMessage, len(msgs))
	for i, m := range msgs {
		c := *m
		out[i] = &c
	}
	return out, nil
}
