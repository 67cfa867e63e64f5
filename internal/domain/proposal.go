package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type ProposalStatus string

const (
	ProposalOpen     ProposalStatus = "open"
	ProposalExecuted ProposalStatus = "executed"
)

// Proposal is a batch of privileged actions requiring threshold approval.
// It only moves forward: open proposals stay open on partial approval and
// become immutable once executed. There is no rejection or expiry.
type Proposal struct {
	ID           string         `json:"id"`
	Author       string         `json:"author"`
	Actions      []Action       `json:"actions"`
	Approvals    []string       `json:"approvals"`
	MinApprovals int            `json:"min_approvals"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	ExecutedAt   *time.Time     `json:"executed_at,omitempty"`
}

func (p *Proposal) HasApproved(identity string) bool {
	for _, a := range p.Approvals {
		if a == identity {
			return true
		}
	}
	return false
}

// ProposalMessage is one entry in a proposal's discussion thread.
type ProposalMessage struct {
	ID         string    `json:"id"`
	ProposalID string    `json:"proposal_id"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

type ActionKind string

const (
	ActionExternalCall         ActionKind = "external_call"
	ActionTransfer             ActionKind = "transfer"
	ActionSetConfigValue       ActionKind = "set_config_value"
	ActionSetApprovalThreshold ActionKind = "set_approval_threshold"
	ActionDeleteProposal       ActionKind = "delete_proposal"
	ActionCreateNote           ActionKind = "create_note"
	ActionShareNote            ActionKind = "share_note"
)

type ExternalCallAction struct {
	Target  string `json:"target"`
	Method  string `json:"method"`
	Args    string `json:"args"`
	Deposit uint64 `json:"deposit"`
}

type TransferAction struct {
	Target string `json:"target"`
	Amount uint64 `json:"amount"`
}

type SetConfigValueAction struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type SetApprovalThresholdAction struct {
	Threshold int `json:"threshold"`
}

type DeleteProposalAction struct {
	ProposalID string `json:"proposal_id"`
}

type CreateNoteAction struct {
	NoteID           string       `json:"note_id"`
	Owner            string       `json:"owner"`
	EncryptedContent []byte       `json:"encrypted_content"`
	Metadata         NoteMetadata `json:"metadata"`
}

type ShareNoteAction struct {
	NoteID    string `json:"note_id"`
	Recipient string `json:"recipient"`
}

// Action is a closed tagged variant. Exactly one payload field matching Kind
// is set, enforced by the constructors below. Malformed actions fail at
// construction, never at execution.
type Action struct {
	Kind                 ActionKind                  `json:"kind"`
	ExternalCall         *ExternalCallAction         `json:"external_call,omitempty"`
	Transfer             *TransferAction             `json:"transfer,omitempty"`
	SetConfigValue       *SetConfigValueAction       `json:"set_config_value,omitempty"`
	SetApprovalThreshold *SetApprovalThresholdAction `json:"set_approval_threshold,omitempty"`
	DeleteProposal       *DeleteProposalAction       `json:"delete_proposal,omitempty"`
	CreateNote           *CreateNoteAction           `json:"create_note,omitempty"`
	ShareNote            *ShareNoteAction            `json:"share_note,omitempty"`
}

func NewExternalCallAction(target, method, args string, deposit uint64) (Action, error) {
	if target == "" {
		return Action{}, fmt.Errorf("%w: external_call requires target", ErrInvalidAction)
	}
	if method == "" {
		return Action{}, fmt.Errorf("%w: external_call requires method", ErrInvalidAction)
	}
	if args == "" {
		return Action{}, fmt.Errorf("%w: external_call requires args", ErrInvalidAction)
	}
	return Action{
		Kind:         ActionExternalCall,
		ExternalCall: &ExternalCallAction{Target: target, Method: method, Args: args, Deposit: deposit},
	}, nil
}

func NewTransferAction(target string, amount uint64) (Action, error) {
	if target == "" {
		return Action{}, fmt.Errorf("%w: transfer requires target", ErrInvalidAction)
	}
	return Action{
		Kind:     ActionTransfer,
		Transfer: &TransferAction{Target: target, Amount: amount},
	}, nil
}

func NewSetConfigValueAction(key, value string) (Action, error) {
	if key == "" {
		return Action{}, fmt.Errorf("%w: set_config_value requires key", ErrInvalidAction)
	}
	return Action{
		Kind:           ActionSetConfigValue,
		SetConfigValue: &SetConfigValueAction{Key: key, Value: value},
	}, nil
}

func NewSetApprovalThresholdAction(n int) (Action, error) {
	if n < 1 {
		return Action{}, fmt.Errorf("%w: approval threshold must be at least 1", ErrInvalidAction)
	}
	return Action{
		Kind:                 ActionSetApprovalThreshold,
		SetApprovalThreshold: &SetApprovalThresholdAction{Threshold: n},
	}, nil
}

func NewDeleteProposalAction(proposalID string) (Action, error) {
	if proposalID == "" {
		return Action{}, fmt.Errorf("%w: delete_proposal requires proposal_id", ErrInvalidAction)
	}
	return Action{
		Kind:           ActionDeleteProposal,
		DeleteProposal: &DeleteProposalAction{ProposalID: proposalID},
	}, nil
}

func NewCreateNoteAction(noteID, owner string, content []byte, metadata NoteMetadata) (Action, error) {
	if noteID == "" {
		return Action{}, fmt.Errorf("%w: create_note requires note_id", ErrInvalidAction)
	}
	if owner == "" {
		return Action{}, fmt.Errorf("%w: create_note requires owner", ErrInvalidAction)
	}
	if len(content) == 0 {
		return Action{}, fmt.Errorf("%w: create_note requires encrypted_content", ErrInvalidAction)
	}
	return Action{
		Kind: ActionCreateNote,
		CreateNote: &CreateNoteAction{
			NoteID:           noteID,
			Owner:            owner,
			EncryptedContent: content,
			Metadata:         metadata,
		},
	}, nil
}

func NewShareNoteAction(noteID, recipient string) (Action, error) {
	if noteID == "" {
		return Action{}, fmt.Errorf("%w: share_note requires note_id", ErrInvalidAction)
	}
	if recipient == "" {
		return Action{}, fmt.Errorf("%w: share_note requires recipient", ErrInvalidAction)
	}
	return Action{
		Kind:      ActionShareNote,
		ShareNote: &ShareNoteAction{NoteID: noteID, Recipient: recipient},
	}, nil
}

// ActionRequest is the wire form of an action: a type tag plus loosely typed
// parameters. ParseAction turns it into a validated Action.
type ActionRequest struct {
	Type   string          `json:"type" validate:"required"`
	Params json.RawMessage `json:"params"`
}

type CreateProposalRequest struct {
	Actions []ActionRequest `json:"actions" validate:"required,min=1,dive"`
}

type ProposalMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

func ParseAction(req ActionRequest) (Action, error) {
	switch ActionKind(req.Type) {
	case ActionExternalCall:
		var p struct {
			Target  string `json:"target"`
			Method  string `json:"method"`
			Args    string `json:"args"`
			Deposit string `json:"deposit"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		deposit, err := parseAmount(p.Deposit, "deposit")
		if err != nil {
			return Action{}, err
		}
		return NewExternalCallAction(p.Target, p.Method, p.Args, deposit)

	case ActionTransfer:
		var p struct {
			Target string `json:"target"`
			Amount string `json:"amount"`
		}
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		amount, err := parseAmount(p.Amount, "amount")
		if err != nil {
			return Action{}, err
		}
		return NewTransferAction(p.Target, amount)

	case ActionSetConfigValue:
		var p SetConfigValueAction
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		return NewSetConfigValueAction(p.Key, p.Value)

	case ActionSetApprovalThreshold:
		var p SetApprovalThresholdAction
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		return NewSetApprovalThresholdAction(p.Threshold)

	case ActionDeleteProposal:
		var p DeleteProposalAction
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		return NewDeleteProposalAction(p.ProposalID)

	case ActionCreateNote:
		var p CreateNoteAction
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		return NewCreateNoteAction(p.NoteID, p.Owner, p.EncryptedContent, p.Metadata)

	case ActionShareNote:
		var p ShareNoteAction
		if err := unmarshalParams(req.Params, &p); err != nil {
			return Action{}, err
		}
		return NewShareNoteAction(p.NoteID, p.Recipient)

	default:
		return Action{}, fmt.Errorf("%w: unknown action type %q", ErrInvalidAction, req.Type)
	}
}

func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", ErrInvalidAction)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAction, err)
	}
	return nil
}

// parseAmount accepts decimal strings only; negative or non-numeric values
// are construction-time errors.
func parseAmount(s, field string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidAction, field)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidAction, field)
	}
	return n, nil
}
