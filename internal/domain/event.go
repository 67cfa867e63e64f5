package domain

import "time"

type EventType string

const (
	EventNoteCreated      EventType = "note_created"
	EventNoteUpdated      EventType = "note_updated"
	EventNoteShared       EventType = "note_shared"
	EventNoteDeleted      EventType = "note_deleted"
	EventProposalCreated  EventType = "proposal_created"
	EventApprovedProposal EventType = "approved_proposal"
)

// Event is a fire-and-forget domain notification. Delivery is at-least-once
// with per-source ordering only; consumers must not rely on ordering across
// sources.
type Event struct {
	Type      EventType    `json:"type"`
	Source    UpdateSource `json:"source"`
	NoteID    string       `json:"note_id,omitempty"`
	Proposal  string       `json:"proposal_id,omitempty"`
	Identity  string       `json:"identity,omitempty"`
	With      string       `json:"with,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
