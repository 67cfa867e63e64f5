package domain

import "time"

type NoteMetadata struct {
	Title             string   `json:"title"`
	Tags              []string `json:"tags,omitempty"`
	Pinned            bool     `json:"pinned"`
	EncryptionVersion int      `json:"encryption_version"`
}

type Note struct {
	ID               string       `json:"id"`
	Owner            string       `json:"owner"`
	EncryptedContent []byte       `json:"encrypted_content"`
	Metadata         NoteMetadata `json:"metadata"`
	SharedWith       []string     `json:"shared_with,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// IsSharedWith reports whether identity appears in the note's recipient set.
func (n *Note) IsSharedWith(identity string) bool {
	for _, id := range n.SharedWith {
		if id == identity {
			return true
		}
	}
	return false
}

type CreateNoteRequest struct {
	ID               string       `json:"id,omitempty"`
	EncryptedContent []byte       `json:"encrypted_content" validate:"required"`
	Metadata         NoteMetadata `json:"metadata"`
}

type UpdateNoteRequest struct {
	EncryptedContent []byte        `json:"encrypted_content" validate:"required"`
	Metadata         *NoteMetadata `json:"metadata"`
}

type ShareNoteRequest struct {
	Recipient string `json:"recipient" validate:"required"`
}

type NoteResponse struct {
	ID               string       `json:"id"`
	Owner            string       `json:"owner"`
	EncryptedContent []byte       `json:"encrypted_content"`
	Metadata         NoteMetadata `json:"metadata"`
	SharedWith       []string     `json:"shared_with,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

func NewNoteResponse(n *Note) *NoteResponse {
	return &NoteResponse{
		ID:               n.ID,
		Owner:            n.Owner,
		EncryptedContent: n.EncryptedContent,
		Metadata:         n.Metadata,
		SharedWith:       n.SharedWith,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}
