package domain

import "time"

// NoteVersion is an immutable snapshot of a note as it was before an update.
// History records what the note was, never the live copy.
type NoteVersion struct {
	VersionID        string       `json:"version_id"`
	NoteID           string       `json:"note_id"`
	EncryptedContent []byte       `json:"encrypted_content"`
	Metadata         NoteMetadata `json:"metadata"`
	Timestamp        time.Time    `json:"timestamp"`
}
