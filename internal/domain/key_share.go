package domain

import "time"

// SharedKeyRecord holds the opaque, recipient-bound fragment of a note's
// symmetric key. One record exists per (note, recipient) pair, created only
// by the note's owner. There is no revocation: removing a recipient does not
// retroactively protect material that was already distributed.
type SharedKeyRecord struct {
	NoteID               string    `json:"note_id"`
	Recipient            string    `json:"recipient"`
	EncryptedKeyMaterial []byte    `json:"encrypted_key_material"`
	CreatedAt            time.Time `json:"created_at"`
}

type KeyShareResponse struct {
	NoteID               string `json:"note_id"`
	EncryptedKeyMaterial []byte `json:"encrypted_key_material"`
}
