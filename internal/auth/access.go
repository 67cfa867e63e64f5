// Package auth holds the pure authorization predicates for notes. The rules
// are stateless: ownership and the note's recipient set decide everything.
package auth

import "github.com/Buildathonzx/whisperrnote/internal/domain"

// IsAnonymous reports whether the caller carries no identity at all.
// Anonymous callers are rejected before any other check.
func IsAnonymous(identity string) bool {
	return identity == ""
}

func IsOwner(identity string, note *domain.Note) bool {
	return !IsAnonymous(identity) && note.Owner == identity
}

// CanRead allows the owner and every identity the note is shared with.
func CanRead(identity string, note *domain.Note) bool {
	if IsAnonymous(identity) {
		return false
	}
	return note.Owner == identity || note.IsSharedWith(identity)
}

// CanWrite allows only the owner. Recipients get read access, never write.
func CanWrite(identity string, note *domain.Note) bool {
	return IsOwner(identity, note)
}

// CanShare allows only the owner to grant access or key material.
func CanShare(identity string, note *domain.Note) bool {
	return IsOwner(identity, note)
}
