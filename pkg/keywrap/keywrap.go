// Package keywrap seals note keys to recipient identities. A sealed share
// can only be opened with the recipient's private key, so neither backing
// store ever sees plaintext key material.
package keywrap

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

const KeySize = 32

// GenerateKeyPair returns a fresh X25519 key pair for an identity.
func GenerateKeyPair() (pub, priv []byte, err error) {
	pubKey, privKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	return pubKey[:], privKey[:], nil
}

// Seal wraps key material for a recipient's public key using an ephemeral
// sender key, so only the recipient can recover it.
func Seal(material, recipientPub []byte) ([]byte, error) {
	if len(recipientPub) != KeySize {
		return nil, fmt.Errorf("recipient public key must be %d bytes, got %d", KeySize, len(recipientPub))
	}

	var pub [KeySize]byte
	copy(pub[:], recipientPub)

	sealed, err := box.SealAnonymous(nil, material, &pub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to seal key material: %w", err)
	}
	return sealed, nil
}

// Open recovers key material sealed to the given key pair.
func Open(sealed, recipientPub, recipientPriv []byte) ([]byte, error) {
	if len(recipientPub) != KeySize || len(recipientPriv) != KeySize {
		return nil, fmt.Errorf("key pair halves must be %d bytes", KeySize)
	}

	var pub, priv [KeySize]byte
	copy(pub[:], recipientPub)
	copy(priv[:], recipientPriv)

	material, ok := box.OpenAnonymous(nil, sealed, &pub, &priv)
	if !ok {
		return nil, fmt.Errorf("failed to open sealed key material")
	}
	return material, nil
}
