package auth

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
)

var (
	ErrInvalidPublicKey = errors.New("Invalid public key")
	ErrInvalidSignature = errors.New("Invalid signature")
)

// Proof is a signed login challenge. All fields are standard base64.
type Proof struct {
	PublicKey string `json:"publicKey"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

// Verify checks the signature and returns the canonical encoding of the
// public key, which identifies the account.
func (p Proof) Verify() (string, error) {
	publicKey, err := base64.StdEncoding.DecodeString(p.PublicKey)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return "", ErrInvalidPublicKey
	}

	challenge, err := base64.StdEncoding.DecodeString(p.Challenge)
	if err != nil || len(challenge) == 0 {
		return "", ErrInvalidSignature
	}

	signature, err := base64.StdEncoding.DecodeString(p.Signature)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return "", ErrInvalidSignature
	}

	if !ed25519.Verify(ed25519.PublicKey(publicKey), challenge, signature) {
		return "", ErrInvalidSignature
	}
	return base64.StdEncoding.EncodeToString(publicKey), nil
}
