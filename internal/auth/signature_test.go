package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func signedProof(t *testing.T) (Proof, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	return Proof{
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		Challenge: base64.StdEncoding.EncodeToString(challenge),
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(priv, challenge)),
	}, pub
}

func TestProofVerify_Valid(t *testing.T) {
	p, pub := signedProof(t)
	key, err := p.Verify()
	if err != nil {
		t.Fatalf("expected signature to verify, got %v", err)
	}
	if key != base64.StdEncoding.EncodeToString(pub) {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestProofVerify_TamperedChallenge(t *testing.T) {
	p, _ := signedProof(t)
	p.Challenge = base64.StdEncoding.EncodeToString([]byte("something else"))
	if _, err := p.Verify(); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestProofVerify_InvalidLengths(t *testing.T) {
	if _, err := (Proof{}).Verify(); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}

	// public key wrong length
	p := Proof{
		PublicKey: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
		Challenge: base64.StdEncoding.EncodeToString([]byte{1}),
		Signature: base64.StdEncoding.EncodeToString(make([]byte, 64)),
	}
	if _, err := p.Verify(); !errors.Is(err, ErrInvalidPublicKey) {
		t.Fatalf("expected ErrInvalidPublicKey, got %v", err)
	}
}

func TestProofVerify_InvalidBase64(t *testing.T) {
	if _, err := (Proof{PublicKey: "not-base64", Challenge: "not-base64", Signature: "not-base64"}).Verify(); err == nil {
		t.Fatalf("expected error")
	}
}
