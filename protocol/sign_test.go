package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sagecrypto "github.com/agentfabric/fabric/crypto"
	"github.com/agentfabric/fabric/identity"
)

func newTestIdentity(t *testing.T) *identity.Identity {
	t.Helper()
	id, err := identity.CreateKeyBased()
	require.NoError(t, err)
	return id
}

func TestSignVerify_RoundTrip(t *testing.T) {
	sender := newTestIdentity(t)

	m := New(string(sender.ID()), "did:key:receiver", "hello", MessageTypeText, time.Now())
	signer := NewSigner(sender)
	require.NoError(t, signer.SignInPlace(m))
	require.NotEmpty(t, m.Signature)

	verifier := NewVerifier()
	assert.NoError(t, verifier.Verify(m, sender))
}

func TestSignVerify_TamperedSignatureFails(t *testing.T) {
	sender := newTestIdentity(t)

	m := New(string(sender.ID()), "did:key:receiver", "hello", MessageTypeText, time.Now())
	signer := NewSigner(sender)
	require.NoError(t, signer.SignInPlace(m))

	// Flip a byte of the signature; verification must then fail.
	m.Signature[0] ^= 0xFF

	verifier := NewVerifier()
	err := verifier.Verify(m, sender)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSignVerify_TamperedContentFails(t *testing.T) {
	sender := newTestIdentity(t)

	m := New(string(sender.ID()), "did:key:receiver", "hello", MessageTypeText, time.Now())
	signer := NewSigner(sender)
	require.NoError(t, signer.SignInPlace(m))

	m.Content = "tampered"

	verifier := NewVerifier()
	err := verifier.Verify(m, sender)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestSign_UnsignedMessageRejectedByVerifier(t *testing.T) {
	sender := newTestIdentity(t)
	m := New(string(sender.ID()), "did:key:receiver", "hello", MessageTypeText, time.Now())

	verifier := NewVerifier()
	err := verifier.Verify(m, sender)
	assert.ErrorIs(t, err, ErrNotSigned)
}

func TestCanonicalize_Deterministic(t *testing.T) {
	now := time.Now()
	m1 := New("a", "b", "c", MessageTypeText, now)
	m1.ID = "fixed-id"
	m2 := New("a", "b", "c", MessageTypeText, now)
	m2.ID = "fixed-id"

	b1, err := Canonicalize(m1)
	require.NoError(t, err)
	b2, err := Canonicalize(m2)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestSignVerify_RSAIdentity(t *testing.T) {
	sender, err := identity.CreateWithKeyType(sagecrypto.KeyTypeRSA)
	require.NoError(t, err)

	m := New(string(sender.ID()), "did:key:receiver", "rsa pss body", MessageTypeCommand, time.Now())
	signer := NewSigner(sender)
	require.NoError(t, signer.SignInPlace(m))

	verifier := NewVerifier()
	assert.NoError(t, verifier.Verify(m, sender))
}
