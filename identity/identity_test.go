package identity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sagecrypto "github.com/agentfabric/fabric/crypto"
)

func TestCreateKeyBased_SignVerifyRoundTrip(t *testing.T) {
	id, err := CreateKeyBased()
	require.NoError(t, err)
	require.True(t, id.CanSign())
	assert.Equal(t, sagecrypto.KeyTypeEd25519, id.KeyType())

	msg := []byte("hello fabric")
	sig, err := id.Sign(msg)
	require.NoError(t, err)

	assert.NoError(t, id.Verify(msg, sig))
	assert.Error(t, id.Verify([]byte("tampered"), sig))
}

func TestDeriveAgentID_Deterministic(t *testing.T) {
	id, err := CreateKeyBased()
	require.NoError(t, err)

	again, err := New(id.KeyPair())
	require.NoError(t, err)

	assert.Equal(t, id.ID(), again.ID())
}

func TestCreateWithKeyType_RSA(t *testing.T) {
	id, err := CreateWithKeyType(sagecrypto.KeyTypeRSA)
	require.NoError(t, err)
	assert.Equal(t, sagecrypto.KeyTypeRSA, id.KeyType())

	msg := []byte("rsa pss message")
	sig, err := id.Sign(msg)
	require.NoError(t, err)
	assert.NoError(t, id.Verify(msg, sig))
}

func TestCreateWithKeyType_RejectsSecp256k1(t *testing.T) {
	_, err := CreateWithKeyType(sagecrypto.KeyTypeSecp256k1)
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}

func TestFromPublicKey_VerifyOnly(t *testing.T) {
	id, err := CreateKeyBased()
	require.NoError(t, err)

	pub, ok := id.PublicKey().(ed25519.PublicKey)
	require.True(t, ok)

	remote, err := FromPublicKey(sagecrypto.KeyTypeEd25519, []byte(pub))
	require.NoError(t, err)
	assert.False(t, remote.CanSign())

	msg := []byte("hello fabric")
	sig, err := id.Sign(msg)
	require.NoError(t, err)
	assert.NoError(t, remote.Verify(msg, sig))
}

func TestSign_EmptyMessageRejected(t *testing.T) {
	id, err := CreateKeyBased()
	require.NoError(t, err)

	_, err = id.Sign(nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}
