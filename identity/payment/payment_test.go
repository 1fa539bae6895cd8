package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentfabric/fabric/crypto/keys"
)

func TestDeriveEthereumAddress(t *testing.T) {
	kp, err := keys.GenerateSecp256k1KeyPair()
	require.NoError(t, err)

	addr, err := DeriveEthereumAddress(kp.PublicKey())
	require.NoError(t, err)
	assert.Len(t, addr, 42)
	assert.Equal(t, "0x", addr[:2])
}

func TestDeriveEthereumAddress_WrongKeyType(t *testing.T) {
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	_, err = DeriveEthereumAddress(kp.PublicKey())
	assert.ErrorIs(t, err, ErrWrongKeyType)
}

func TestDeriveSolanaAddress(t *testing.T) {
	kp, err := keys.GenerateEd25519KeyPair()
	require.NoError(t, err)

	addr, err := DeriveSolanaAddress(kp.PublicKey())
	require.NoError(t, err)
	assert.NotEmpty(t, addr)
}

func TestDeriveSolanaAddress_WrongKeyType(t *testing.T) {
	kp, err := keys.GenerateSecp256k1KeyPair()
	require.NoError(t, err)

	_, err = DeriveSolanaAddress(kp.PublicKey())
	assert.ErrorIs(t, err, ErrWrongKeyType)
}
