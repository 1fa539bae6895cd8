// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package identity provides agent identity creation, key-based DID
// derivation, and signing/verification for the interconnect fabric.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	sagecrypto "github.com/agentfabric/fabric/crypto"
	"github.com/agentfabric/fabric/crypto/keys"
)

// AgentID is the fabric-wide identifier for an agent, in the form
// "did:key:<hex-encoded-public-key-hash>". It is derived deterministically
// from an agent's public key and never needs external registration.
type AgentID string

// Common identity errors.
var (
	ErrNoSigningCapability = errors.New("identity: key pair has no private key, cannot sign")
	ErrUnsupportedKeyType  = errors.New("identity: unsupported signing key type")
	ErrEmptyMessage        = errors.New("identity: cannot sign empty message")
)

// signingKeyTypes are the only key types permitted for agent identity
// signatures; secp256k1 and X25519 exist for payment-address derivation and
// encrypted sessions respectively, not for message signing.
var signingKeyTypes = map[sagecrypto.KeyType]bool{
	sagecrypto.KeyTypeEd25519: true,
	sagecrypto.KeyTypeRSA:     true,
}

// Identity represents an agent's cryptographic identity: a DID-style AgentID
// bound to a key pair capable of signing and verifying messages.
type Identity struct {
	id       AgentID
	keyPair  sagecrypto.KeyPair
	verified bool
}

// New wraps an existing key pair as an agent identity. The key type must be
// one of the fabric's supported signing algorithms (Ed25519 or
// RSA-PSS-SHA256); secp256k1 key pairs are rejected here even though the
// crypto layer supports them, since they are reserved for payment-address
// derivation (see identity/payment).
func New(keyPair sagecrypto.KeyPair) (*Identity, error) {
	if keyPair == nil {
		return nil, errors.New("identity: key pair cannot be nil")
	}
	if !signingKeyTypes[keyPair.Type()] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, keyPair.Type())
	}

	return &Identity{
		id:       DeriveAgentID(keyPair),
		keyPair:  keyPair,
		verified: true,
	}, nil
}

// Verified reports whether this identity's key material has been validated.
// An Identity constructed via New, CreateKeyBased, CreateWithKeyType, or
// FromPublicKey is always verified; the registry requires this before
// accepting a registration.
func (i *Identity) Verified() bool {
	return i.verified
}

// CreateKeyBased generates a fresh Ed25519 key pair and wraps it as a new
// identity. Ed25519 is the fabric's default signing algorithm.
func CreateKeyBased() (*Identity, error) {
	kp, err := keys.GenerateEd25519KeyPair()
	if err != nil {
		return nil, fmt.Errorf("identity: failed to generate key pair: %w", err)
	}
	return New(kp)
}

// CreateWithKeyType generates a fresh key pair of the requested signing
// algorithm and wraps it as a new identity.
func CreateWithKeyType(keyType sagecrypto.KeyType) (*Identity, error) {
	if !signingKeyTypes[keyType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, keyType)
	}

	var kp sagecrypto.KeyPair
	var err error
	switch keyType {
	case sagecrypto.KeyTypeEd25519:
		kp, err = keys.GenerateEd25519KeyPair()
	case sagecrypto.KeyTypeRSA:
		kp, err = keys.GenerateRSAKeyPair()
	}
	if err != nil {
		return nil, fmt.Errorf("identity: failed to generate %s key pair: %w", keyType, err)
	}
	return New(kp)
}

// DeriveAgentID computes the deterministic DID for a public key: a
// "did:key:" prefix followed by the hex SHA-256 hash of the key pair's ID
// material. Two key pairs with the same public key always derive the same
// AgentID.
func DeriveAgentID(keyPair sagecrypto.KeyPair) AgentID {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", keyPair.Type(), keyPair.ID())))
	return AgentID("did:key:" + hex.EncodeToString(sum[:]))
}

// ID returns the agent's DID.
func (i *Identity) ID() AgentID {
	return i.id
}

// KeyType returns the identity's signing algorithm.
func (i *Identity) KeyType() sagecrypto.KeyType {
	return i.keyPair.Type()
}

// PublicKey returns the identity's public key, usable by any peer to verify
// signatures produced by Sign.
func (i *Identity) PublicKey() interface{} {
	return i.keyPair.PublicKey()
}

// CanSign reports whether this identity holds a private key. Identities
// constructed from a public-key-only KeyPair (e.g. a remote peer's resolved
// identity) cannot sign.
func (i *Identity) CanSign() bool {
	return i.keyPair.PrivateKey() != nil
}

// Sign signs the canonical bytes of a message with this identity's private
// key. Returns ErrNoSigningCapability if the identity has no private key.
func (i *Identity) Sign(message []byte) ([]byte, error) {
	if len(message) == 0 {
		return nil, ErrEmptyMessage
	}
	if !i.CanSign() {
		return nil, ErrNoSigningCapability
	}
	return i.keyPair.Sign(message)
}

// Verify checks a signature against this identity's public key.
func (i *Identity) Verify(message, signature []byte) error {
	return i.keyPair.Verify(message, signature)
}

// KeyPair exposes the underlying key pair for advanced use (export, storage).
func (i *Identity) KeyPair() sagecrypto.KeyPair {
	return i.keyPair
}

// FromPublicKey builds a verification-only Identity for a remote peer, given
// only their declared key type and public key material. Hub routing and
// registry lookups use this to verify envelopes from agents whose private
// key is never held locally.
func FromPublicKey(keyType sagecrypto.KeyType, publicKeyBytes []byte) (*Identity, error) {
	if !signingKeyTypes[keyType] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKeyType, keyType)
	}

	kp, err := keys.PublicKeyOnly(keyType, publicKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to load public key: %w", err)
	}
	return New(kp)
}
