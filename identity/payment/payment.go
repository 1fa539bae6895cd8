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

// Package payment derives opaque payment addresses from agent key material.
// The fabric core never interprets these strings; AgentMetadata.PaymentAddress
// is a free-form field agents may populate however they like, and these
// helpers are a convenience for agents that want a deterministic address
// instead of supplying their own.
package payment

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	ErrWrongKeyType = errors.New("payment: wrong key type for requested address scheme")
)

// DeriveEthereumAddress derives a 0x-prefixed Ethereum-style address from a
// secp256k1 public key (as returned by a secp256k1 KeyPair's PublicKey()).
func DeriveEthereumAddress(publicKey interface{}) (string, error) {
	pub, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: expected *ecdsa.PublicKey, got %T", ErrWrongKeyType, publicKey)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// DeriveSolanaAddress derives a base58-encoded Solana-style address from an
// Ed25519 public key (as returned by an Ed25519 KeyPair's PublicKey()). The
// derived string is validated to be a well-formed 32-byte Solana public key
// before it is returned.
func DeriveSolanaAddress(publicKey interface{}) (string, error) {
	pub, ok := publicKey.(ed25519.PublicKey)
	if !ok {
		return "", fmt.Errorf("%w: expected ed25519.PublicKey, got %T", ErrWrongKeyType, publicKey)
	}

	if len(pub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("payment: invalid Ed25519 public key size: %d", len(pub))
	}

	// Round-trip through solana-go's key type to confirm the bytes form a
	// well-shaped Solana public key before handing back the address string.
	solanaKey := solana.PublicKeyFromBytes(pub)
	address := base58.Encode(pub)
	if solanaKey.String() != address {
		return "", errors.New("payment: base58 address does not match solana-go encoding")
	}

	return address, nil
}
