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

package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/agentfabric/fabric/identity"
	"github.com/agentfabric/fabric/internal/metrics"
)

// Signing/verification errors.
var (
	ErrNotSigned          = errors.New("protocol: message has no signature")
	ErrSignatureMismatch  = errors.New("protocol: signature does not verify against sender's public key")
	ErrCannotSign         = errors.New("protocol: identity cannot sign (no private key)")
)

// Signer produces canonical signatures over outbound messages using a local
// identity's private key. It never touches the network or the hub; callers
// attach the result to Message.Signature before handing the envelope to a
// protocol for routing.
type Signer struct {
	id *identity.Identity
}

// NewSigner binds a Signer to the identity whose private key will sign
// every message passed to Sign.
func NewSigner(id *identity.Identity) *Signer {
	return &Signer{id: id}
}

// Sign computes the canonical form of m and signs it with the bound
// identity's private key, returning the signature without mutating m.
func (s *Signer) Sign(m *Message) ([]byte, error) {
	algorithm := string(s.id.KeyType())
	start := time.Now()

	if !s.id.CanSign() {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, ErrCannotSign
	}
	canon, err := Canonicalize(m)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, fmt.Errorf("protocol: canonicalize for signing: %w", err)
	}
	sig, err := s.id.Sign(canon)
	metrics.CryptoOperationDuration.WithLabelValues("sign", algorithm).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("sign").Inc()
		return nil, err
	}
	metrics.CryptoOperations.WithLabelValues("sign", algorithm).Inc()
	return sig, nil
}

// SignInPlace signs m and stores the result in m.Signature.
func (s *Signer) SignInPlace(m *Message) error {
	sig, err := s.Sign(m)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// Verifier checks signatures on inbound messages against the declared
// sender's public key. The dispatch itself is a single call into the
// sender identity's own Verify — unlike core/rfc9421's verifier, which picks
// among Ed25519 and ECDSA/secp256k1 per an algorithm tag, the fabric only
// ever signs with Ed25519 or RSA-PSS-SHA256 (identity.signingKeyTypes), so
// the algorithm is implicit in the sender's identity rather than carried on
// the wire.
type Verifier struct{}

// NewVerifier constructs a stateless Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks that m.Signature is a valid signature, produced by sender,
// over m's canonical form. sender must be the Identity resolved for
// m.SenderID (via identity.FromPublicKey or a locally held identity).
func (v *Verifier) Verify(m *Message, sender *identity.Identity) error {
	algorithm := string(sender.KeyType())
	start := time.Now()

	if len(m.Signature) == 0 {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return ErrNotSigned
	}
	canon, err := Canonicalize(m)
	if err != nil {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return fmt.Errorf("protocol: canonicalize for verification: %w", err)
	}
	verifyErr := sender.Verify(canon, m.Signature)
	metrics.CryptoOperationDuration.WithLabelValues("verify", algorithm).Observe(time.Since(start).Seconds())
	if verifyErr != nil {
		metrics.CryptoErrors.WithLabelValues("verify").Inc()
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, verifyErr)
	}
	metrics.CryptoOperations.WithLabelValues("verify", algorithm).Inc()
	return nil
}
