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
	"fmt"
	"time"

	"github.com/agentfabric/fabric/identity"
)

// ValidatorConfig governs envelope-level acceptance checks applied before a
// message is handed to a protocol or the hub.
type ValidatorConfig struct {
	// TimestampTolerance bounds how far a message's Timestamp may drift from
	// the validator's wall clock, in either direction, before it is rejected
	// as stale or from-the-future.
	TimestampTolerance time.Duration
}

// DefaultValidatorConfig mirrors the tolerance the source packet validator
// used for its control header, which is a reasonable default for envelopes
// carried over the same in-process hub.
func DefaultValidatorConfig() *ValidatorConfig {
	return &ValidatorConfig{TimestampTolerance: 30 * time.Second}
}

// Validator performs structural and cryptographic acceptance checks on a
// Message before it is accepted into the hub's routing path: well-formed
// fields, a protocol version this implementation understands, a timestamp
// within tolerance, and — when a sender identity is available — a valid
// signature.
type Validator struct {
	config   *ValidatorConfig
	verifier *Verifier
}

// NewValidator builds a Validator. A nil config uses DefaultValidatorConfig.
func NewValidator(config *ValidatorConfig) *Validator {
	if config == nil {
		config = DefaultValidatorConfig()
	}
	return &Validator{config: config, verifier: NewVerifier()}
}

// ValidateStructure checks the envelope's shape without touching
// cryptography: required fields populated, a known MessageType, a supported
// ProtocolVersion, and a timestamp within the configured tolerance.
func (v *Validator) ValidateStructure(m *Message) error {
	if m.SenderID == "" {
		return fmt.Errorf("protocol: message %s missing senderId", m.ID)
	}
	if m.ReceiverID == "" {
		return fmt.Errorf("protocol: message %s missing receiverId", m.ID)
	}
	if !m.MessageType.Valid() {
		return fmt.Errorf("protocol: message %s has unknown messageType %q", m.ID, m.MessageType)
	}
	if m.ProtocolVersion != ProtocolVersion {
		return fmt.Errorf("protocol: message %s has unsupported protocolVersion %q", m.ID, m.ProtocolVersion)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("protocol: message %s has empty timestamp", m.ID)
	}

	drift := time.Since(m.Timestamp)
	if drift < 0 {
		drift = -drift
	}
	if drift > v.config.TimestampTolerance {
		return fmt.Errorf("protocol: message %s timestamp outside tolerance window: drift %v", m.ID, drift)
	}
	return nil
}

// ValidateSignature additionally checks m's signature against the resolved
// sender identity. Call after ValidateStructure succeeds.
func (v *Validator) ValidateSignature(m *Message, sender *identity.Identity) error {
	return v.verifier.Verify(m, sender)
}

// Validate runs both structural and signature checks.
func (v *Validator) Validate(m *Message, sender *identity.Identity) error {
	if err := v.ValidateStructure(m); err != nil {
		return err
	}
	return v.ValidateSignature(m, sender)
}
