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

package crypto

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"errors"
	"sync"
)

// AlgorithmInfo contains metadata about a cryptographic algorithm supported
// for agent identity signing, as surfaced by the fabric's identity layer.
type AlgorithmInfo struct {
	KeyType KeyType

	Name        string
	Description string

	// SignatureName is the canonical name used when a Message records which
	// algorithm produced its signature (see protocol.Message.Algorithm).
	SignatureName string

	SupportsSigning       bool
	SupportsKeyGeneration bool
	SupportsEncryption    bool
}

var (
	registry      = make(map[KeyType]*AlgorithmInfo)
	nameToKeyType = make(map[string]KeyType)
	registryMutex sync.RWMutex

	ErrAlgorithmNotSupported = errors.New("algorithm not supported")
	ErrAlgorithmExists       = errors.New("algorithm already registered")
)

// RegisterAlgorithm registers a new algorithm in the registry. Called from
// package init() in crypto/keys.
func RegisterAlgorithm(info AlgorithmInfo) error {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if info.KeyType == "" {
		return errors.New("key type cannot be empty")
	}
	if _, exists := registry[info.KeyType]; exists {
		return ErrAlgorithmExists
	}
	if info.SupportsSigning && info.SignatureName == "" {
		return errors.New("SignatureName must be set if SupportsSigning is true")
	}

	registry[info.KeyType] = &info
	if info.SignatureName != "" {
		nameToKeyType[info.SignatureName] = info.KeyType
	}
	return nil
}

// GetAlgorithmInfo returns information about a registered algorithm.
func GetAlgorithmInfo(keyType KeyType) (*AlgorithmInfo, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	info, exists := registry[keyType]
	if !exists {
		return nil, ErrAlgorithmNotSupported
	}
	infoCopy := *info
	return &infoCopy, nil
}

// ListSupportedAlgorithms returns all registered algorithms.
func ListSupportedAlgorithms() []AlgorithmInfo {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	result := make([]AlgorithmInfo, 0, len(registry))
	for _, info := range registry {
		result = append(result, *info)
	}
	return result
}

// GetKeyTypeFromSignatureName maps a signature algorithm name back to a KeyType.
func GetKeyTypeFromSignatureName(name string) (KeyType, error) {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	keyType, exists := nameToKeyType[name]
	if !exists {
		return "", ErrAlgorithmNotSupported
	}
	return keyType, nil
}

// GetKeyTypeFromPublicKey maps a Go crypto.PublicKey to our KeyType. Used to
// validate that a Message's declared algorithm matches the sender's
// registered public key type before verification.
func GetKeyTypeFromPublicKey(publicKey interface{}) (KeyType, error) {
	switch publicKey.(type) {
	case ed25519.PublicKey:
		return KeyTypeEd25519, nil
	case *ecdsa.PublicKey:
		return KeyTypeSecp256k1, nil
	case *rsa.PublicKey:
		return KeyTypeRSA, nil
	default:
		return "", errors.New("unsupported public key type")
	}
}

// IsAlgorithmSupported checks if an algorithm is registered.
func IsAlgorithmSupported(keyType KeyType) bool {
	_, err := GetAlgorithmInfo(keyType)
	return err == nil
}
