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

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	sagecrypto "github.com/agentfabric/fabric/crypto"
	"github.com/agentfabric/fabric/crypto/formats"
	"github.com/agentfabric/fabric/identity"
)

var (
	keygenType       string
	keygenFormat     string
	keygenStorageDir string
	keygenKeyID      string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an agent identity key pair",
	Long: `Generate a new signing key pair and derive the agent id it anchors
(did:key:<sha256 of the public key>).

Supported key types: ed25519 (default), rsa.
Supported output formats: jwk, pem, storage (persisted to --storage-dir under
--key-id).`,
	Example: `  fabric keygen --type ed25519 --format jwk
  fabric keygen --type ed25519 --format storage --storage-dir ./keys --key-id alice`,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&keygenType, "type", "t", "ed25519", "Key type (ed25519, rsa)")
	keygenCmd.Flags().StringVarP(&keygenFormat, "format", "f", "jwk", "Output format (jwk, pem, storage)")
	keygenCmd.Flags().StringVarP(&keygenStorageDir, "storage-dir", "s", "./keys", "Storage directory (format=storage)")
	keygenCmd.Flags().StringVarP(&keygenKeyID, "key-id", "k", "", "Key id / agent label (format=storage)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	var keyType sagecrypto.KeyType
	switch keygenType {
	case "ed25519":
		keyType = sagecrypto.KeyTypeEd25519
	case "rsa":
		keyType = sagecrypto.KeyTypeRSA
	default:
		return fmt.Errorf("unsupported key type: %s", keygenType)
	}

	id, err := identity.CreateWithKeyType(keyType)
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}

	switch keygenFormat {
	case "jwk":
		return printExported(formats.NewJWKExporter(), id, sagecrypto.KeyFormatJWK)
	case "pem":
		return printExported(formats.NewPEMExporter(), id, sagecrypto.KeyFormatPEM)
	case "storage":
		return storeIdentity(id)
	default:
		return fmt.Errorf("unsupported output format: %s", keygenFormat)
	}
}

func printExported(exporter sagecrypto.KeyExporter, id *identity.Identity, format sagecrypto.KeyFormat) error {
	priv, err := exporter.Export(id.KeyPair(), format)
	if err != nil {
		return fmt.Errorf("export private key: %w", err)
	}
	pub, err := exporter.ExportPublic(id.KeyPair(), format)
	if err != nil {
		return fmt.Errorf("export public key: %w", err)
	}

	fmt.Printf("Agent ID: %s\n", id.ID())
	fmt.Printf("Key type: %s\n\n", id.KeyType())
	fmt.Printf("--- private key ---\n%s\n", priv)
	fmt.Printf("--- public key ---\n%s\n", pub)
	return nil
}

func storeIdentity(id *identity.Identity) error {
	if keygenKeyID == "" {
		return fmt.Errorf("--key-id is required for format=storage")
	}

	store, err := sagecrypto.NewFileKeyStorage(keygenStorageDir)
	if err != nil {
		return fmt.Errorf("open key storage: %w", err)
	}
	if err := store.Store(keygenKeyID, id.KeyPair()); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	fmt.Printf("Agent ID: %s\n", id.ID())
	fmt.Printf("Key type: %s\n", id.KeyType())
	fmt.Printf("Stored as %q under %s\n", keygenKeyID, keygenStorageDir)
	return nil
}
