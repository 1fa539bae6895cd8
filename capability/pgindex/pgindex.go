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

// Package pgindex provides an optional PostgreSQL-backed implementation of
// capability.EmbeddingIndex, for deployments that want capability
// descriptions to survive a restart without standing up a dedicated vector
// database. It stores raw description text per capability key; Query ranks
// candidates with the same degraded substring/token-overlap scorer the
// capability package uses when no backend is configured at all, which keeps
// behavior identical whether or not Postgres is in the loop — only
// persistence changes.
package pgindex

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentfabric/fabric/capability"
)

// Config holds PostgreSQL connection configuration, mirroring the fields
// the fabric's other storage-backed components use.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c *Config) connString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Index is a capability.EmbeddingIndex backed by a capability_embeddings
// table (capability_key TEXT PRIMARY KEY, description TEXT).
type Index struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and returns an Index. Callers must have already
// created the capability_embeddings table (see schema.sql).
func New(ctx context.Context, cfg *Config) (*Index, error) {
	pool, err := pgxpool.New(ctx, cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("pgindex: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgindex: ping database: %w", err)
	}
	return &Index{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (idx *Index) Close() {
	idx.pool.Close()
}

// Upsert stores or replaces the description for capabilityKey.
func (idx *Index) Upsert(ctx context.Context, capabilityKey, text string) error {
	const query = `
		INSERT INTO capability_embeddings (capability_key, description)
		VALUES ($1, $2)
		ON CONFLICT (capability_key) DO UPDATE SET description = EXCLUDED.description
	`
	if _, err := idx.pool.Exec(ctx, query, capabilityKey, text); err != nil {
		return fmt.Errorf("pgindex: upsert %s: %w", capabilityKey, err)
	}
	return nil
}

// Remove deletes capabilityKey's stored description.
func (idx *Index) Remove(ctx context.Context, capabilityKey string) error {
	const query = `DELETE FROM capability_embeddings WHERE capability_key = $1`
	if _, err := idx.pool.Exec(ctx, query, capabilityKey); err != nil {
		return fmt.Errorf("pgindex: remove %s: %w", capabilityKey, err)
	}
	return nil
}

// Query scores every stored description against text and returns the top k
// by descending score.
func (idx *Index) Query(ctx context.Context, text string, k int) ([]capability.RawMatch, error) {
	const query = `SELECT capability_key, description FROM capability_embeddings`
	rows, err := idx.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgindex: query: %w", err)
	}
	defer rows.Close()

	var matches []capability.RawMatch
	for rows.Next() {
		var key, description string
		if err := rows.Scan(&key, &description); err != nil {
			return nil, fmt.Errorf("pgindex: scan row: %w", err)
		}
		matches = append(matches, capability.RawMatch{
			CapabilityKey: key,
			RawScore:      capability.DegradedScore(text, description),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgindex: row iteration: %w", err)
	}

	capability.SortRawMatchesDescending(matches)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Persist is a no-op: Postgres is already the durable store, there is
// nothing additional to flush to path.
func (idx *Index) Persist(ctx context.Context, path string) error {
	return nil
}

// Restore is a no-op for the same reason Persist is.
func (idx *Index) Restore(ctx context.Context, path string) error {
	return nil
}
