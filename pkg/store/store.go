// Package store is the persistence layer: repositories, runs, chunks with
// their embedding vectors, analysis results, and the cosine-similarity
// queries that back retrieval-augmented analysis. All SQL goes through a
// shared pgx pool; vector values use the pgvector column type and the `<=>`
// cosine-distance operator.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides access to the database.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store on the given pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("store.New: pool must not be nil")
	}
	return &Store{pool: pool}
}
