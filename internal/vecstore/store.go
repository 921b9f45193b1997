// Package vecstore abstracts the vector database used by the memory,
// corpus and ledger layers. The production backend is Qdrant over gRPC;
// an in-process implementation backs tests and degraded operation.
package vecstore

import (
	"context"
	"errors"
)

// ErrStoreUnavailable marks failures where the backend could not be
// reached at all. Callers that treat the store as best-effort (the
// ledger's semantic index, ambient recall) check for this and carry on.
var ErrStoreUnavailable = errors.New("vector store unavailable")

// Point is one stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a query hit. Score is cosine similarity in [-1, 1].
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// RangeCond constrains a numeric payload field. Nil bounds are open.
type RangeCond struct {
	GTE *float64
	LT  *float64
}

// Condition matches one payload field, either by exact value or range.
type Condition struct {
	Key        string
	MatchValue string
	Range      *RangeCond
}

// Filter is a conjunction of conditions.
type Filter struct {
	Must []Condition
}

// Store is the vector database capability. Collections are created
// lazily with a fixed dimensionality; mixing dimensionalities within a
// collection is an error.
type Store interface {
	// EnsureCollection creates the collection if it does not exist.
	EnsureCollection(ctx context.Context, name string, dims int) error

	// DropCollection removes the collection and everything in it.
	// Dropping a collection that does not exist is not an error.
	DropCollection(ctx context.Context, name string) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Query returns the top-limit points by cosine similarity to the
	// query vector, optionally restricted by a payload filter.
	Query(ctx context.Context, collection string, vector []float32, limit int, filter *Filter) ([]ScoredPoint, error)

	// Delete removes points by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// Scroll returns up to limit points matching the filter, without
	// similarity ranking.
	Scroll(ctx context.Context, collection string, filter *Filter, limit int) ([]Point, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, collection string) (uint64, error)

	// Close releases backend resources.
	Close() error
}
