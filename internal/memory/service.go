// Package memory implements the persistent semantic memory layer: a
// small working memory the voice reads and writes during exchanges, and
// a read-only long-term conversation archive kept in a separate
// embedding space.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"chorale/internal/embedding"
	"chorale/internal/logging"
	"chorale/internal/vecstore"
)

// Entry is one memory with its retrieval score.
type Entry struct {
	ID        string
	Score     float32
	Content   string
	Tags      []string
	CreatedAt string
	Source    string
	SessionID string
}

// Service is the working-memory store. All entries share one embedding
// space (the small local model); writes are durable in the vector store
// only, there is no secondary log.
type Service struct {
	store      vecstore.Store
	engine     embedding.Engine
	collection string
}

// NewService creates a memory service over the given store and engine.
func NewService(store vecstore.Store, engine embedding.Engine, collection string) *Service {
	return &Service{store: store, engine: engine, collection: collection}
}

// Init ensures the backing collection exists.
func (s *Service) Init(ctx context.Context) error {
	return s.store.EnsureCollection(ctx, s.collection, s.engine.Dimensions())
}

// Remember stores a new memory and returns its ID.
func (s *Service) Remember(ctx context.Context, content string, tags []string, source, sessionID string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("cannot remember empty content")
	}

	vec, err := s.engine.Embed(ctx, content)
	if err != nil {
		return "", fmt.Errorf("failed to embed memory: %w", err)
	}

	if tags == nil {
		tags = []string{}
	}
	id := uuid.NewString()
	point := vecstore.Point{
		ID:     id,
		Vector: vec,
		Payload: map[string]any{
			"content":    content,
			"tags":       tags,
			"created_at": time.Now().UTC().Format(time.RFC3339),
			"source":     source,
			"session_id": sessionID,
		},
	}
	if err := s.store.Upsert(ctx, s.collection, []vecstore.Point{point}); err != nil {
		return "", fmt.Errorf("failed to store memory: %w", err)
	}

	logging.Memory("remembered %s: %.60s", id[:8], content)
	return id, nil
}

// Recall returns up to limit memories by similarity. An empty store
// yields an empty slice, not an error.
func (s *Service) Recall(ctx context.Context, query string, limit int) ([]Entry, error) {
	return s.search(ctx, query, "", limit)
}

// Search is Recall with an optional tag filter applied before ranking.
func (s *Service) Search(ctx context.Context, query, tag string, limit int) ([]Entry, error) {
	return s.search(ctx, query, tag, limit)
}

func (s *Service) search(ctx context.Context, query, tag string, limit int) ([]Entry, error) {
	vec, err := s.engine.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter *vecstore.Filter
	if tag != "" {
		filter = &vecstore.Filter{Must: []vecstore.Condition{{Key: "tags", MatchValue: tag}}}
	}

	hits, err := s.store.Query(ctx, s.collection, vec, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("memory search failed: %w", err)
	}

	entries := make([]Entry, 0, len(hits))
	for _, hit := range hits {
		entries = append(entries, entryFromHit(hit))
	}
	return entries, nil
}

// Forget deletes the single closest memory to the query and returns it.
// Returns (nil, nil) when there is nothing to forget.
func (s *Service) Forget(ctx context.Context, query string) (*Entry, error) {
	entries, err := s.Recall(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	target := entries[0]
	if err := s.store.Delete(ctx, s.collection, []string{target.ID}); err != nil {
		return nil, fmt.Errorf("failed to delete memory %s: %w", target.ID, err)
	}
	logging.Memory("forgot %s: %.60s", target.ID[:8], target.Content)
	return &target, nil
}

// Count returns the number of stored memories.
func (s *Service) Count(ctx context.Context) (uint64, error) {
	return s.store.Count(ctx, s.collection)
}

func entryFromHit(hit vecstore.ScoredPoint) Entry {
	e := Entry{ID: hit.ID, Score: hit.Score}
	if v, ok := hit.Payload["content"].(string); ok {
		e.Content = v
	}
	if v, ok := hit.Payload["tags"].([]string); ok {
		e.Tags = v
	}
	if v, ok := hit.Payload["created_at"].(string); ok {
		e.CreatedAt = v
	}
	if v, ok := hit.Payload["source"].(string); ok {
		e.Source = v
	}
	if v, ok := hit.Payload["session_id"].(string); ok {
		e.SessionID = v
	}
	return e
}

// FormatEntries renders entries one per line for tool results and the
// CLI: "[score] [tags] content (created_at)".
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "No matching memories found."
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		tagStr := ""
		if len(e.Tags) > 0 {
			tagStr = fmt.Sprintf(" [%s]", strings.Join(e.Tags, ", "))
		}
		created := e.CreatedAt
		if created == "" {
			created = "?"
		}
		lines = append(lines, fmt.Sprintf("[%.3f]%s %s (%s)", e.Score, tagStr, e.Content, created))
	}
	return strings.Join(lines, "\n")
}
