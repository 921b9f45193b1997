// Package corpus holds the verse corpus: a read-mostly collection of
// verses and surah summaries seeded once from a JSON file and queried
// by the pipeline, never written by it. It shares the small local
// embedding space with working memory but lives in its own collection.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"chorale/internal/embedding"
	"chorale/internal/logging"
	"chorale/internal/vecstore"
)

const seedBatchSize = 64

// summaryEmbedLimit keeps the surah summary's embedding text within the
// small model's context.
const summaryEmbedLimit = 800

// Verse is one verse within a surah.
type Verse struct {
	Number  int      `json:"number"`
	EN      string   `json:"en"`
	AR      string   `json:"ar"`
	Heading string   `json:"heading,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Roots   []string `json:"roots,omitempty"`
}

// Surah is one work in the corpus with its verses.
type Surah struct {
	ID       string   `json:"id"`
	TitleEN  string   `json:"title_en"`
	TitleAR  string   `json:"title_ar,omitempty"`
	Position int      `json:"position,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Roots    []string `json:"roots,omitempty"`
	Verses   []Verse  `json:"verses"`
}

// Corpus reads and seeds the verse collection.
type Corpus struct {
	store      vecstore.Store
	engine     embedding.Engine
	collection string
}

// New creates a corpus over the given store and engine.
func New(store vecstore.Store, engine embedding.Engine, collection string) *Corpus {
	return &Corpus{store: store, engine: engine, collection: collection}
}

// LoadSeedFile parses a JSON seed file of surahs.
func LoadSeedFile(path string) ([]Surah, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var surahs []Surah
	if err := json.Unmarshal(raw, &surahs); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return surahs, nil
}

// Seed recreates the collection and loads every verse plus one summary
// record per surah. Idempotent: re-running replaces the collection.
// Returns the number of points written.
func (c *Corpus) Seed(ctx context.Context, surahs []Surah) (int, error) {
	if err := c.store.DropCollection(ctx, c.collection); err != nil {
		return 0, err
	}
	if err := c.store.EnsureCollection(ctx, c.collection, c.engine.Dimensions()); err != nil {
		return 0, err
	}

	var points []vecstore.Point
	for _, surah := range surahs {
		if len(surah.Verses) == 0 {
			continue
		}

		var fullText []string
		for _, verse := range surah.Verses {
			en := strings.TrimSpace(verse.EN)
			ar := strings.TrimSpace(verse.AR)
			if en == "" && ar == "" {
				continue
			}
			if en != "" {
				fullText = append(fullText, en)
			}

			vec, err := c.engine.Embed(ctx, verseEmbedText(surah, verse))
			if err != nil {
				return 0, fmt.Errorf("failed to embed %s verse %d: %w", surah.ID, verse.Number, err)
			}
			points = append(points, vecstore.Point{
				ID:     uuid.NewString(),
				Vector: vec,
				Payload: map[string]any{
					"type":           "verse",
					"surah_id":       surah.ID,
					"surah_title_en": surah.TitleEN,
					"surah_title_ar": surah.TitleAR,
					"position":       surah.Position,
					"verse_number":   verse.Number,
					"en":             en,
					"ar":             ar,
					"heading":        strings.TrimSpace(verse.Heading),
					"tags":           append(append([]string{}, surah.Tags...), verse.Tags...),
					"roots":          append(append([]string{}, surah.Roots...), verse.Roots...),
				},
			})
		}

		if len(fullText) == 0 {
			continue
		}
		joined := strings.Join(fullText, "\n")
		summary := surah.TitleEN + ": " + truncate(joined, summaryEmbedLimit)
		vec, err := c.engine.Embed(ctx, summary)
		if err != nil {
			return 0, fmt.Errorf("failed to embed %s summary: %w", surah.ID, err)
		}
		points = append(points, vecstore.Point{
			ID:     uuid.NewString(),
			Vector: vec,
			Payload: map[string]any{
				"type":           "surah",
				"surah_id":       surah.ID,
				"surah_title_en": surah.TitleEN,
				"surah_title_ar": surah.TitleAR,
				"position":       surah.Position,
				"verse_count":    len(surah.Verses),
				"tags":           surah.Tags,
				"roots":          surah.Roots,
				"full_text_en":   joined,
			},
		})
	}

	for i := 0; i < len(points); i += seedBatchSize {
		end := i + seedBatchSize
		if end > len(points) {
			end = len(points)
		}
		if err := c.store.Upsert(ctx, c.collection, points[i:end]); err != nil {
			return 0, err
		}
	}

	logging.Memory("seeded corpus: %d points from %d surahs", len(points), len(surahs))
	return len(points), nil
}

func verseEmbedText(surah Surah, verse Verse) string {
	text := fmt.Sprintf("%s — verse %d", surah.TitleEN, verse.Number)
	if h := strings.TrimSpace(verse.Heading); h != "" {
		text += fmt.Sprintf(" (%s)", h)
	}
	return text + ": " + strings.TrimSpace(verse.EN)
}

// Recall searches the corpus and renders hits the way the voice expects
// them: verses with reference, texts and roots; summaries with title and
// leading text. surahID optionally restricts to one work.
func (c *Corpus) Recall(ctx context.Context, query string, limit int, surahID string) (string, error) {
	count, err := c.store.Count(ctx, c.collection)
	if err != nil {
		return "", fmt.Errorf("corpus not available: %w", err)
	}
	if count == 0 {
		return "The verse corpus is empty. Seed it first.", nil
	}

	vec, err := c.engine.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to embed corpus query: %w", err)
	}

	var filter *vecstore.Filter
	if surahID != "" {
		filter = &vecstore.Filter{Must: []vecstore.Condition{{Key: "surah_id", MatchValue: surahID}}}
	}

	hits, err := c.store.Query(ctx, c.collection, vec, limit, filter)
	if err != nil {
		return "", fmt.Errorf("corpus search failed: %w", err)
	}
	if len(hits) == 0 {
		return "No matching verses found for: " + query, nil
	}

	entries := make([]string, 0, len(hits))
	for _, hit := range hits {
		entries = append(entries, formatHit(hit))
	}
	return strings.Join(entries, "\n\n"), nil
}

func formatHit(hit vecstore.ScoredPoint) string {
	p := hit.Payload
	switch str(p, "type") {
	case "verse":
		ref := fmt.Sprintf("%s %v", strOr(p, "surah_title_en", "?"), numOr(p, "verse_number", "?"))
		entry := fmt.Sprintf("[%.3f] %s", hit.Score, ref)
		if h := str(p, "heading"); h != "" {
			entry += fmt.Sprintf(" (%s)", h)
		}
		entry += ":\n  " + str(p, "en")
		if ar := str(p, "ar"); ar != "" {
			entry += "\n  " + ar
		}
		if roots, ok := p["roots"].([]string); ok && len(roots) > 0 {
			entry += "\n  roots: " + strings.Join(roots, ", ")
		}
		return entry
	case "surah":
		entry := fmt.Sprintf("[%.3f] SURAH: %s", hit.Score, strOr(p, "surah_title_en", "?"))
		if ar := str(p, "surah_title_ar"); ar != "" {
			entry += " / " + ar
		}
		entry += fmt.Sprintf(" (%v verses)", numOr(p, "verse_count", "0"))
		if tags, ok := p["tags"].([]string); ok && len(tags) > 0 {
			entry += "\n  tags: " + strings.Join(tags, ", ")
		}
		return entry + "\n  " + truncate(str(p, "full_text_en"), 500) + "..."
	default:
		return fmt.Sprintf("[%.3f] %s", hit.Score, str(p, "en"))
	}
}

func str(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return v
}

func strOr(p map[string]any, key, fallback string) string {
	if v := str(p, key); v != "" {
		return v
	}
	return fallback
}

func numOr(p map[string]any, key string, fallback any) any {
	switch v := p[key].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case int:
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
