package memory

import (
	"context"
	"fmt"
	"strings"

	"chorale/internal/embedding"
	"chorale/internal/logging"
	"chorale/internal/vecstore"
)

// archiveSnippetLimit caps each recalled conversation chunk so a
// five-hit recall stays within a reasonable context budget.
const archiveSnippetLimit = 1500

// Archive is the read-only long-term conversation archive. It lives in
// its own collection with its own embedding engine; archive vectors are
// never compared against working-memory vectors.
type Archive struct {
	store      vecstore.Store
	engine     embedding.Engine
	collection string
}

// NewArchive creates an archive reader.
func NewArchive(store vecstore.Store, engine embedding.Engine, collection string) *Archive {
	return &Archive{store: store, engine: engine, collection: collection}
}

// Search recalls past conversations by similarity, optionally narrowed
// by a natural-language date hint ("January 2025"). A date-filtered
// query that matches nothing is retried without the filter. The result
// is pre-formatted for injection into the voice's context; the empty
// string means nothing was found or the archive is unavailable —
// archive recall is always best-effort.
func (a *Archive) Search(ctx context.Context, query, dateHint string, limit int) string {
	if strings.TrimSpace(query) == "" {
		return ""
	}

	count, err := a.store.Count(ctx, a.collection)
	if err != nil || count == 0 {
		return ""
	}

	searchText := query
	if dateHint != "" {
		searchText = query + " " + dateHint
	}
	vec, err := a.engine.Embed(ctx, searchText)
	if err != nil {
		logging.Memory("archive embed failed: %v", err)
		return ""
	}

	var filter *vecstore.Filter
	if start, end, ok := ParseDateRange(searchText); ok {
		gte, lt := float64(start), float64(end)
		filter = &vecstore.Filter{Must: []vecstore.Condition{
			{Key: "date_unix", Range: &vecstore.RangeCond{GTE: &gte, LT: &lt}},
		}}
	}

	hits, err := a.store.Query(ctx, a.collection, vec, limit, filter)
	if err != nil {
		logging.Memory("archive search failed: %v", err)
		return ""
	}
	if len(hits) == 0 && filter != nil {
		hits, err = a.store.Query(ctx, a.collection, vec, limit, nil)
		if err != nil {
			logging.Memory("archive retry failed: %v", err)
			return ""
		}
	}
	if len(hits) == 0 {
		return ""
	}

	chunks := make([]string, 0, len(hits))
	for _, hit := range hits {
		chunks = append(chunks, formatArchiveHit(hit))
	}
	return strings.Join(chunks, "\n\n---\n\n")
}

func formatArchiveHit(hit vecstore.ScoredPoint) string {
	date := payloadString(hit.Payload, "date", "undated")
	title := payloadString(hit.Payload, "title", "")
	text := payloadString(hit.Payload, "text", "")
	turnStart := payloadString(hit.Payload, "turn_start", "?")
	turnEnd := payloadString(hit.Payload, "turn_end", "?")

	if len(text) > archiveSnippetLimit {
		text = text[:archiveSnippetLimit] + "..."
	}
	return fmt.Sprintf("[%.3f] %q (%s, turns %s-%s):\n%s", hit.Score, title, date, turnStart, turnEnd, text)
}

func payloadString(payload map[string]any, key, fallback string) string {
	switch v := payload[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return fmt.Sprintf("%d", int64(v))
	}
	return fallback
}
