// Package ledger implements the witness ledger: an append-only record
// of every exchange, judged either algorithmically (embedding drift) or
// by a human. The JSONL file is the authoritative trail; a semantic
// index in the vector store rides alongside it, best-effort.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"chorale/internal/embedding"
	"chorale/internal/logging"
	"chorale/internal/vecstore"
)

// Polarity is the witness's judgment of an exchange.
type Polarity string

const (
	PolarityCoherent     Polarity = "coherent"
	PolarityGap          Polarity = "gap"
	PolarityUnclassified Polarity = "unclassified"
)

// Discipline identifies the kind of witness behind an entry.
type Discipline string

const (
	DisciplineAlgorithmic Discipline = "algorithmic"
	DisciplineHuman       Discipline = "human"
)

// hornLimit caps each side of the horn so one long exchange cannot
// bloat the ledger.
const hornLimit = 500

// Witness describes who judged and under what parameters.
type Witness struct {
	Discipline Discipline     `json:"discipline"`
	Identity   string         `json:"identity"`
	Parameters map[string]any `json:"parameters"`
}

// Horn is the two sides of the witnessed exchange.
type Horn struct {
	User     string `json:"user"`
	Response string `json:"response"`
}

// Entry is one witness record. IDs are ULIDs so the file sorts by
// inscription time even after merges.
type Entry struct {
	ID          string         `json:"id"`
	ExchangeID  string         `json:"exchange_id"`
	WitnessTime string         `json:"witness_time"`
	TargetTime  string         `json:"target_time"`
	Intent      string         `json:"intent"`
	Witness     Witness        `json:"witness"`
	Horn        Horn           `json:"horn"`
	Polarity    Polarity       `json:"polarity"`
	Evidence    map[string]any `json:"evidence"`
}

// Ledger appends witness entries and searches the semantic index.
type Ledger struct {
	mu         sync.Mutex
	path       string
	store      vecstore.Store
	engine     embedding.Engine
	collection string
}

// New creates a ledger writing to path with a semantic index in the
// given collection.
func New(path string, store vecstore.Store, engine embedding.Engine, collection string) *Ledger {
	return &Ledger{path: path, store: store, engine: engine, collection: collection}
}

// Path returns the JSONL location, for the stats reader.
func (l *Ledger) Path() string { return l.path }

// InscribeAlgorithmic witnesses an exchange by embedding drift: cosine
// similarity between the user's message and the response, classified by
// fixed thresholds. The raw witness is heuristic, not authoritative.
func (l *Ledger) InscribeAlgorithmic(ctx context.Context, exchangeID, targetTime, user, response, intent string) (*Entry, error) {
	userVec, err := l.engine.Embed(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to embed user horn: %w", err)
	}
	respVec, err := l.engine.Embed(ctx, response)
	if err != nil {
		return nil, fmt.Errorf("failed to embed response horn: %w", err)
	}
	similarity, err := embedding.CosineSimilarity(userVec, respVec)
	if err != nil {
		return nil, err
	}

	entry := l.newEntry(exchangeID, targetTime, user, response, intent)
	entry.Witness = Witness{
		Discipline: DisciplineAlgorithmic,
		Identity:   "drift",
		Parameters: map[string]any{
			"method":             "cosine_similarity",
			"model":              l.engine.Name(),
			"threshold_coherent": ThresholdCoherent,
			"threshold_gap":      ThresholdGap,
		},
	}
	entry.Polarity = Classify(similarity)
	entry.Evidence = map[string]any{
		"similarity": round4(similarity),
		"drift":      round4(1.0 - similarity),
	}

	return entry, l.inscribe(ctx, entry)
}

// InscribeHuman witnesses an exchange with a caller-supplied polarity
// and stance.
func (l *Ledger) InscribeHuman(ctx context.Context, exchangeID, targetTime, user, response string, polarity Polarity, stance, intent string) (*Entry, error) {
	entry := l.newEntry(exchangeID, targetTime, user, response, intent)
	entry.Witness = Witness{
		Discipline: DisciplineHuman,
		Identity:   "operator",
		Parameters: map[string]any{"stance": stance},
	}
	entry.Polarity = polarity
	entry.Evidence = map[string]any{"stance": stance}

	return entry, l.inscribe(ctx, entry)
}

func (l *Ledger) newEntry(exchangeID, targetTime, user, response, intent string) *Entry {
	if exchangeID == "" {
		exchangeID = strings.ToLower(ulid.Make().String()[:8])
	}
	return &Entry{
		ID:          ulid.Make().String(),
		ExchangeID:  exchangeID,
		WitnessTime: time.Now().UTC().Format(time.RFC3339),
		TargetTime:  targetTime,
		Intent:      intent,
		Horn: Horn{
			User:     truncate(user, hornLimit),
			Response: truncate(response, hornLimit),
		},
	}
}

// inscribe appends to the JSONL, which must succeed, then updates the
// semantic index, which may not.
func (l *Ledger) inscribe(ctx context.Context, entry *Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal ledger entry: %w", err)
	}

	l.mu.Lock()
	err = l.appendLine(line)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.indexEntry(ctx, entry, line)
	logging.Ledger("inscribed %s: exchange=%s polarity=%s", entry.ID, entry.ExchangeID, entry.Polarity)
	return nil
}

func (l *Ledger) appendLine(line []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// indexEntry upserts into the semantic index. Failures are logged and
// dropped: the JSONL entry is already durable.
func (l *Ledger) indexEntry(ctx context.Context, entry *Entry, line []byte) {
	stance, _ := entry.Evidence["stance"].(string)
	searchText := fmt.Sprintf("%s | %s | %s | %s", entry.Horn.User, entry.Horn.Response, entry.Polarity, stance)

	vec, err := l.engine.Embed(ctx, searchText)
	if err != nil {
		logging.Ledger("index embed failed (JSONL entry preserved): %v", err)
		return
	}
	if err := l.store.EnsureCollection(ctx, l.collection, l.engine.Dimensions()); err != nil {
		logging.Ledger("index collection failed (JSONL entry preserved): %v", err)
		return
	}

	// Point IDs must be UUIDs; derive one deterministically from the
	// entry's ULID so re-indexing stays idempotent.
	point := vecstore.Point{
		ID:     uuidFromULID(entry.ID),
		Vector: vec,
		Payload: map[string]any{
			"entry_json":  string(line),
			"entry_id":    entry.ID,
			"exchange_id": entry.ExchangeID,
			"polarity":    string(entry.Polarity),
			"discipline":  string(entry.Witness.Discipline),
			"intent":      entry.Intent,
		},
	}
	if err := l.store.Upsert(ctx, l.collection, []vecstore.Point{point}); err != nil {
		logging.Ledger("index upsert failed (JSONL entry preserved): %v", err)
	}
}

// Search runs a semantic query over the index. Any failure yields an
// empty result: the index is an accelerator, not a source of truth.
func (l *Ledger) Search(ctx context.Context, query string, limit int) []Entry {
	vec, err := l.engine.Embed(ctx, query)
	if err != nil {
		return nil
	}
	hits, err := l.store.Query(ctx, l.collection, vec, limit, nil)
	if err != nil {
		return nil
	}

	entries := make([]Entry, 0, len(hits))
	for _, hit := range hits {
		raw, ok := hit.Payload["entry_json"].(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

func uuidFromULID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

// truncate cuts to at most n bytes without splitting a rune, so horns
// stay valid UTF-8 through the JSON round-trip.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
