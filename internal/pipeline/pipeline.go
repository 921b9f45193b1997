package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"chorale/internal/ledger"
	"chorale/internal/llm"
	"chorale/internal/logging"
	"chorale/internal/memory"
)

// Result is what one exchange produces.
type Result struct {
	FinalText      string
	Intent         Intent
	ExchangeID     string
	ImagePath      string
	MathResult     string
	RecallDecision *RecallDecision
	Witness        *ledger.Entry
}

// Pipeline is the exchange orchestrator. Conversational continuity is
// scoped by a caller-supplied thread ID; memory, corpus and ledger are
// shared across all threads.
type Pipeline struct {
	gen             *Generator
	dir             *Director
	exec            *Executor
	ledger          *ledger.Ledger
	memory          *memory.Service
	directorEnabled bool

	mu      sync.Mutex
	threads map[string][]llm.Message
}

// New wires the orchestrator.
func New(gen *Generator, dir *Director, exec *Executor, led *ledger.Ledger, mem *memory.Service, directorEnabled bool) *Pipeline {
	return &Pipeline{
		gen:             gen,
		dir:             dir,
		exec:            exec,
		ledger:          led,
		memory:          mem,
		directorEnabled: directorEnabled,
		threads:         make(map[string][]llm.Message),
	}
}

// Run processes one user message through the graph: intake, generate,
// conditionally director and tool execution, assemble, then the witness
// ledger write. Only a generation failure aborts; every other failure
// degrades the response.
func (p *Pipeline) Run(ctx context.Context, threadID, userMessage string) (*Result, error) {
	st := &State{Messages: append(p.history(threadID), llm.User(userMessage))}

	// Intake.
	st.Merge(Update{
		Intent:     ptr(ClassifyIntent(userMessage)),
		ExchangeID: ptr(uuid.NewString()[:8]),
		TargetTime: ptr(time.Now().UTC().Format(time.RFC3339)),
	})
	logging.Pipeline("exchange %s: intent=%s thread=%s", st.ExchangeID, st.Intent, threadID)

	// Generate.
	upd, err := p.gen.Run(ctx, st)
	if err != nil {
		return nil, err
	}
	st.Merge(upd)

	// Director and downstream tools, skipped for small talk.
	if st.Intent != IntentSimple && p.directorEnabled && p.dir != nil {
		st.Merge(p.dir.Run(ctx, st))
		if d := st.Director; d != nil && (d.ImagePrompt != "" || d.MathExpression != "") && p.exec != nil {
			st.Merge(p.exec.Run(ctx, st))
		}
		st.Merge(Assemble(st))
	}

	// The simple path never assembles; the raw text is the response.
	// Merge is write-once, so this is a no-op when assembly ran.
	st.Merge(Update{FinalResponse: ptr(st.VoiceRaw)})

	entry := p.witness(ctx, st, userMessage)

	p.saveHistory(threadID, st.Messages)

	return &Result{
		FinalText:      st.FinalResponse,
		Intent:         st.Intent,
		ExchangeID:     st.ExchangeID,
		ImagePath:      st.ImagePath,
		MathResult:     st.MathResult,
		RecallDecision: st.RecallDecision,
		Witness:        entry,
	}, nil
}

// witness stores an exchange summary to memory and inscribes the
// algorithmic witness. Both writes are best-effort.
func (p *Pipeline) witness(ctx context.Context, st *State, userMessage string) *ledger.Entry {
	if userMessage == "" || st.FinalResponse == "" {
		return nil
	}

	summary := fmt.Sprintf("User: %s\nVoice: %s", clip(userMessage, 200), clip(st.FinalResponse, 300))
	if _, err := p.memory.Remember(ctx, summary, []string{string(st.Intent)}, "pipeline", st.ExchangeID); err != nil {
		logging.Pipeline("exchange %s: memory write skipped: %v", st.ExchangeID, err)
	}

	entry, err := p.ledger.InscribeAlgorithmic(ctx, st.ExchangeID, st.TargetTime, userMessage, st.FinalResponse, string(st.Intent))
	if err != nil {
		logging.Pipeline("exchange %s: inscription skipped: %v", st.ExchangeID, err)
		return nil
	}
	return entry
}

func (p *Pipeline) history(threadID string) []llm.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := p.threads[threadID]
	out := make([]llm.Message, len(stored))
	copy(out, stored)
	return out
}

func (p *Pipeline) saveHistory(threadID string, messages []llm.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	stored := make([]llm.Message, len(messages))
	copy(stored, messages)
	p.threads[threadID] = stored
}

// clip cuts to at most n bytes, backing up to a rune boundary so the
// summary never carries a split rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
