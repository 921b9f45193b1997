package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chorale/internal/config"
	"chorale/internal/corpus"
	"chorale/internal/llm"
	"chorale/internal/logging"
	"chorale/internal/memory"
	"chorale/internal/toolcall"
)

// ErrGenerationFailed marks a chat backend failure during generation.
// It is the only error that aborts an exchange.
var ErrGenerationFailed = errors.New("generation failed")

// memoryNudgeKeywords trigger a system hint that past conversation may
// be relevant. The voice still decides whether to recall.
var memoryNudgeKeywords = []string{
	"remember", "you once", "we talked about", "we discussed",
	"you said", "you told me", "last time", "before", "you wrote",
}

// Generator runs the generation stage: ambient recall, the first chat
// call, in-band tool dispatch, and the optional second chat call.
type Generator struct {
	voice        llm.Client
	voiceCfg     config.LLMConfig
	memory       *memory.Service
	archive      *memory.Archive
	corpus       *corpus.Corpus
	ambientK     int
	corpusRecall bool
}

// NewGenerator wires the generation stage.
func NewGenerator(voice llm.Client, voiceCfg config.LLMConfig, mem *memory.Service, arch *memory.Archive, corp *corpus.Corpus, ambientK int, corpusRecall bool) *Generator {
	if ambientK <= 0 {
		ambientK = 3
	}
	return &Generator{
		voice:        voice,
		voiceCfg:     voiceCfg,
		memory:       mem,
		archive:      arch,
		corpus:       corp,
		ambientK:     ambientK,
		corpusRecall: corpusRecall,
	}
}

// Run produces the raw voice output for the exchange. Tool failures are
// inlined as text and fed back to the model; only a chat backend
// failure is fatal.
func (g *Generator) Run(ctx context.Context, st *State) (Update, error) {
	userMessage := st.LastUserMessage()

	messages := []llm.Message{llm.System(voiceSystem)}
	if ambient := g.ambientRecall(ctx, userMessage); ambient != "" {
		messages = append(messages, llm.System(memoryContextHeader+ambient))
	}
	for _, msg := range st.Messages {
		if msg.Role == llm.RoleUser || msg.Role == llm.RoleAssistant {
			messages = append(messages, msg)
		}
	}
	if containsAny(strings.ToLower(userMessage), memoryNudgeKeywords) {
		messages = append(messages, llm.System(memoryNudge))
	}

	response, err := g.chat(ctx, messages)
	if err != nil {
		return Update{}, err
	}

	archiveContext := ""
	decision := &RecallDecision{}
	var toolResults []string

	for _, call := range toolcall.Parse(response) {
		switch call.Tool {
		case "recall_conversations":
			query := call.StringParam("query", userMessage)
			dateHint := call.StringParam("date_hint", "")
			logging.Pipeline("voice chose to recall conversations: query=%q date_hint=%q", query, dateHint)

			archiveContext = g.archive.Search(ctx, query, dateHint, 5)
			decision.Recalled = true
			decision.Query = query
			decision.DateHint = dateHint
			if archiveContext != "" {
				decision.Results = strings.Count(archiveContext, "---") + 1
				toolResults = append(toolResults, "[recall_conversations]: found")
			} else {
				toolResults = append(toolResults, "[recall_conversations]: no matching conversations found")
			}
		case "remember", "recall", "recall_verses":
			toolResults = append(toolResults, fmt.Sprintf("[%s]: %s", call.Tool, g.dispatch(ctx, call, st)))
		}
	}

	// Tool calls fired: feed the results back and let the voice answer
	// again with them in hand.
	if len(toolResults) > 0 {
		messages = append(messages, llm.Assistant(response))
		if archiveContext != "" {
			messages = append(messages, llm.System(archiveContextHeader+archiveContext))
		}

		var otherResults []string
		for _, r := range toolResults {
			if !strings.HasPrefix(r, "[recall_conversations]") {
				otherResults = append(otherResults, r)
			}
		}
		switch {
		case len(otherResults) > 0:
			messages = append(messages, llm.User("[Tool Results]\n"+strings.Join(otherResults, "\n")))
		case archiveContext != "":
			messages = append(messages, llm.User(archiveSurfacedNudge))
		default:
			messages = append(messages, llm.User(presentMomentNudge))
		}

		response, err = g.chat(ctx, messages)
		if err != nil {
			return Update{}, err
		}
	}

	corpusContext := ""
	if g.corpusRecall {
		corpusContext = g.ambientCorpusRecall(ctx, userMessage)
	}

	return Update{
		VoiceRaw:       ptr(toolcall.Strip(response)),
		CorpusContext:  ptr(corpusContext),
		ArchiveContext: ptr(archiveContext),
		RecallDecision: decision,
		AppendMessages: []llm.Message{llm.Assistant(response)},
	}, nil
}

func (g *Generator) chat(ctx context.Context, messages []llm.Message) (string, error) {
	response, err := g.voice.Chat(ctx, llm.ChatRequest{
		Model:       g.voiceCfg.Model,
		Messages:    messages,
		Temperature: g.voiceCfg.Temperature,
		MaxTokens:   g.voiceCfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return response, nil
}

// dispatch routes one in-band tool call. Every failure comes back as
// text: a broken tool must not take the exchange down with it.
func (g *Generator) dispatch(ctx context.Context, call toolcall.Call, st *State) string {
	switch call.Tool {
	case "remember":
		content := call.StringParam("content", "")
		tags := stringSliceParam(call, "tags")
		id, err := g.memory.Remember(ctx, content, tags, "voice", st.ExchangeID)
		if err != nil {
			return "Error: " + err.Error()
		}
		return fmt.Sprintf("Remembered (id=%s): %.80s", id[:8], content)
	case "recall":
		entries, err := g.memory.Recall(ctx, call.StringParam("query", ""), call.IntParam("n_results", 5))
		if err != nil {
			return "Error: " + err.Error()
		}
		return memory.FormatEntries(entries)
	case "recall_verses":
		result, err := g.corpus.Recall(ctx, call.StringParam("query", ""), call.IntParam("n_results", 5), call.StringParam("surah_id", ""))
		if err != nil {
			return "Error: " + err.Error()
		}
		return result
	default:
		return fmt.Sprintf("Error: Unknown tool '%s'", call.Tool)
	}
}

// ambientRecall is the unconditional small-k memory lookup that runs on
// every generation, independent of the model's tool-call convention.
func (g *Generator) ambientRecall(ctx context.Context, userMessage string) string {
	if strings.TrimSpace(userMessage) == "" {
		return ""
	}
	entries, err := g.memory.Recall(ctx, userMessage, g.ambientK)
	if err != nil || len(entries) == 0 {
		return ""
	}
	return memory.FormatEntries(entries)
}

func (g *Generator) ambientCorpusRecall(ctx context.Context, userMessage string) string {
	if strings.TrimSpace(userMessage) == "" {
		return ""
	}
	result, err := g.corpus.Recall(ctx, userMessage, 3, "")
	if err != nil || strings.HasPrefix(result, "No matching") || strings.Contains(result, "corpus is empty") {
		return ""
	}
	return result
}

func stringSliceParam(call toolcall.Call, key string) []string {
	raw, ok := call.Params[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
