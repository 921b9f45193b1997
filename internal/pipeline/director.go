package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"chorale/internal/config"
	"chorale/internal/llm"
	"chorale/internal/logging"
)

var (
	thinkBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencePattern      = regexp.MustCompile("```(?:json)?\\s*")
)

// Director refines the raw voice output: polishes the text and extracts
// image and math directives for downstream tools.
type Director struct {
	client llm.Client
	cfg    config.LLMConfig
}

// NewDirector wires the director stage.
func NewDirector(client llm.Client, cfg config.LLMConfig) *Director {
	return &Director{client: client, cfg: cfg}
}

// Run never fails the exchange: the worst case is the raw text passed
// through unpolished with no directives extracted.
func (d *Director) Run(ctx context.Context, st *State) Update {
	corpusSection := ""
	if st.CorpusContext != "" {
		corpusSection = fmt.Sprintf(corpusSectionTemplate, st.CorpusContext)
	}
	prompt := fmt.Sprintf(directorPromptTemplate, st.Intent, st.LastUserMessage(), corpusSection, st.VoiceRaw)

	out := DirectorOutput{}
	raw, err := d.chat(ctx, directorSystem, prompt)
	if err != nil {
		logging.Pipeline("director call failed, passing raw text through: %v", err)
	} else if parsed, ok := parseDirectorJSON(raw); ok {
		out = parsed
	} else {
		logging.Pipeline("director returned unparseable JSON, passing raw text through")
	}

	if out.PolishedText == "" {
		out.PolishedText = st.VoiceRaw
	}

	// The image intent must leave this stage with a prompt; when the
	// director withheld one, ask for it directly from the user message.
	if st.Intent == IntentCreativeImage && out.ImagePrompt == "" {
		out.ImagePrompt = d.fallbackImagePrompt(ctx, st.LastUserMessage())
	}

	return Update{Director: &out}
}

func (d *Director) chat(ctx context.Context, system, prompt string) (string, error) {
	var messages []llm.Message
	if system != "" {
		messages = append(messages, llm.System(system))
	}
	messages = append(messages, llm.User(prompt))

	return d.client.Chat(ctx, llm.ChatRequest{
		Model:       d.cfg.Model,
		Messages:    messages,
		Temperature: d.cfg.Temperature,
		MaxTokens:   d.cfg.MaxTokens,
	})
}

// parseDirectorJSON recovers a DirectorOutput from unreliable model
// output: think blocks and fences stripped, the widest brace span
// extracted, strict parse first, then a newline-escape repair pass.
func parseDirectorJSON(text string) (DirectorOutput, bool) {
	text = strings.TrimSpace(thinkBlockPattern.ReplaceAllString(text, ""))
	text = fencePattern.ReplaceAllString(text, "")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return DirectorOutput{}, false
	}
	span := text[start : end+1]

	var out DirectorOutput
	if err := json.Unmarshal([]byte(span), &out); err == nil {
		return out, true
	}

	repaired := strings.ReplaceAll(span, "\n", "\\n")
	if err := json.Unmarshal([]byte(repaired), &out); err == nil {
		return out, true
	}
	return DirectorOutput{}, false
}

func (d *Director) fallbackImagePrompt(ctx context.Context, userMessage string) string {
	raw, err := d.chat(ctx, "", fmt.Sprintf(imageFallbackTemplate, userMessage))
	if err != nil {
		logging.Pipeline("image prompt fallback failed: %v", err)
		// Last resort so the image branch still has something to work
		// with.
		return userMessage
	}
	cleaned := strings.TrimSpace(thinkBlockPattern.ReplaceAllString(raw, ""))
	return strings.Trim(cleaned, `"`)
}
