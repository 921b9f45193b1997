// Package pipeline runs one exchange through the orchestration graph:
// intake, generation, optional director refinement, optional tool
// execution, assembly, and the witness ledger write.
package pipeline

import (
	"chorale/internal/llm"
)

// Intent is the classified shape of a user message.
type Intent string

const (
	IntentSimple        Intent = "simple"
	IntentCreative      Intent = "creative"
	IntentCreativeImage Intent = "creative_with_image"
	IntentMath          Intent = "math"
)

// RecallDecision records whether the voice chose to reach into the
// long-term archive during generation.
type RecallDecision struct {
	Recalled bool
	Query    string
	DateHint string
	Results  int
}

// DirectorOutput is the director's refinement of the raw voice output.
// Optional fields are empty strings when the director extracted nothing.
type DirectorOutput struct {
	PolishedText   string `json:"polished_text"`
	ImagePrompt    string `json:"image_prompt"`
	ImageReference string `json:"image_reference"`
	MathExpression string `json:"math_expression"`
}

// State is the exchange record threaded through one pipeline run. It is
// created fresh per exchange; stages communicate only through it.
type State struct {
	Messages       []llm.Message
	Intent         Intent
	VoiceRaw       string // Generation output, tool blocks stripped
	CorpusContext  string
	ArchiveContext string
	RecallDecision *RecallDecision
	Director       *DirectorOutput
	ImagePath      string
	MathResult     string
	FinalResponse  string
	ExchangeID     string
	TargetTime     string
}

// Update carries the fields one stage contributes. Nil fields are "no
// contribution"; AppendMessages always extends the history.
type Update struct {
	AppendMessages []llm.Message
	Intent         *Intent
	VoiceRaw       *string
	CorpusContext  *string
	ArchiveContext *string
	RecallDecision *RecallDecision
	Director       *DirectorOutput
	ImagePath      *string
	MathResult     *string
	FinalResponse  *string
	ExchangeID     *string
	TargetTime     *string
}

// Merge folds an update into the state. Fields are write-once: a stage
// cannot overwrite what an earlier stage set, which keeps the union
// additive even when a later stage proposes a fallback value.
func (s *State) Merge(u Update) {
	s.Messages = append(s.Messages, u.AppendMessages...)

	if u.Intent != nil && s.Intent == "" {
		s.Intent = *u.Intent
	}
	if u.VoiceRaw != nil && s.VoiceRaw == "" {
		s.VoiceRaw = *u.VoiceRaw
	}
	if u.CorpusContext != nil && s.CorpusContext == "" {
		s.CorpusContext = *u.CorpusContext
	}
	if u.ArchiveContext != nil && s.ArchiveContext == "" {
		s.ArchiveContext = *u.ArchiveContext
	}
	if u.RecallDecision != nil && s.RecallDecision == nil {
		s.RecallDecision = u.RecallDecision
	}
	if u.Director != nil && s.Director == nil {
		s.Director = u.Director
	}
	if u.ImagePath != nil && s.ImagePath == "" {
		s.ImagePath = *u.ImagePath
	}
	if u.MathResult != nil && s.MathResult == "" {
		s.MathResult = *u.MathResult
	}
	if u.FinalResponse != nil && s.FinalResponse == "" {
		s.FinalResponse = *u.FinalResponse
	}
	if u.ExchangeID != nil && s.ExchangeID == "" {
		s.ExchangeID = *u.ExchangeID
	}
	if u.TargetTime != nil && s.TargetTime == "" {
		s.TargetTime = *u.TargetTime
	}
}

// LastUserMessage returns the most recent user message in the history.
func (s *State) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == llm.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

func ptr[T any](v T) *T { return &v }
