package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"chorale/internal/llm"
)

func TestMergeIsWriteOnce(t *testing.T) {
	st := &State{}

	st.Merge(Update{VoiceRaw: ptr("first"), Intent: ptr(IntentCreative)})
	assert.Equal(t, "first", st.VoiceRaw)
	assert.Equal(t, IntentCreative, st.Intent)

	// A later stage proposing a fallback must not clobber what an
	// earlier stage set.
	st.Merge(Update{VoiceRaw: ptr("second"), Intent: ptr(IntentSimple)})
	assert.Equal(t, "first", st.VoiceRaw)
	assert.Equal(t, IntentCreative, st.Intent)
}

func TestMergeFillsEmptyFields(t *testing.T) {
	st := &State{VoiceRaw: "kept"}

	st.Merge(Update{
		VoiceRaw:      ptr("ignored"),
		FinalResponse: ptr("final"),
		Director:      &DirectorOutput{PolishedText: "polished"},
	})

	assert.Equal(t, "kept", st.VoiceRaw)
	assert.Equal(t, "final", st.FinalResponse)
	assert.Equal(t, "polished", st.Director.PolishedText)

	st.Merge(Update{Director: &DirectorOutput{PolishedText: "other"}})
	assert.Equal(t, "polished", st.Director.PolishedText)
}

func TestMergeAlwaysAppendsMessages(t *testing.T) {
	st := &State{Messages: []llm.Message{llm.User("hi")}}

	st.Merge(Update{AppendMessages: []llm.Message{llm.Assistant("hey")}})
	st.Merge(Update{AppendMessages: []llm.Message{llm.User("more")}})

	assert.Len(t, st.Messages, 3)
	assert.Equal(t, "hey", st.Messages[1].Content)
	assert.Equal(t, "more", st.Messages[2].Content)
}

func TestLastUserMessage(t *testing.T) {
	st := &State{Messages: []llm.Message{
		llm.User("first"),
		llm.Assistant("reply"),
		llm.User("second"),
		llm.Assistant("again"),
	}}
	assert.Equal(t, "second", st.LastUserMessage())

	empty := &State{}
	assert.Equal(t, "", empty.LastUserMessage())
}
