package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorale/internal/config"
	"chorale/internal/llm"
)

func TestParseDirectorJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want DirectorOutput
		ok   bool
	}{
		{
			name: "bare json",
			text: `{"polished_text": "clean", "image_prompt": "a moon", "image_reference": null, "math_expression": null}`,
			want: DirectorOutput{PolishedText: "clean", ImagePrompt: "a moon"},
			ok:   true,
		},
		{
			name: "fenced json",
			text: "```json\n{\"polished_text\": \"clean\", \"image_prompt\": null, \"image_reference\": null, \"math_expression\": null}\n```",
			want: DirectorOutput{PolishedText: "clean"},
			ok:   true,
		},
		{
			name: "think block then json",
			text: "<think>let me consider\nthe request</think>\n{\"polished_text\": \"after thought\", \"image_prompt\": null, \"image_reference\": null, \"math_expression\": null}",
			want: DirectorOutput{PolishedText: "after thought"},
			ok:   true,
		},
		{
			name: "commentary around json",
			text: "Here is the result:\n{\"polished_text\": \"wrapped\", \"image_prompt\": null, \"image_reference\": null, \"math_expression\": null}\nHope that helps!",
			want: DirectorOutput{PolishedText: "wrapped"},
			ok:   true,
		},
		{
			name: "literal newlines inside strings",
			text: "{\"polished_text\": \"line one\nline two\", \"image_prompt\": null, \"image_reference\": null, \"math_expression\": null}",
			want: DirectorOutput{PolishedText: "line one\nline two"},
			ok:   true,
		},
		{
			name: "no braces at all",
			text: "I could not produce JSON, sorry.",
			ok:   false,
		},
		{
			name: "unrecoverable garbage",
			text: "{not json at all]}",
			ok:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDirectorJSON(tt.text)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDirectorBackfillsPolishedText(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"polished_text": null, "image_prompt": null, "image_reference": null, "math_expression": null}`,
	}}
	d := NewDirector(client, config.LLMConfig{Model: "m"})
	st := &State{Intent: IntentCreative, VoiceRaw: "the raw text", Messages: []llm.Message{llm.User("write something")}}

	upd := d.Run(context.Background(), st)
	require.NotNil(t, upd.Director)
	assert.Equal(t, "the raw text", upd.Director.PolishedText)
}

func TestDirectorUnparseableOutputPassesRawThrough(t *testing.T) {
	client := &scriptedClient{responses: []string{"no json here"}}
	d := NewDirector(client, config.LLMConfig{Model: "m"})
	st := &State{Intent: IntentCreative, VoiceRaw: "the raw text", Messages: []llm.Message{llm.User("write something")}}

	upd := d.Run(context.Background(), st)
	require.NotNil(t, upd.Director)
	assert.Equal(t, "the raw text", upd.Director.PolishedText)
	assert.Empty(t, upd.Director.ImagePrompt)
}

func TestDirectorImagePromptFallback(t *testing.T) {
	client := &scriptedClient{responses: []string{
		// Image intent but the director withheld the prompt.
		`{"polished_text": "polished", "image_prompt": null, "image_reference": null, "math_expression": null}`,
		`"a moonlit sea, silver on black water"`,
	}}
	d := NewDirector(client, config.LLMConfig{Model: "m"})
	st := &State{Intent: IntentCreativeImage, VoiceRaw: "raw", Messages: []llm.Message{llm.User("show me the sea")}}

	upd := d.Run(context.Background(), st)
	require.NotNil(t, upd.Director)
	assert.Equal(t, "a moonlit sea, silver on black water", upd.Director.ImagePrompt)

	// The fallback call goes out without the director persona.
	require.Equal(t, 2, client.callCount())
	fallback := client.requests[1]
	for _, msg := range fallback.Messages {
		assert.NotEqual(t, llm.RoleSystem, msg.Role)
	}
}

func TestDirectorImagePromptFallbackUsesUserMessageOnError(t *testing.T) {
	client := &scriptedClient{responses: []string{
		`{"polished_text": "polished", "image_prompt": null, "image_reference": null, "math_expression": null}`,
	}}
	d := NewDirector(client, config.LLMConfig{Model: "m"})
	st := &State{Intent: IntentCreativeImage, VoiceRaw: "raw", Messages: []llm.Message{llm.User("show me the sea")}}

	// Script is exhausted, so the fallback chat call fails.
	upd := d.Run(context.Background(), st)
	require.NotNil(t, upd.Director)
	assert.Equal(t, "show me the sea", upd.Director.ImagePrompt)
}

func TestDirectorCallFailureYieldsRawText(t *testing.T) {
	client := &scriptedClient{err: errors.New("down")}
	d := NewDirector(client, config.LLMConfig{Model: "m"})
	st := &State{Intent: IntentCreative, VoiceRaw: "raw survives", Messages: []llm.Message{llm.User("write")}}

	upd := d.Run(context.Background(), st)
	require.NotNil(t, upd.Director)
	assert.Equal(t, "raw survives", upd.Director.PolishedText)
}
