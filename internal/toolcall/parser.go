// Package toolcall parses the in-band tool-call convention the voice
// model uses: JSON objects wrapped in <tool_call> delimiter blocks
// embedded anywhere in the response text.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Non-greedy so adjacent blocks don't merge into one span.
var blockPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// Call is one parsed tool invocation.
type Call struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// Kind classifies a delimiter block found in the text.
type Kind int

const (
	// KindCall is a well-formed call with a tool name.
	KindCall Kind = iota
	// KindMalformed is a block whose body is not valid JSON or lacks a
	// tool name. Malformed blocks are still stripped from output.
	KindMalformed
)

// Block is one delimiter block with its classification, for callers
// that need to log what the model emitted.
type Block struct {
	Kind Kind
	Raw  string
	Call Call
}

// StringParam reads a string parameter with a fallback.
func (c Call) StringParam(key, fallback string) string {
	if v, ok := c.Params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// IntParam reads a numeric parameter with a fallback. JSON numbers
// decode as float64.
func (c Call) IntParam(key string, fallback int) int {
	if v, ok := c.Params[key].(float64); ok {
		return int(v)
	}
	return fallback
}

// Parse extracts all well-formed tool calls in order of appearance.
// Malformed blocks are skipped, never an error.
func Parse(text string) []Call {
	var calls []Call
	for _, block := range ParseAll(text) {
		if block.Kind == KindCall {
			calls = append(calls, block.Call)
		}
	}
	return calls
}

// ParseAll returns every delimiter block with its classification.
func ParseAll(text string) []Block {
	matches := blockPattern.FindAllStringSubmatch(text, -1)
	blocks := make([]Block, 0, len(matches))
	for _, m := range matches {
		raw := m[1]
		var call Call
		if err := json.Unmarshal([]byte(raw), &call); err != nil || call.Tool == "" {
			blocks = append(blocks, Block{Kind: KindMalformed, Raw: raw})
			continue
		}
		if call.Params == nil {
			call.Params = map[string]any{}
		}
		blocks = append(blocks, Block{Kind: KindCall, Raw: raw, Call: call})
	}
	return blocks
}

// Strip removes every delimiter block, well-formed or not, and trims
// surrounding whitespace.
func Strip(text string) string {
	return strings.TrimSpace(blockPattern.ReplaceAllString(text, ""))
}
