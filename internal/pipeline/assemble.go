package pipeline

import (
	"os"
	"strings"

	"chorale/internal/llm"
)

// Assemble merges the polished text with the math and image results.
// Pure and deterministic apart from the file-existence check: an image
// reference goes out only when the file is actually on disk.
func Assemble(st *State) Update {
	polished := st.VoiceRaw
	if st.Director != nil && st.Director.PolishedText != "" {
		polished = st.Director.PolishedText
	}

	parts := []string{polished}
	if st.MathResult != "" {
		parts = append(parts, "\n\n---\n"+st.MathResult)
	}
	if st.ImagePath != "" && fileExists(st.ImagePath) {
		parts = append(parts, "\n\n![Generated Image]("+st.ImagePath+")")
	}

	final := strings.Join(parts, "\n")
	return Update{
		FinalResponse:  ptr(final),
		AppendMessages: []llm.Message{llm.Assistant(final)},
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
