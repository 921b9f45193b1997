package pipeline

import "strings"

// Keyword sets for intent classification. Substring matching on the
// lower-cased message; partial stems ("illustrat", "meditat") catch
// their inflections.
var (
	imageKeywords = []string{
		"image", "picture", "paint", "draw", "sketch", "portrait", "illustrat",
		"visual", "photo", "render", "depict", "show me",
	}
	mathKeywords = []string{
		"integral", "derivative", "equation", "solve for", "compute", "calculate",
		"matrix", "sum of", "product of", "plot the function", "graph of",
	}
	creativeKeywords = []string{
		"write", "poem", "ghazal", "surah", "story", "create", "compose",
		"verse", "sing", "hymn", "prayer", "reflect", "meditat",
		"remember", "recall", "talked about", "we discussed",
	}
)

// simpleTokenLimit is the longest a message can be, in whitespace
// tokens, and still count as small talk when no keyword matched.
const simpleTokenLimit = 8

// ClassifyIntent maps a user message to an intent. Pure and total:
// never errors, empty input is simple. Priority is fixed — math beats
// image beats creative beats the short-message heuristic.
func ClassifyIntent(text string) Intent {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, mathKeywords):
		return IntentMath
	case containsAny(lower, imageKeywords):
		return IntentCreativeImage
	case containsAny(lower, creativeKeywords):
		return IntentCreative
	case len(strings.Fields(lower)) <= simpleTokenLimit:
		return IntentSimple
	default:
		return IntentCreative
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
