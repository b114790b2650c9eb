package completion

import (
	"regexp"
	"strings"
	"unicode"
)

// closedThinking matches complete reasoning spans. Spans may cross lines.
var closedThinking = regexp.MustCompile(`(?s)<think>.*?</think>|<thinking>.*?</thinking>`)

var openingTags = []string{"<think>", "<thinking>"}

// Sanitize removes model reasoning markup from text.
//
// Closed <think>...</think> and <thinking>...</thinking> spans are removed
// first. If an opening tag is still present afterwards, the reasoning has not
// finished yet and everything from that tag on is dropped. Leading whitespace
// is trimmed last; trailing and inner whitespace is kept.
func Sanitize(text string) string {
	text = closedThinking.ReplaceAllString(text, "")

	cut := -1
	for _, tag := range openingTags {
		if i := strings.Index(text, tag); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut >= 0 {
		text = text[:cut]
	}

	return strings.TrimLeftFunc(text, unicode.IsSpace)
}
