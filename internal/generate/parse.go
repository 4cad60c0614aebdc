package generate

import (
	"encoding/json"
	"regexp"
	"strings"

	"feedsim/internal/logging"
)

// Item is one generated user/post pair as returned by the model.
type Item struct {
	Name    string `json:"name"`
	NameID  string `json:"nameId"`
	Message string `json:"message"`
}

var fence = regexp.MustCompile("```(?:json)?\\s*")

// ParseItems extracts items from model output. The text may be wrapped in
// markdown fences and may hold several top-level JSON objects back to back;
// the "tweets" array of every object is collected. Malformed objects are
// skipped.
func ParseItems(text string) []Item {
	text = fence.ReplaceAllString(text, "")
	var out []Item
	for _, obj := range splitObjects(text) {
		var payload struct {
			Tweets []Item `json:"tweets"`
		}
		if err := json.Unmarshal([]byte(obj), &payload); err != nil {
			logging.Warn("generation_parse_skip", map[string]any{"error": err.Error()})
			continue
		}
		out = append(out, payload.Tweets...)
	}
	return out
}

// splitObjects cuts text into top-level {...} spans by brace depth, ignoring
// braces inside JSON strings. Text outside objects is dropped.
func splitObjects(text string) []string {
	var (
		objs    []string
		depth   int
		start   = -1
		inStr   bool
		escaped bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inStr = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				objs = append(objs, strings.TrimSpace(text[start:i+1]))
				start = -1
			}
		}
	}
	return objs
}
