package util

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:[a-zA-Z]+)?\\s*(.*?)```")

// StripCodeFence returns the body of the first fenced code block in text, or
// text itself when no fence is present.
func StripCodeFence(text string) string {
	m := fencedBlock.FindStringSubmatch(text)
	if m == nil {
		return text
	}
	return strings.TrimSpace(m[1])
}

// ExtractJSONObject locates a JSON object embedded in free text. Candidates
// start at each "{" in turn and shrink from the last "}" until one decodes,
// so stray braces in prose ahead of the object are skipped.
func ExtractJSONObject(text string) ([]byte, bool) {
	return extract(StripCodeFence(text), "{", "}")
}

// ExtractJSONArray is ExtractJSONObject for arrays.
func ExtractJSONArray(text string) ([]byte, bool) {
	return extract(StripCodeFence(text), "[", "]")
}

func extract(text, open, close string) ([]byte, bool) {
	end := strings.LastIndex(text, close)
	for start := 0; start < end; start++ {
		next := strings.Index(text[start:end], open)
		if next == -1 {
			break
		}
		start += next
		for i := end; i > start; i-- {
			if text[i:i+1] != close {
				continue
			}
			candidate := strings.TrimSpace(text[start : i+1])
			if json.Valid([]byte(candidate)) {
				return []byte(candidate), true
			}
		}
	}
	return nil, false
}
