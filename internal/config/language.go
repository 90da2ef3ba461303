package config

import "strings"

// languageIDs maps a case-folded language name to its Judge0 language id.
var languageIDs = map[string]int{
	"c++":        105,
	"cpp":        105,
	"java":       91,
	"javascript": 102,
	"js":         102,
	"python":     71,
	"c":          103,
}

// LanguageID resolves a language name to the sandbox language id.
func LanguageID(name string) (int, bool) {
	id, ok := languageIDs[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// KnownLanguageID reports whether id belongs to one of the supported languages.
func KnownLanguageID(id int) bool {
	for _, v := range languageIDs {
		if v == id {
			return true
		}
	}
	return false
}
