package aiclient

import "unicode"

// Clip shortens text to at most limit runes. When a space falls in the last
// tenth of the allowance the cut is made there so no word is split.
// A non-positive limit returns text unchanged.
func Clip(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	cut := limit
	for i := limit; i > limit-limit/10 && i > 0; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return string(runes[:cut])
}
