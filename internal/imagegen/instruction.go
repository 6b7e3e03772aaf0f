package imagegen

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultQualitySuffix is appended to every prompt unless configured otherwise.
const DefaultQualitySuffix = "Hyperrealistic detail, good lighting, natural color, cinematic"

// MaxPromptRunes bounds the prompt accepted from a user. Longer prompts are
// rejected, never cut.
const MaxPromptRunes = 1000

// NormalizePrompt NFC-normalizes the prompt, drops control characters and
// collapses runs of whitespace. The result is empty when nothing printable remains.
func NormalizePrompt(raw string) string {
	normalized := norm.NFC.String(raw)
	var b strings.Builder
	b.Grow(len(normalized))
	space := false
	for _, r := range normalized {
		if unicode.IsSpace(r) {
			space = b.Len() > 0
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		if space {
			b.WriteRune(' ')
			space = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PromptTooLong reports whether a normalized prompt exceeds MaxPromptRunes.
func PromptTooLong(prompt string) bool {
	return utf8.RuneCountInString(prompt) > MaxPromptRunes
}

// BuildInstruction composes the text sent to the model: the quality suffix
// followed by the user's scene description.
func BuildInstruction(prompt, qualitySuffix string) string {
	parts := []string{}
	if suffix := strings.TrimSpace(qualitySuffix); suffix != "" {
		parts = append(parts, strings.TrimRight(suffix, ". ,"))
	}
	if p := NormalizePrompt(prompt); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}
