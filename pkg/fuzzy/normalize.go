// Package fuzzy normalizes track titles and uploader names so they can be
// reused as search queries.
package fuzzy

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex       = regexp.MustCompile(`(?i)\s*[\(\[]?\s*(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	decorationRegex = regexp.MustCompile(`(?i)\s*[\(\[]\s*(official\s+(?:music\s+)?video|official\s+audio|lyric\s+video|lyrics|visualizer|hd|4k|remaster(?:ed)?(?:\s+\d{4})?)\s*[\)\]]\s*`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalize lower-cases the text, strips diacritics and punctuation, and
// collapses whitespace.
func Normalize(text string) string {
	text = norm.NFKD.String(text)

	var b strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}

// StripDecorations removes featuring credits and video-upload decorations
// like "(Official Video)" from a title.
func StripDecorations(title string) string {
	title = featRegex.ReplaceAllString(title, " ")
	title = decorationRegex.ReplaceAllString(title, " ")
	title = whitespaceRegex.ReplaceAllString(title, " ")
	return strings.TrimSpace(title)
}

// LeadingWords returns the first n whitespace-separated words of the text.
func LeadingWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
