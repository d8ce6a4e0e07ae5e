package lexical

import "strings"

// Tokenizer splits text into terms.
type Tokenizer func(text string) []string

// Whitespace splits on runs of whitespace and keeps case.
func Whitespace(text string) []string {
	return strings.Fields(text)
}

// FoldedWhitespace splits on whitespace and lower-cases every term.
func FoldedWhitespace(text string) []string {
	return strings.Fields(strings.ToLower(text))
}
