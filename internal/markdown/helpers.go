// Package markdown builds Telegram MarkdownV2 fragments.
package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `_*[]()~` + "`" + `>#+-=|{}.!\`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = lookup(mdV2SpecialChars)

// Inside (...) of an inline link only these need escaping.
//
//nolint:gochecknoglobals // Lookup table meant to be immutable.
var linkURLLookup = lookup(`)\`)

func lookup(chars string) [256]bool {
	var m [256]bool
	for i := range len(chars) {
		m[chars[i]] = true
	}
	return m
}

func escape(input string, table *[256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if table[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if table[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func EscapeV2(input string) string {
	return escape(input, &mdV2Lookup)
}

func Bold(text string) string {
	return "*" + EscapeV2(text) + "*"
}

func Italic(text string) string {
	return "_" + EscapeV2(text) + "_"
}

func Link(text, url string) string {
	return "[" + EscapeV2(text) + "](" + escape(url, &linkURLLookup) + ")"
}
