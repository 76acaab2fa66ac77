// Package lang maps human-readable language names to BCP 47 codes and
// answers the script questions the pipeline cares about: reading order and
// whether a script delimits words with spaces.
package lang

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// names maps the language names used in run configuration to BCP 47 tags.
var names = map[string]language.Tag{
	"japanese":              language.Japanese,
	"english":               language.English,
	"korean":                language.Korean,
	"chinese":               language.Chinese,
	"simplified chinese":    language.SimplifiedChinese,
	"traditional chinese":   language.TraditionalChinese,
	"french":                language.French,
	"german":                language.German,
	"spanish":               language.Spanish,
	"italian":               language.Italian,
	"portuguese":            language.Portuguese,
	"brazilian portuguese":  language.BrazilianPortuguese,
	"russian":               language.Russian,
	"dutch":                 language.Dutch,
	"thai":                  language.Thai,
	"vietnamese":            language.Vietnamese,
	"indonesian":            language.Indonesian,
	"arabic":                language.Arabic,
	"turkish":               language.Turkish,
	"polish":                language.Polish,
}

// Code returns the BCP 47 code for a language name ("Japanese" -> "ja").
// Unknown names fall back to parsing the name itself as a tag; if that also
// fails the empty string is returned.
func Code(name string) string {
	if tag, ok := names[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tag.String()
	}
	if tag, err := language.Parse(name); err == nil {
		return tag.String()
	}
	return ""
}

// RTLReading reports whether pages in this source language read right to
// left. Manga panels and bubbles are traversed right-to-left.
func RTLReading(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "japanese")
}

// NoWordSpaces reports whether the language's script does not delimit words
// with spaces, in which case spaces introduced by word wrapping are
// collapsed after layout.
func NoWordSpaces(code string) bool {
	base := strings.ToLower(code)
	for _, p := range []string{"zh", "ja", "th"} {
		if base == p || strings.HasPrefix(base, p+"-") {
			return true
		}
	}
	return false
}

// Upper upper-cases s using the casing rules of the given language code.
func Upper(s, code string) string {
	tag := language.Und
	if code != "" {
		if parsed, err := language.Parse(code); err == nil {
			tag = parsed
		}
	}
	return cases.Upper(tag).String(s)
}
