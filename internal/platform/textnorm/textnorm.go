// Package textnorm canonicalizes stimulus text and exhibit file names the same
// way the data-preparation pipeline does when it writes exhibits to disk.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents decomposes s (NFD), drops combining marks and recomposes the
// remainder. It is idempotent.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold is StripAccents plus lower-casing and space trimming, used for
// accent-insensitive word comparison.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(StripAccents(s)))
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug folds s and collapses every run of other characters into a dash, for
// ids that end up in file names.
func Slug(s string) string {
	out := strings.Trim(nonSlug.ReplaceAllString(Fold(s), "-"), "-")
	if out == "" {
		return "untitled"
	}
	return out
}
