package domain

import (
	"path"
	"strings"

	"onsetscore/internal/platform/textnorm"
)

// ResolveExhibitName maps a recorded filename onto the name the exhibit has
// on disk under participantID's directory. The record's embedded id prefix
// (text before the first underscore) is replaced with the participant id in
// use, and accents are stripped because exhibits are written accent-free.
// Path separators in the participant id become dashes so the result stays a
// single path element.
// ResolveExhibitName(ResolveExhibitName(x, p), p) == ResolveExhibitName(x, p).
func ResolveExhibitName(recorded, participantID string) string {
	name := strings.TrimSpace(strings.ReplaceAll(recorded, "\\", "/"))
	if name == "" {
		return ""
	}
	name = path.Base(name)
	if name == "." || name == "/" {
		return ""
	}
	name = textnorm.StripAccents(name)

	pid := textnorm.StripAccents(strings.TrimSpace(participantID))
	pid = pidSeparators.Replace(pid)
	if pid == "" || strings.HasPrefix(name, pid+"_") {
		return name
	}
	if i := strings.Index(name, "_"); i > 0 {
		name = pid + name[i:]
	}
	return name
}

var pidSeparators = strings.NewReplacer("/", "-", "\\", "-")

// NormalizeWord is the accent-insensitive form used for stimulus comparison.
func NormalizeWord(word string) string {
	return textnorm.Fold(word)
}

// ExhibitURL is the canonical exhibit location when nothing is cached.
func ExhibitURL(exhibitPath, participantID, exhibitName string) string {
	base := strings.TrimRight(exhibitPath, "/")
	rest := path.Join(participantID, exhibitName)
	if base == "" {
		return rest
	}
	return base + "/" + rest
}
