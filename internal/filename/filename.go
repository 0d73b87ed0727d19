// Package filename derives a best-effort artist/title guess from a bare
// filename. Parsing is purely syntactic: it knows nothing about whether the
// extracted strings are real artists or titles.
package filename

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Guess is the artist/title pair parsed from a filename. Either field may
// be empty.
type Guess struct {
	Artist string
	Title  string
}

// Empty reports whether no usable field was parsed.
func (g Guess) Empty() bool {
	return g.Artist == "" && g.Title == ""
}

// Query joins the known fields into a catalog search string. Returns the
// empty string when nothing was parsed.
func (g Guess) Query() string {
	parts := make([]string, 0, 2)
	if g.Artist != "" {
		parts = append(parts, g.Artist)
	}
	if g.Title != "" {
		parts = append(parts, g.Title)
	}
	return strings.Join(parts, " ")
}

// trackPrefix matches leading track numbers like "01.", "01 -" or "007_".
var trackPrefix = regexp.MustCompile(`^\d{1,3}[.\-_\s]+`)

const separator = " - "

// Parse derives a Guess from a file path or bare filename. It never fails;
// with no recognizable pattern the whole stem becomes the title.
//
// Supported patterns, first match wins:
//
//	"01 - Artist - Title.mp3"
//	"Artist - Title.mp3"
//	"01. Title.mp3"
//	"Title.mp3"
func Parse(path string) Guess {
	stem := filepath.Base(path)
	if ext := filepath.Ext(stem); ext != "" {
		stem = stem[:len(stem)-len(ext)]
	}
	stem = strings.TrimSpace(stem)

	// Track-number prefixes are stripped before pattern matching in all
	// cases.
	stem = strings.TrimSpace(trackPrefix.ReplaceAllString(stem, ""))
	if stem == "" {
		return Guess{}
	}

	if artist, title, ok := strings.Cut(stem, separator); ok {
		artist = strings.TrimSpace(artist)
		title = strings.TrimSpace(title)
		if artist != "" && title != "" {
			return Guess{Artist: artist, Title: title}
		}
	}

	return Guess{Title: stem}
}
