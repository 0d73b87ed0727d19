// Package source defines the capability contract a music catalog backend
// must satisfy. The match resolver depends only on this contract, never on a
// concrete backend.
package source

import (
	"context"
	"errors"
	"strings"
)

// Catalog error conditions. Concrete backends wrap these so callers can
// classify failures with errors.Is.
var (
	// ErrUnavailable means the backend could not be reached or kept
	// failing after the client's own retries.
	ErrUnavailable = errors.New("catalog source unavailable")
	// ErrRateLimited means the backend throttled us past the retry budget.
	ErrRateLimited = errors.New("catalog source rate limited")
	// ErrAuthExpired means the backend rejected our credentials.
	ErrAuthExpired = errors.New("catalog credentials expired")
	// ErrInvalidQuery means there is nothing to search for.
	ErrInvalidQuery = errors.New("empty catalog query")
	// ErrNotFound means the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// Query is the known subset of a track's identity.
type Query struct {
	Artist string
	Title  string
}

// Empty reports whether both fields are unknown.
func (q Query) Empty() bool {
	return q.Artist == "" && q.Title == ""
}

// Swapped returns the query with artist and title exchanged. A
// "Title - Artist" filename reads the same as the default ordering, so
// match scoring considers both.
func (q Query) Swapped() Query {
	return Query{Artist: q.Title, Title: q.Artist}
}

// Keywords joins the known fields into a free-text search string.
func (q Query) Keywords() string {
	parts := make([]string, 0, 2)
	if q.Artist != "" {
		parts = append(parts, q.Artist)
	}
	if q.Title != "" {
		parts = append(parts, q.Title)
	}
	return strings.Join(parts, " ")
}

// Candidate is one catalog search result: a possible true identity for a
// local file. ArtworkRef is an opaque backend handle resolved lazily by
// FetchArtwork.
type Candidate struct {
	Artist      string
	Title       string
	Album       string
	AlbumArtist string
	TrackNumber int
	Year        int
	Genre       string
	ID          string
	ArtworkRef  string
	Source      string
}

// Summary returns a short "Artist - Title [Album]" description for
// candidate listings.
func (c Candidate) Summary() string {
	s := c.Artist + " - " + c.Title
	if c.Album != "" {
		s += " [" + c.Album + "]"
	}
	return s
}

// Source is a pluggable catalog backend. Search returns candidates ordered
// most-relevant first, bounded by the backend's page size.
type Source interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
	FetchArtwork(ctx context.Context, c Candidate) ([]byte, error)
}

// Detailer is an optional Source extension for catalogs whose search
// results omit fields that only a per-track detail lookup can provide.
// FetchDetail returns the candidate with the missing fields filled in.
type Detailer interface {
	FetchDetail(ctx context.Context, c Candidate) (Candidate, error)
}
