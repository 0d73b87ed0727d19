// Package tags reads and writes the embedded metadata block of audio files.
// MP3 (ID3v2) and FLAC (Vorbis comments) containers are supported. Writes go
// through a temp-file-and-rename cycle so a failed write never corrupts the
// original file.
package tags

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// File extensions supported by the tags package.
const (
	ExtMP3  = ".mp3"
	ExtFLAC = ".flac"
)

// ErrUnsupportedFormat is returned when a file's tag container is malformed
// or its format is not handled by this package.
var ErrUnsupportedFormat = errors.New("unsupported tag container format")

// Tag contains the tag fields the pipeline cares about. Frames outside this
// set are preserved opaquely across a Write.
type Tag struct {
	Path        string
	Title       string
	Artist      string
	Album       string
	AlbumArtist string
	TrackNumber int
	Year        int
	Genre       string

	// HasArtwork reports whether a picture frame was present during Read.
	HasArtwork bool

	// CoverArt holds raw image bytes to embed (write-only, not populated
	// during Read).
	CoverArt []byte
}

// Complete reports whether the tag already has usable artist, title and
// album values.
func (t *Tag) Complete() bool {
	return t != nil && t.Artist != "" && t.Title != "" && t.Album != ""
}

// Summary returns a short "Artist - Title [Album]" description.
func (t *Tag) Summary() string {
	artist := t.Artist
	if artist == "" {
		artist = "?"
	}
	title := t.Title
	if title == "" {
		title = "?"
	}
	if t.Album == "" {
		return artist + " - " + title
	}
	return artist + " - " + title + " [" + t.Album + "]"
}

// Merge combines an existing tag with an update. Non-zero update values win,
// everything else is carried over from the existing tag.
func Merge(existing, update *Tag) *Tag {
	if existing == nil {
		out := *update
		return &out
	}
	out := *existing
	if update.Title != "" {
		out.Title = update.Title
	}
	if update.Artist != "" {
		out.Artist = update.Artist
	}
	if update.Album != "" {
		out.Album = update.Album
	}
	if update.AlbumArtist != "" {
		out.AlbumArtist = update.AlbumArtist
	}
	if update.TrackNumber != 0 {
		out.TrackNumber = update.TrackNumber
	}
	if update.Year != 0 {
		out.Year = update.Year
	}
	if update.Genre != "" {
		out.Genre = update.Genre
	}
	if len(update.CoverArt) > 0 {
		out.CoverArt = update.CoverArt
	}
	return &out
}

// IsAudioFile returns true if the path has a supported audio file extension.
func IsAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ExtMP3 || ext == ExtFLAC
}

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"
)

// detectMimeType detects the MIME type of image data.
func detectMimeType(data []byte) string {
	if len(data) == 0 {
		return mimeJPEG
	}
	switch http.DetectContentType(data) {
	case mimePNG:
		return mimePNG
	default:
		return mimeJPEG
	}
}
