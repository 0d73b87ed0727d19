package tags

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
	"github.com/go-flac/go-flac"
)

// Read reads tag metadata from an audio file. The returned tag holds only
// the fields the pipeline uses; a file with no tag block at all yields a tag
// with empty fields, not an error.
func Read(path string) (*Tag, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtMP3:
		return readMP3(path)
	case ExtFLAC:
		return readFLAC(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

// readFLAC reads FLAC metadata. The generic reader covers well-formed
// files; anything it rejects gets a second chance with the FLAC library,
// which tolerates a missing comment block.
func readFLAC(path string) (*Tag, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return readFLACFallback(path)
	}

	track, _ := m.Track()
	t := &Tag{
		Path:        path,
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		TrackNumber: track,
		Year:        m.Year(),
		Genre:       m.Genre(),
		HasArtwork:  m.Picture() != nil,
	}
	return t, nil
}

// readMP3 reads ID3 metadata directly. The generic reader mishandles
// v2.4 date frames and some UTF-16 encodings, so MP3 goes straight to the
// ID3 library.
func readMP3(path string) (*Tag, error) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer id3tag.Close()

	track, _ := parseNumberPair(getID3TextFrame(id3tag, "TRCK"))

	year := 0
	if yearStr := id3tag.Year(); len(yearStr) >= 4 {
		year, _ = strconv.Atoi(yearStr[:4])
	}
	if year == 0 {
		if tdrc := getID3TextFrame(id3tag, "TDRC"); len(tdrc) >= 4 {
			year, _ = strconv.Atoi(tdrc[:4])
		}
	}

	t := &Tag{
		Path:        path,
		Title:       id3tag.Title(),
		Artist:      id3tag.Artist(),
		Album:       id3tag.Album(),
		AlbumArtist: getID3TextFrame(id3tag, "TPE2"),
		TrackNumber: track,
		Year:        year,
		Genre:       id3tag.Genre(),
		HasArtwork:  len(id3tag.GetFrames(id3tag.CommonID("Attached picture"))) > 0,
	}
	return t, nil
}

// readFLACFallback reads a FLAC file with go-flac when dhowden/tag fails.
func readFLACFallback(path string) (*Tag, error) {
	f, err := parseFLACFile(path)
	if err != nil {
		return nil, err
	}

	t := &Tag{Path: path}
	comments, _, err := extractVorbisComments(f)
	if err != nil {
		// Parsed container without a comment block is still a valid,
		// merely untagged file.
		comments = nil
	}
	for _, c := range comments {
		key, value, ok := strings.Cut(c, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(key) {
		case "TITLE":
			t.Title = value
		case "ARTIST":
			t.Artist = value
		case "ALBUM":
			t.Album = value
		case "ALBUMARTIST":
			t.AlbumArtist = value
		case "TRACKNUMBER":
			t.TrackNumber, _ = strconv.Atoi(value)
		case "DATE":
			if len(value) >= 4 {
				t.Year, _ = strconv.Atoi(value[:4])
			}
		case "GENRE":
			t.Genre = value
		}
	}
	for _, block := range f.Meta {
		if block.Type == flac.Picture {
			t.HasArtwork = true
			break
		}
	}
	return t, nil
}

// parseNumberPair parses a track number string like "5" or "5/10".
func parseNumberPair(s string) (num, total int) {
	if s == "" {
		return 0, 0
	}
	parts := strings.SplitN(s, "/", 2)
	num, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		total, _ = strconv.Atoi(parts[1])
	}
	return num, total
}

// getID3TextFrame reads a text frame value from an ID3v2 tag.
func getID3TextFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}
