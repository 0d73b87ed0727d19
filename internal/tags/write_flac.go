package tags

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// managedFields are the Vorbis comment keys this package owns. Comments
// with any other key survive a write verbatim.
var managedFields = map[string]bool{
	flacvorbis.FIELD_TITLE:       true,
	flacvorbis.FIELD_ARTIST:      true,
	flacvorbis.FIELD_ALBUM:       true,
	"ALBUMARTIST":                true,
	flacvorbis.FIELD_TRACKNUMBER: true,
	flacvorbis.FIELD_DATE:        true,
	"GENRE":                      true,
}

// parseFLACFile opens a FLAC stream, converting the library's panic on
// truncated input into an error. A stream that ends right after its
// metadata blocks trips an out-of-range read inside the frame parser.
func parseFLACFile(path string) (f *flac.File, err error) {
	defer func() {
		if r := recover(); r != nil {
			f = nil
			err = fmt.Errorf("%w: malformed flac stream: %v", ErrUnsupportedFormat, r)
		}
	}()
	f, err = flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return f, nil
}

// writeFLACTags rewrites the VORBIS_COMMENT block of a FLAC file in place,
// carrying over unmanaged comment keys and all non-comment metadata blocks.
func writeFLACTags(path string, t *Tag) error {
	f, err := parseFLACFile(path)
	if err != nil {
		return err
	}

	existing, cmtIdx, err := extractVorbisComments(f)
	if err != nil {
		return fmt.Errorf("parse vorbis comments: %w", err)
	}

	cmts := flacvorbis.New()
	for _, c := range existing {
		key, _, ok := strings.Cut(c, "=")
		if ok && managedFields[strings.ToUpper(key)] {
			continue
		}
		cmts.Comments = append(cmts.Comments, c)
	}

	addField := func(key, value string) error {
		if value == "" {
			return nil
		}
		return cmts.Add(key, value)
	}
	if err := addField(flacvorbis.FIELD_TITLE, t.Title); err != nil {
		return fmt.Errorf("add title: %w", err)
	}
	if err := addField(flacvorbis.FIELD_ARTIST, t.Artist); err != nil {
		return fmt.Errorf("add artist: %w", err)
	}
	if err := addField(flacvorbis.FIELD_ALBUM, t.Album); err != nil {
		return fmt.Errorf("add album: %w", err)
	}
	if err := addField("ALBUMARTIST", t.AlbumArtist); err != nil {
		return fmt.Errorf("add album artist: %w", err)
	}
	if t.TrackNumber > 0 {
		if err := addField(flacvorbis.FIELD_TRACKNUMBER, strconv.Itoa(t.TrackNumber)); err != nil {
			return fmt.Errorf("add track number: %w", err)
		}
	}
	if t.Year > 0 {
		if err := addField(flacvorbis.FIELD_DATE, strconv.Itoa(t.Year)); err != nil {
			return fmt.Errorf("add date: %w", err)
		}
	}
	if err := addField("GENRE", t.Genre); err != nil {
		return fmt.Errorf("add genre: %w", err)
	}

	cmtBlock := cmts.Marshal()
	if cmtIdx >= 0 {
		f.Meta[cmtIdx] = &cmtBlock
	} else {
		f.Meta = append(f.Meta, &cmtBlock)
	}

	if len(t.CoverArt) > 0 {
		newMeta := make([]*flac.MetaDataBlock, 0, len(f.Meta))
		for _, meta := range f.Meta {
			if meta.Type != flac.Picture {
				newMeta = append(newMeta, meta)
			}
		}
		f.Meta = newMeta

		pic, err := flacpicture.NewFromImageData(
			flacpicture.PictureTypeFrontCover,
			"Front Cover",
			t.CoverArt,
			detectMimeType(t.CoverArt),
		)
		if err != nil {
			return fmt.Errorf("create picture: %w", err)
		}
		picBlock := pic.Marshal()
		f.Meta = append(f.Meta, &picBlock)
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	return nil
}

// extractVorbisComments returns the raw comments of the first VORBIS_COMMENT
// block and its index in f.Meta, or (-1) when the file has none.
func extractVorbisComments(f *flac.File) ([]string, int, error) {
	for i, meta := range f.Meta {
		if meta.Type != flac.VorbisComment {
			continue
		}
		cmt, err := flacvorbis.ParseFromMetaDataBlock(*meta)
		if err != nil {
			return nil, i, err
		}
		return cmt.Comments, i, nil
	}
	return nil, -1, nil
}
