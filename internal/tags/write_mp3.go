package tags

import (
	"fmt"
	"strconv"

	"github.com/bogem/id3v2/v2"
)

// writeMP3Tags writes ID3v2 tags to an MP3 file in place. Only the frames
// the pipeline manages are replaced; every other parsed frame is carried
// over untouched.
func writeMP3Tags(path string, t *Tag) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	defer tag.Close()

	// ID3v2.4 with UTF-8 for full Unicode support
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)

	setTextFrame(tag, tag.CommonID("Title/Songname/Content description"), t.Title)
	setTextFrame(tag, tag.CommonID("Lead artist/Lead performer/Soloist/Performing group"), t.Artist)
	setTextFrame(tag, tag.CommonID("Album/Movie/Show title"), t.Album)
	setTextFrame(tag, tag.CommonID("Band/Orchestra/Accompaniment"), t.AlbumArtist)
	setTextFrame(tag, tag.CommonID("Content type"), t.Genre)

	if t.TrackNumber > 0 {
		setTextFrame(tag, tag.CommonID("Track number/Position in set"), strconv.Itoa(t.TrackNumber))
	}
	if t.Year > 0 {
		// TDRC is the ID3v2.4 recording date frame
		setTextFrame(tag, "TDRC", strconv.Itoa(t.Year))
	}

	if len(t.CoverArt) > 0 {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    detectMimeType(t.CoverArt),
			PictureType: id3v2.PTFrontCover,
			Description: "Front Cover",
			Picture:     t.CoverArt,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	return nil
}

// setTextFrame replaces a text frame, leaving it absent when value is empty
// and the frame was not already present.
func setTextFrame(tag *id3v2.Tag, frameID, value string) {
	if value == "" {
		return
	}
	tag.DeleteFrames(frameID)
	tag.AddTextFrame(frameID, id3v2.EncodingUTF8, value)
}
