package main

import (
	"fmt"
	"os"

	"tagfetch/internal/shared"
	"tagfetch/internal/tags"
)

// runEdit merges the flag-provided fields into one file's existing tag.
// Flags that were not given leave their fields untouched.
func runEdit(path string) error {
	changed := editTitle != "" || editArtist != "" || editAlbum != "" ||
		editAlbumArtist != "" || editTrack != 0 || editYear != 0 ||
		editGenre != "" || editAlbumArt != ""
	if !changed {
		shared.ColorWarning.Println("⚠️ Nothing to change; pass at least one field flag.")
		return nil
	}

	existing, err := tags.Read(path)
	if err != nil {
		return err
	}

	update := &tags.Tag{
		Title:       editTitle,
		Artist:      editArtist,
		Album:       editAlbum,
		AlbumArtist: editAlbumArtist,
		TrackNumber: editTrack,
		Year:        editYear,
		Genre:       editGenre,
	}
	if editAlbumArt != "" {
		art, err := os.ReadFile(editAlbumArt)
		if err != nil {
			return fmt.Errorf("reading album art: %w", err)
		}
		update.CoverArt = art
	}

	merged := tags.Merge(existing, update)
	if err := tags.Write(path, merged); err != nil {
		return err
	}
	shared.ColorSuccess.Printf("✅ Updated %s: %s\n", path, merged.Summary())
	return nil
}
