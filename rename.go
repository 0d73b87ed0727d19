package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tagfetch/internal/scanner"
	"tagfetch/internal/shared"
)

// renameFromTags renames one file to "Artist - Title.ext" based on its tag.
// Returns the new base name, or "" when the file already has that name.
// Files without both artist and title, and name collisions, are skipped
// with an error.
func renameFromTags(f *scanner.AudioFile) (string, error) {
	if f.Tag == nil || f.Tag.Artist == "" || f.Tag.Title == "" {
		return "", fmt.Errorf("missing artist or title tag")
	}

	ext := strings.ToLower(filepath.Ext(f.Path))
	newBase := shared.SanitizeFileName(f.Tag.Artist+" - "+f.Tag.Title) + ext
	if newBase == f.Filename() {
		return "", nil
	}

	newPath := filepath.Join(filepath.Dir(f.Path), newBase)
	if shared.FileExists(newPath) {
		return "", fmt.Errorf("target %s already exists", newBase)
	}
	if err := os.Rename(f.Path, newPath); err != nil {
		return "", err
	}
	f.Path = newPath
	return newBase, nil
}

// runRename renames every taggable file under root to "Artist - Title".
func runRename(root string) error {
	files, err := scanner.Collect(root)
	if err != nil {
		return err
	}

	renamed, skipped := 0, 0
	for _, f := range files {
		newBase, err := renameFromTags(f)
		switch {
		case err != nil:
			skipped++
			shared.ColorWarning.Printf("⚠️ Skipping %s: %v\n", f.Filename(), err)
		case newBase == "":
			// Already named correctly.
		default:
			renamed++
			shared.ColorSuccess.Printf("✅ %s\n", newBase)
		}
	}

	shared.ColorInfo.Printf("📊 %d renamed, %d skipped\n", renamed, skipped)
	return nil
}
