// Package scanner walks a file tree and yields audio files together with
// the completeness of their current tags.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tagfetch/internal/tags"
)

// Status classifies a file's current tag state.
type Status int

const (
	// StatusIncomplete means the tag is readable but missing artist,
	// title or album.
	StatusIncomplete Status = iota
	// StatusComplete means artist, title and album are all present.
	StatusComplete
	// StatusUnreadable means the tag container could not be read. The
	// file is still reported so the caller can account for it.
	StatusUnreadable
)

func (s Status) String() string {
	switch s {
	case StatusComplete:
		return "complete"
	case StatusIncomplete:
		return "incomplete"
	case StatusUnreadable:
		return "unreadable"
	}
	return "unknown"
}

// AudioFile is one discovered audio file with a snapshot of its current tag.
// Tag is nil when Status is StatusUnreadable.
type AudioFile struct {
	Path   string
	Tag    *tags.Tag
	Status Status
}

// Filename returns the base name of the file.
func (f *AudioFile) Filename() string {
	return filepath.Base(f.Path)
}

// Refresh re-reads the file's tag after a write and updates the snapshot.
func (f *AudioFile) Refresh() {
	*f = *load(f.Path)
}

// Scan walks root and calls fn for every recognized audio file, in lexical
// walk order. Files with other extensions are skipped silently; an
// unreadable tag is reported through the file's Status, not as an error.
// Each call re-walks the tree. fn returning an error stops the walk.
//
// A root that is a regular file is yielded on its own, but must itself be a
// recognized audio file.
func Scan(root string, fn func(*AudioFile) error) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("stat %s: %w", root, err)
	}

	if !info.IsDir() {
		if !tags.IsAudioFile(root) {
			return fmt.Errorf("not a supported audio file: %s", root)
		}
		return fn(load(root))
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries end the scan for that
			// subtree only when the root itself is gone.
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return err
			}
			return nil
		}
		if d.IsDir() || !tags.IsAudioFile(path) {
			return nil
		}
		return fn(load(path))
	})
}

// Collect walks root and returns all audio files at once.
func Collect(root string) ([]*AudioFile, error) {
	var files []*AudioFile
	err := Scan(root, func(f *AudioFile) error {
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func load(path string) *AudioFile {
	t, err := tags.Read(path)
	if err != nil {
		return &AudioFile{Path: path, Status: StatusUnreadable}
	}
	status := StatusIncomplete
	if t.Complete() {
		status = StatusComplete
	}
	return &AudioFile{Path: path, Tag: t, Status: status}
}
