package tags

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Write commits tag metadata to an audio file. The new frame set is written
// to a temporary copy in the same directory, flushed to disk, then renamed
// over the original: a crash or disk-full condition mid-write leaves the
// original bytes untouched.
func Write(path string, t *Tag) error {
	ext := strings.ToLower(filepath.Ext(path))
	var apply func(string, *Tag) error
	switch ext {
	case ExtMP3:
		apply = writeMP3Tags
	case ExtFLAC:
		apply = writeFLACTags
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	return atomicUpdate(path, func(tmp string) error {
		return apply(tmp, t)
	})
}

// atomicUpdate copies path to a temp file in the same directory, runs apply
// against the copy, syncs it and renames it over the original. On any
// failure the original is untouched and the temp file is removed.
func atomicUpdate(path string, apply func(tmpPath string) error) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	// The temp copy must not outlive a failure, apply panics included.
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	fail := func(stage string, err error) error {
		tmp.Close()
		return fmt.Errorf("%s: %w", stage, err)
	}

	src, err := os.Open(path)
	if err != nil {
		return fail("open file", err)
	}
	_, err = io.Copy(tmp, src)
	src.Close()
	if err != nil {
		return fail("copy to temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return fail("close temp file", err)
	}

	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := apply(tmpPath); err != nil {
		return err
	}

	if err := syncFile(tmpPath); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}

	// Commit point: rename is atomic on POSIX filesystems.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	committed = true
	return nil
}

func syncFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
