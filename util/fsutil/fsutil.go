// Package fsutil holds the crash-safe file primitives shared by every persisted
// file in the application: temp+sync+rename writes and a single backup generation.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

// BackupExt is appended to a file name to form its backup.
const BackupExt = ".bak"

// WriteFileAtomic writes data to a temporary file in the target directory, syncs it and
// renames it over path. Readers observe either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpFile := file.Name()

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	if err = os.Chmod(tmpFile, perm); err != nil {
		os.Remove(tmpFile)
		return err
	}

	if err = os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}

// WriteJSON marshals v with indentation and writes it atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return WriteFileAtomic(path, data, 0644)
}

// ReadJSON reads path and unmarshals it into v.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%s is empty", filepath.Base(path))
	}
	return json.Unmarshal(data, v)
}

// WriteJSONWithBackup copies the current content of path to path+BackupExt (when
// present) and then writes v atomically.
func WriteJSONWithBackup(path string, v any) error {
	if err := CopyFile(path, path+BackupExt); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("backup %s: %w", filepath.Base(path), err)
	}
	return WriteJSON(path, v)
}

// ReadJSONWithBackup decodes path into a value built by newValue, falling back to
// path+BackupExt when the primary is missing or unreadable. Each attempt decodes
// into a fresh value so a half-decoded primary never leaks into the result.
//
// err is the primary's error. With usedBackup set, v holds the backup's content;
// otherwise a non-nil err means neither copy was readable and v is newValue().
func ReadJSONWithBackup[T any](path string, newValue func() T) (v T, usedBackup bool, err error) {
	v = newValue()
	if err = ReadJSON(path, &v); err == nil {
		return v, false, nil
	}
	backup := newValue()
	if ReadJSON(path+BackupExt, &backup) == nil {
		return backup, true, err
	}
	return newValue(), false, err
}

// CopyFile copies src to dst atomically.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	return WriteFileAtomic(dst, data, info.Mode().Perm())
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
