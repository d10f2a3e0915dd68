package wallpaper

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/dixieflatline76/Easel/util/fsutil"
	"github.com/dixieflatline76/Easel/util/log"
)

// FileManager handles the file system layout of an image directory and its
// metadata sidecars. The two directories may be the same (fetch cache) or
// separate (durable store).
type FileManager struct {
	imageDir string
	metaDir  string
}

// NewFileManager creates a FileManager. Pass the same directory twice for a
// side-by-side layout.
func NewFileManager(imageDir, metaDir string) *FileManager {
	return &FileManager{imageDir: imageDir, metaDir: metaDir}
}

// ImageDir returns the image directory.
func (fm *FileManager) ImageDir() string {
	return fm.imageDir
}

// EnsureDirs creates the directories.
func (fm *FileManager) EnsureDirs() error {
	for _, dir := range []string{fm.imageDir, fm.metaDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// validateID ensures the key does not contain path traversal characters.
func (fm *FileManager) validateID(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("invalid id %q: contains illegal characters", key)
	}
	return nil
}

// ImagePath returns the image path for key with the given extension.
func (fm *FileManager) ImagePath(key, ext string) (string, error) {
	if err := fm.validateID(key); err != nil {
		return "", err
	}
	if strings.Contains(ext, "..") || strings.ContainsAny(ext, `/\`) {
		return "", fmt.Errorf("invalid extension %q", ext)
	}
	return filepath.Join(fm.imageDir, key+ext), nil
}

// MetadataPath returns the sidecar path for key.
func (fm *FileManager) MetadataPath(key string) (string, error) {
	if err := fm.validateID(key); err != nil {
		return "", err
	}
	return filepath.Join(fm.metaDir, key+MetadataExt), nil
}

// FindImage returns the image file for key whatever its extension.
func (fm *FileManager) FindImage(key string) (string, bool) {
	if fm.validateID(key) != nil {
		return "", false
	}
	matches, _ := filepath.Glob(filepath.Join(fm.imageDir, key+".*"))
	for _, m := range matches {
		if fm.isImageFile(filepath.Base(m)) {
			return m, true
		}
	}
	return "", false
}

// WriteMetadata persists the sidecar for meta atomically.
func (fm *FileManager) WriteMetadata(meta provider.Metadata) error {
	path, err := fm.MetadataPath(meta.Key())
	if err != nil {
		return err
	}
	return fsutil.WriteJSON(path, meta)
}

// ReadMetadata loads the sidecar for key.
func (fm *FileManager) ReadMetadata(key string) (provider.Metadata, error) {
	var meta provider.Metadata
	path, err := fm.MetadataPath(key)
	if err != nil {
		return meta, err
	}
	err = fsutil.ReadJSON(path, &meta)
	return meta, err
}

// ImageKeys returns key -> image path for every image file.
func (fm *FileManager) ImageKeys() (map[string]string, error) {
	entries, err := os.ReadDir(fm.imageDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || !fm.isImageFile(e.Name()) {
			continue
		}
		key := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		out[key] = filepath.Join(fm.imageDir, e.Name())
	}
	return out, nil
}

// MetadataKeys returns key -> sidecar path for every sidecar.
func (fm *FileManager) MetadataKeys() (map[string]string, error) {
	entries, err := os.ReadDir(fm.metaDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != MetadataExt {
			continue
		}
		out[strings.TrimSuffix(e.Name(), MetadataExt)] = filepath.Join(fm.metaDir, e.Name())
	}
	return out, nil
}

// DeepDelete removes the image and the sidecar of key. Missing files are ignored.
func (fm *FileManager) DeepDelete(key string) error {
	var errs []error
	if path, ok := fm.FindImage(key); ok {
		errs = append(errs, removeIfExists(path))
	}
	if path, err := fm.MetadataPath(key); err == nil {
		errs = append(errs, removeIfExists(path))
	}
	return errors.Join(errs...)
}

// isImageFile reports whether name is a finished image (not a sidecar, temp file
// or partial download).
func (fm *FileManager) isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif", ".tif", ".tiff":
		return true
	}
	return false
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	log.Printf("FileManager: Failed to delete %s: %v", path, err)
	return err
}
