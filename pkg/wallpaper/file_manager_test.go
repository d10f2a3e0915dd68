package wallpaper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dixieflatline76/Easel/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileManager(t *testing.T) (*FileManager, string, string) {
	t.Helper()
	root := t.TempDir()
	imageDir := filepath.Join(root, "artworks")
	metaDir := filepath.Join(root, "metadata")
	fm := NewFileManager(imageDir, metaDir)
	require.NoError(t, fm.EnsureDirs())
	return fm, imageDir, metaDir
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestFileManager_ResolvePaths(t *testing.T) {
	fm, imageDir, metaDir := newTestFileManager(t)

	img, err := fm.ImagePath("MetMuseum_1", ".jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(imageDir, "MetMuseum_1.jpg"), img)

	meta, err := fm.MetadataPath("MetMuseum_1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(metaDir, "MetMuseum_1.json"), meta)
	assert.Equal(t, imageDir, fm.ImageDir())
}

func TestFileManager_RejectsTraversal(t *testing.T) {
	fm, _, _ := newTestFileManager(t)

	tests := []struct {
		name string
		key  string
		ext  string
	}{
		{"Parent Dir", "../evil", ".jpg"},
		{"Backslash", `a\b`, ".jpg"},
		{"Slash", "a/b", ".jpg"},
		{"Empty", "", ".jpg"},
		{"Extension Escape", "ok", "/../x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fm.ImagePath(tt.key, tt.ext)
			assert.Error(t, err)
		})
	}

	_, err := fm.MetadataPath("../../settings")
	assert.Error(t, err)
	_, ok := fm.FindImage("../MetMuseum_1")
	assert.False(t, ok)
	_, err = fm.ReadMetadata("..")
	assert.Error(t, err)
}

func TestFileManager_FindImage(t *testing.T) {
	fm, imageDir, _ := newTestFileManager(t)
	touch(t, filepath.Join(imageDir, "Unsplash_abc.png"))
	touch(t, filepath.Join(imageDir, "MetMuseum_2.jpg.tmp"))

	path, ok := fm.FindImage("Unsplash_abc")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(imageDir, "Unsplash_abc.png"), path)

	_, ok = fm.FindImage("MetMuseum_2")
	assert.False(t, ok, "temp files are not images")
	_, ok = fm.FindImage("MetMuseum_3")
	assert.False(t, ok)
}

func TestFileManager_MetadataRoundTrip(t *testing.T) {
	fm, _, metaDir := newTestFileManager(t)
	meta := provider.Metadata{ID: "436535", Source: "MetMuseum", Title: "Wheat Field with Cypresses", FetchedAt: 1700000000}

	require.NoError(t, fm.WriteMetadata(meta))
	assert.FileExists(t, filepath.Join(metaDir, "MetMuseum_436535.json"))

	got, err := fm.ReadMetadata("MetMuseum_436535")
	require.NoError(t, err)
	assert.Equal(t, meta, got)

	_, err = fm.ReadMetadata("MetMuseum_404")
	assert.Error(t, err)
}

func TestFileManager_ListingSkipsPartialFiles(t *testing.T) {
	fm, imageDir, metaDir := newTestFileManager(t)
	touch(t, filepath.Join(imageDir, "MetMuseum_1.jpg"))
	touch(t, filepath.Join(imageDir, "MetMuseum_2.jpg.tmp"))
	touch(t, filepath.Join(imageDir, "MetMuseum_3-0b6c.download"))
	touch(t, filepath.Join(imageDir, "notes.txt"))
	require.NoError(t, os.Mkdir(filepath.Join(imageDir, "nested.jpg"), 0755))

	touch(t, filepath.Join(metaDir, "MetMuseum_1.json"))
	touch(t, filepath.Join(metaDir, "MetMuseum_4.json.tmp"))

	images, err := fm.ImageKeys()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MetMuseum_1": filepath.Join(imageDir, "MetMuseum_1.jpg")}, images)

	metas, err := fm.MetadataKeys()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MetMuseum_1": filepath.Join(metaDir, "MetMuseum_1.json")}, metas)
}

func TestFileManager_ListingMissingDirs(t *testing.T) {
	root := t.TempDir()
	fm := NewFileManager(filepath.Join(root, "a"), filepath.Join(root, "b"))

	images, err := fm.ImageKeys()
	require.NoError(t, err)
	assert.Empty(t, images)
	metas, err := fm.MetadataKeys()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestFileManager_DeepDelete(t *testing.T) {
	fm, imageDir, metaDir := newTestFileManager(t)
	img := filepath.Join(imageDir, "MetMuseum_1.jpg")
	meta := filepath.Join(metaDir, "MetMuseum_1.json")
	other := filepath.Join(imageDir, "MetMuseum_10.jpg")
	touch(t, img)
	touch(t, meta)
	touch(t, other)

	require.NoError(t, fm.DeepDelete("MetMuseum_1"))
	assert.NoFileExists(t, img)
	assert.NoFileExists(t, meta)
	assert.FileExists(t, other)

	// Already gone.
	assert.NoError(t, fm.DeepDelete("MetMuseum_1"))
}

func TestFileManager_SharedDirectory(t *testing.T) {
	dir := t.TempDir()
	fm := NewFileManager(dir, dir)
	touch(t, filepath.Join(dir, "Unsplash_x.jpg"))
	touch(t, filepath.Join(dir, "Unsplash_x.json"))

	images, err := fm.ImageKeys()
	require.NoError(t, err)
	assert.Len(t, images, 1)
	metas, err := fm.MetadataKeys()
	require.NoError(t, err)
	assert.Len(t, metas, 1)
}
