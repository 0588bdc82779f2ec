package upload_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/kindle/internal/upload"
)

func writeTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "run1")
	files := map[string]string{
		"trainer.kndl":      "weights",
		"history.csv":       "loss\n0.5\n",
		".hidden":           "skip",
		"plots/lrs.png":     "png",
		"plots/history.png": "png",
	}
	for name, body := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return root
}

func listFiles(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	require.NoError(t, filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		out = append(out, filepath.ToSlash(rel))
		return err
	}))
	slices.Sort(out)
	return out
}

func TestDirUploader_RetainTree(t *testing.T) {
	src := writeTree(t)
	dest := t.TempDir()

	u := upload.NewDirUploader(dest, "exp")
	require.NoError(t, u.UploadDir(context.Background(), src))

	assert.Equal(t, []string{
		"exp/run1/history.csv",
		"exp/run1/plots/history.png",
		"exp/run1/plots/lrs.png",
		"exp/run1/trainer.kndl",
	}, listFiles(t, dest))

	body, err := os.ReadFile(filepath.Join(dest, "exp", "run1", "history.csv"))
	require.NoError(t, err)
	assert.Equal(t, "loss\n0.5\n", string(body))
}

func TestDirUploader_FlatNoRecurse(t *testing.T) {
	src := writeTree(t)
	dest := t.TempDir()

	u := &upload.DirUploader{Dest: dest, Workers: 1}
	require.NoError(t, u.UploadDir(context.Background(), src))
	assert.Equal(t, []string{"history.csv", "trainer.kndl"}, listFiles(t, dest))
}

func TestDirUploader_Keep(t *testing.T) {
	src := writeTree(t)
	dest := t.TempDir()

	u := upload.NewDirUploader(dest, "")
	u.Keep = func(path string) bool { return !strings.HasSuffix(path, ".kndl") }
	require.NoError(t, u.UploadDir(context.Background(), src))
	assert.NotContains(t, listFiles(t, dest), "run1/trainer.kndl")
	assert.Contains(t, listFiles(t, dest), "run1/history.csv")
}

func TestDirUploader_FlatRecurse(t *testing.T) {
	u := &upload.DirUploader{Dest: t.TempDir(), Recurse: true}
	assert.ErrorIs(t, u.UploadDir(context.Background(), writeTree(t)), upload.ErrFlatRecurse)
}

func TestDirUploader_MissingDir(t *testing.T) {
	u := upload.NewDirUploader(t.TempDir(), "")
	assert.Error(t, u.UploadDir(context.Background(), filepath.Join(t.TempDir(), "nope")))
}
