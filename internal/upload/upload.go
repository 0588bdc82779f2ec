// Package upload mirrors training output directories to a destination.
package upload

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/born-ml/kindle/internal/parallel"
)

// ErrFlatRecurse is returned when a recursive upload would discard the
// directory tree, which could make distinct files collide.
var ErrFlatRecurse = errors.New("recursive upload requires RetainTree")

// Uploader copies the files of a local directory somewhere else.
type Uploader interface {
	UploadDir(ctx context.Context, dir string) error
}

// DirUploader uploads into a destination directory tree, which may be a
// mounted bucket or network share.
type DirUploader struct {
	// Dest is the destination root.
	Dest string

	// Prefix is prepended to every destination key.
	Prefix string

	// RetainTree keeps the path of each file relative to the parent of the
	// uploaded directory. Otherwise only the base name is kept.
	RetainTree bool

	// Recurse includes files in subdirectories.
	Recurse bool

	// Keep filters files by path. Nil keeps everything.
	Keep func(path string) bool

	// Workers bounds concurrent copies (default: GOMAXPROCS).
	Workers int

	Logger logr.Logger
}

// NewDirUploader returns an uploader that retains the tree and recurses.
func NewDirUploader(dest, prefix string) *DirUploader {
	return &DirUploader{Dest: dest, Prefix: prefix, RetainTree: true, Recurse: true, Logger: logr.Discard()}
}

// UploadDir copies every regular, non-hidden file of dir.
func (u *DirUploader) UploadDir(ctx context.Context, dir string) error {
	if u.Recurse && !u.RetainTree {
		return ErrFlatRecurse
	}
	paths, err := u.collect(dir)
	if err != nil {
		return err
	}

	cfg := parallel.DefaultConfig()
	if u.Workers > 0 {
		cfg.NumWorkers = u.Workers
	}
	return parallel.ForEach(ctx, len(paths), func(_ context.Context, i int) error {
		dst := filepath.Join(u.Dest, u.Key(dir, paths[i]))
		u.Logger.V(1).Info("Uploading", "src", paths[i], "dst", dst)
		return copyFile(paths[i], dst)
	}, cfg)
}

// Key returns the destination key of path, a file inside dir.
func (u *DirUploader) Key(dir, path string) string {
	key := filepath.Base(path)
	if u.RetainTree {
		if rel, err := filepath.Rel(filepath.Dir(filepath.Clean(dir)), path); err == nil {
			key = rel
		}
	}
	return filepath.Join(u.Prefix, key)
}

func (u *DirUploader) collect(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (!u.Recurse || hidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || hidden(d.Name()) {
			return nil
		}
		if u.Keep != nil && !u.Keep(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", dir)
	}
	return paths, nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func copyFile(src, dst string) (err error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrap(err, "create destination")
	}
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrap(err, "create destination file")
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", dst)
		}
	}()
	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "copy %s", src)
	}
	return nil
}
