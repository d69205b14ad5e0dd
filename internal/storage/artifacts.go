package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

// ArtifactChecker reports whether a stored artifact still exists.
type ArtifactChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// FSChecker checks artifacts on the local filesystem.
type FSChecker struct{}

func (FSChecker) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir(), nil
}
