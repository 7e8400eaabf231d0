// Package cache provides the on-disk layout shared by all commands and
// a small expiring key-value store for memoized tool queries.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

// TTLVersion bounds how long a memoized `zig version` answer is
// trusted. The key includes the executable's mtime, so the TTL only
// matters for in-place binary swaps that preserve timestamps.
const TTLVersion = 24 * time.Hour

// Cache stores byte values under string keys with optional expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Dirs is the per-user cache layout.
type Dirs struct {
	Root  string // <user-cache>/zonrecipe
	Store string // content-addressed package store, passed to the fetch tool
	Tmp   string // scratch space for tarball assembly
	Meta  string // key-value entries (memoized versions)
}

// Bootstrap resolves and creates the cache layout. An empty override
// uses the platform user cache directory.
func Bootstrap(override string) (*Dirs, error) {
	root := override
	if root == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "locate user cache directory")
		}
		root = filepath.Join(base, "zonrecipe")
	}

	d := &Dirs{
		Root:  root,
		Store: filepath.Join(root, "store"),
		Tmp:   filepath.Join(root, "tmp"),
		Meta:  filepath.Join(root, "meta"),
	}
	for _, dir := range []string{d.Store, d.Tmp, d.Meta} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "create cache directory %s", dir)
		}
	}
	return d, nil
}

// Clean removes everything under the cache root. Bootstrap recreates
// the layout on the next run.
func (d *Dirs) Clean() error {
	if err := os.RemoveAll(d.Root); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "clean cache %s", d.Root)
	}
	return nil
}

// Size walks the cache root and sums file sizes.
func (d *Dirs) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(d.Root, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.Type().IsRegular() {
			info, err := entry.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "measure cache %s", d.Root)
	}
	return total, nil
}

// VersionKey identifies one zig executable for version memoization.
// The mtime makes an upgraded binary at the same path a different key.
func VersionKey(exePath string, mtime time.Time) string {
	return "zig-version:" + hashHex(fmt.Sprintf("%s\x00%d", exePath, mtime.UnixNano()))
}

// hashHex is the full SHA-256 of s in hex.
func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
