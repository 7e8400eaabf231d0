package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBootstrap(t *testing.T) {
	root := filepath.Join(t.TempDir(), "zonrecipe")
	d, err := Bootstrap(root)
	if err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	for _, dir := range []string{d.Store, d.Tmp, d.Meta} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}

	// Bootstrap is idempotent.
	if _, err := Bootstrap(root); err != nil {
		t.Errorf("second Bootstrap() error = %v", err)
	}
}

func TestCleanAndSize(t *testing.T) {
	d, err := Bootstrap(filepath.Join(t.TempDir(), "zonrecipe"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d.Store, "blob"), []byte("abcdefgh"), 0o644); err != nil {
		t.Fatal(err)
	}

	size, err := d.Size()
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if size != 8 {
		t.Errorf("Size() = %d, want 8", size)
	}

	if err := d.Clean(); err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if _, err := os.Stat(d.Root); !os.IsNotExist(err) {
		t.Error("Clean() left the cache root behind")
	}

	// Size on a cleaned cache is zero, not an error.
	if size, err := d.Size(); err != nil || size != 0 {
		t.Errorf("Size() after Clean = %d, %v", size, err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Errorf("Get(missing) = hit=%v err=%v", hit, err)
	}

	if err := c.Set(ctx, "version", []byte("0.14.0"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	data, hit, err := c.Get(ctx, "version")
	if err != nil || !hit {
		t.Fatalf("Get() = hit=%v err=%v", hit, err)
	}
	if string(data) != "0.14.0" {
		t.Errorf("Get() = %q", data)
	}

	if err := c.Delete(ctx, "version"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, hit, _ := c.Get(ctx, "version"); hit {
		t.Error("Get() hit after Delete")
	}
	if err := c.Delete(ctx, "version"); err != nil {
		t.Errorf("Delete() of absent key error = %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := c.Set(ctx, "ttl", []byte("x"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "ttl"); hit {
		t.Error("expired entry still hit")
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if _, hit, err := c.Get(ctx, "key"); err != nil || hit {
		t.Errorf("Get() = hit=%v err=%v, want miss", hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
}

func TestVersionKey(t *testing.T) {
	now := time.Now()
	k1 := VersionKey("/usr/bin/zig", now)
	k2 := VersionKey("/usr/bin/zig", now)
	if k1 != k2 {
		t.Error("VersionKey not deterministic")
	}
	if k1 == VersionKey("/opt/zig/zig", now) {
		t.Error("different paths share a key")
	}
	if k1 == VersionKey("/usr/bin/zig", now.Add(time.Second)) {
		t.Error("different mtimes share a key")
	}
}
