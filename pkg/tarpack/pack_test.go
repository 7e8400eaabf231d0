package tarpack

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zonrecipe/zonrecipe/pkg/resolver"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

func writePkg(t *testing.T, storeDir, hash string, files map[string]string) {
	t.Helper()
	dir := zigtool.StorePath(storeDir, hash)
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		// Perturb mtimes so determinism cannot come from the filesystem.
		_ = os.Chtimes(path, time.Now(), time.Now().Add(-time.Hour))
	}
}

func entries() []resolver.GitCommitEntry {
	return []resolver.GitCommitEntry{
		{Name: "alpha-h1.tar.gz", Hash: "h1"},
		{Name: "beta-h2.tar.gz", Hash: "h2"},
	}
}

func populate(t *testing.T, storeDir string) {
	writePkg(t, storeDir, "h1", map[string]string{
		"build.zig":    "// build script",
		"src/main.zig": "pub fn main() void {}",
	})
	writePkg(t, storeDir, "h2", map[string]string{
		"README.md": "# beta",
	})
}

func TestPackDeterministic(t *testing.T) {
	storeDir := t.TempDir()
	populate(t, storeDir)

	var first, second bytes.Buffer
	sum1, err := Pack(entries(), storeDir, &first)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	time.Sleep(10 * time.Millisecond) // wall clock must not leak into output
	sum2, err := Pack(entries(), storeDir, &second)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	if sum1 != sum2 {
		t.Errorf("checksums differ: %08x vs %08x", sum1, sum2)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Error("archive bytes differ between identical runs")
	}
}

func TestPackMembers(t *testing.T) {
	storeDir := t.TempDir()
	populate(t, storeDir)

	var buf bytes.Buffer
	if _, err := Pack(entries(), storeDir, &buf); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}

	gz, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("outer gzip: %v", err)
	}
	tr := tar.NewReader(gz)

	var names []string
	inner := make(map[string][]string)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("outer tar: %v", err)
		}
		names = append(names, hdr.Name)
		if !hdr.ModTime.Equal(Epoch) {
			t.Errorf("member %s mtime = %v, want epoch", hdr.Name, hdr.ModTime)
		}
		inner[hdr.Name] = readInner(t, tr)
	}

	if len(names) != 2 || names[0] != "alpha-h1.tar.gz" || names[1] != "beta-h2.tar.gz" {
		t.Fatalf("members = %v", names)
	}
	alpha := inner["alpha-h1.tar.gz"]
	if len(alpha) != 3 { // src/ dir entry plus two files
		t.Errorf("alpha members = %v", alpha)
	}
}

func readInner(t *testing.T, r io.Reader) []string {
	t.Helper()
	gz, err := gzip.NewReader(r)
	if err != nil {
		t.Fatalf("inner gzip: %v", err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names
		}
		if err != nil {
			t.Fatalf("inner tar: %v", err)
		}
		names = append(names, hdr.Name)
	}
}

func TestPackEmptyEntries(t *testing.T) {
	var buf bytes.Buffer
	sum, err := Pack(nil, t.TempDir(), &buf)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty pack wrote no bytes, want valid empty archive")
	}
	if sum == 0 {
		t.Error("checksum = 0, want CRC of the empty archive")
	}
}

func TestPackMissingContentFails(t *testing.T) {
	var buf bytes.Buffer
	_, err := Pack([]resolver.GitCommitEntry{{Name: "x-h.tar.gz", Hash: "h"}}, t.TempDir(), &buf)
	if err == nil {
		t.Fatal("Pack() error = nil, want error for missing store content")
	}
}

func TestFileName(t *testing.T) {
	got := FileName("proj", 0xdeadbeef)
	if got != "proj-deadbeef.tar.gz" {
		t.Errorf("FileName() = %q", got)
	}
	if got := FileName("proj", 0x1); got != "proj-00000001.tar.gz" {
		t.Errorf("FileName() = %q", got)
	}
}
