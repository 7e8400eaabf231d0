package zigtool

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

// fakeZig writes a shell script standing in for the zig executable and
// returns its path. The script's behavior is keyed on the subcommand.
func fakeZig(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake executable helper is POSIX-only")
	}
	path := filepath.Join(t.TempDir(), "zig")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	c := New(fakeZig(t, `echo "0.14.1"`))
	got, err := c.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if got != "0.14.1" {
		t.Errorf("Version() = %q, want 0.14.1", got)
	}
}

func TestVersionStderrIsFatal(t *testing.T) {
	c := New(fakeZig(t, `echo "0.14.1"; echo "warning: something" >&2`))
	if _, err := c.Version(context.Background()); err == nil {
		t.Fatal("Version() error = nil, want error on stderr output")
	}
}

func TestFetch(t *testing.T) {
	c := New(fakeZig(t, `
if [ "$1" != "fetch" ]; then exit 2; fi
echo "1220deadbeef"`))
	hash, err := c.Fetch(context.Background(), t.TempDir(), "https://example.com/a.tar.gz")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if hash != "1220deadbeef" {
		t.Errorf("Fetch() = %q, want 1220deadbeef", hash)
	}
}

func TestFetchStderrFails(t *testing.T) {
	c := New(fakeZig(t, `echo "1220deadbeef"; echo "error: unable to connect" >&2`))
	_, err := c.Fetch(context.Background(), t.TempDir(), "https://example.com/a.tar.gz")
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Errorf("Fetch() error = %v, want FETCH_FAILED", err)
	}
}

func TestFetchEmptyHashFails(t *testing.T) {
	c := New(fakeZig(t, `true`))
	_, err := c.Fetch(context.Background(), t.TempDir(), "https://example.com/a.tar.gz")
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Errorf("Fetch() error = %v, want FETCH_FAILED", err)
	}
}

func TestBuildNonZeroExitIsNotAnError(t *testing.T) {
	c := New(fakeZig(t, `
echo "collected"
echo "error: link failed" >&2
exit 7`))
	res, err := c.Build(context.Background(), BuildParams{
		Dir:         t.TempDir(),
		BuildRunner: "/tmp/runner.zig",
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("ExitCode = %d, want 7", res.ExitCode)
	}
	if res.Stdout == "" || res.Stderr == "" {
		t.Errorf("streams not captured: stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}

func TestBuildPassesEnvAndArgs(t *testing.T) {
	c := New(fakeZig(t, `echo "$REPORT_LISTEN_PORT $@"`))
	res, err := c.Build(context.Background(), BuildParams{
		Dir:         t.TempDir(),
		BuildRunner: "/tmp/runner.zig",
		SystemDir:   "/usr/lib/zig-packages",
		Env:         []string{"REPORT_LISTEN_PORT=45678"},
		ExtraArgs:   []string{"-Dfoo=bar"},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	want := "45678 build --build-runner /tmp/runner.zig --system /usr/lib/zig-packages -Dfoo=bar\n"
	if res.Stdout != want {
		t.Errorf("Stdout = %q, want %q", res.Stdout, want)
	}
}

func TestMissingExecutable(t *testing.T) {
	c := New("definitely-not-a-real-zig-binary")
	_, err := c.Version(context.Background())
	if !errors.Is(err, errors.ErrCodeToolNotFound) {
		t.Errorf("Version() error = %v, want TOOL_NOT_FOUND", err)
	}
}

func TestStorePath(t *testing.T) {
	got := StorePath("/cache", "1220ab")
	want := filepath.Join("/cache", "p", "1220ab")
	if got != want {
		t.Errorf("StorePath() = %q, want %q", got, want)
	}
}
