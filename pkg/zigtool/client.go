// Package zigtool wraps the zig executable behind three subprocess
// operations: version probing, dependency fetching into the global
// content-addressed store, and running a build with a substituted build
// runner. The client holds no state; every call is one blocking child
// process invocation.
package zigtool

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

// Client invokes a zig executable.
type Client struct {
	exe string
}

// New creates a client for the given executable. An empty exe defaults
// to "zig" resolved from PATH.
func New(exe string) *Client {
	if exe == "" {
		exe = "zig"
	}
	return &Client{exe: exe}
}

// Exe returns the configured executable path.
func (c *Client) Exe() string { return c.exe }

// Version runs `zig version` and returns the trimmed version string.
// Any stderr output is a hard failure: a healthy zig prints the version
// on stdout and nothing else.
func (c *Client) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := c.run(ctx, "", nil, "version")
	if err != nil {
		return "", err
	}
	if stderr != "" {
		return "", errors.New(errors.ErrCodeInternal,
			"%s version wrote to stderr: %s", c.exe, firstLine(stderr))
	}
	return strings.TrimSpace(stdout), nil
}

// Fetch runs `zig fetch` for ref (a URL or a local path), placing the
// content into the global store at storeDir, and returns the content
// hash printed by the tool. Non-empty stderr means the fetch failed.
func (c *Client) Fetch(ctx context.Context, storeDir, ref string) (string, error) {
	stdout, stderr, err := c.run(ctx, "", nil,
		"fetch", "--global-cache-dir", storeDir, ref)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFetchFailed, err, "fetch %s", ref)
	}
	if stderr != "" {
		return "", errors.New(errors.ErrCodeFetchFailed,
			"fetch %s: %s", ref, firstLine(stderr))
	}
	hash := strings.TrimSpace(stdout)
	if hash == "" {
		return "", errors.New(errors.ErrCodeFetchFailed,
			"fetch %s: tool printed no content hash", ref)
	}
	return hash, nil
}

// BuildParams configures one instrumented build invocation.
type BuildParams struct {
	Dir         string   // project directory containing build.zig
	BuildRunner string   // path to the substituted build runner script
	SystemDir   string   // system packages directory passed via --system
	Env         []string // extra KEY=VALUE entries appended to the environment
	ExtraArgs   []string // user-supplied arguments forwarded verbatim
}

// BuildResult captures the combined outcome of a build invocation.
type BuildResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Build runs `zig build` with the instrumentation runner substituted for
// the tool's normal build orchestration. A non-zero exit status is not
// an error here: the result carries the exit code and both streams, and
// the caller decides whether a failed build still produced a usable
// report.
func (c *Client) Build(ctx context.Context, p BuildParams) (*BuildResult, error) {
	args := []string{"build", "--build-runner", p.BuildRunner}
	if p.SystemDir != "" {
		args = append(args, "--system", p.SystemDir)
	}
	args = append(args, p.ExtraArgs...)

	cmd := exec.CommandContext(ctx, c.exe, args...)
	cmd.Dir = p.Dir
	cmd.Env = append(os.Environ(), p.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &BuildResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return nil, c.execError(err)
	}
	return res, nil
}

// StorePath returns the directory holding the fetched content for hash
// inside the global store rooted at storeDir.
func StorePath(storeDir, hash string) string {
	return filepath.Join(storeDir, "p", hash)
}

func (c *Client) run(ctx context.Context, dir string, env []string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.exe, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			msg := firstLine(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return stdout.String(), stderr.String(),
				errors.New(errors.ErrCodeInternal, "%s %s: %s", c.exe, args[0], msg)
		}
		return "", "", c.execError(err)
	}
	return stdout.String(), stderr.String(), nil
}

func (c *Client) execError(err error) error {
	if stderrors.Is(err, exec.ErrNotFound) {
		return errors.Wrap(errors.ErrCodeToolNotFound, err, "executable %s", c.exe)
	}
	return errors.Wrap(errors.ErrCodeInternal, err, "run %s", c.exe)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
