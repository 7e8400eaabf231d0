package report

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

const (
	// DefaultTimeout bounds the wait for the report after the child
	// process has exited.
	DefaultTimeout = 5 * time.Second
	// MaxReportSize caps the report message read from the socket.
	MaxReportSize = 1 << 20
)

// BuildRunner runs one instrumented build. *zigtool.Client implements it.
type BuildRunner interface {
	Build(ctx context.Context, p zigtool.BuildParams) (*zigtool.BuildResult, error)
}

// Collector runs the report-collection protocol.
type Collector struct {
	Runner  BuildRunner
	Logger  *log.Logger
	Timeout time.Duration // defaults to DefaultTimeout
	MaxSize int64         // defaults to MaxReportSize
}

// Params configures one collection run.
type Params struct {
	ZigVersion string   // selects the instrumentation script
	ProjectDir string   // directory containing build.zig
	SystemDir  string   // forwarded to the build via --system
	ExtraArgs  []string // user-supplied build arguments
}

// Collect spawns the build tool with the instrumentation script
// substituted in and waits for exactly one report to arrive over a
// loopback listener opened before the spawn.
//
// A failing build is only a warning: the runner may have emitted a
// usable report before a later step failed. A report that never
// arrives within the timeout after child exit is fatal.
func (c *Collector) Collect(ctx context.Context, p Params) (*Report, error) {
	logger := c.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxSize := c.MaxSize
	if maxSize <= 0 {
		maxSize = MaxReportSize
	}
	runID := uuid.NewString()[:8]

	runnerDir, err := os.MkdirTemp("", "zonrecipe-runner-")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "create runner dir")
	}
	defer os.RemoveAll(runnerDir)

	runnerPath, err := WriteRunner(runnerDir, p.ZigVersion)
	if err != nil {
		return nil, err
	}

	// The listener must exist before the child starts, or the runner
	// could try to connect to a port nobody owns yet.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open report listener")
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port
	logger.Debug("report listener open", "run", runID, "port", port)

	done := make(chan receiveResult, 1)
	go receive(ln, maxSize, done)

	res, err := c.Runner.Build(ctx, zigtool.BuildParams{
		Dir:         p.ProjectDir,
		BuildRunner: runnerPath,
		SystemDir:   p.SystemDir,
		Env:         []string{PortEnv + "=" + strconv.Itoa(port)},
		ExtraArgs:   p.ExtraArgs,
	})
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		// The runner may already have sent its report before the build
		// fell over, so this is not fatal.
		logger.Warn("instrumented build exited abnormally",
			"run", runID, "exit", res.ExitCode)
		logger.Debug("build stderr", "run", runID, "stderr", res.Stderr)
	}

	// Timeout counts from child exit, not from spawn.
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		logger.Debug("report received", "run", runID,
			"options", len(r.report.UserOptions), "libraries", len(r.report.SystemLibraries))
		return r.report, nil
	case <-timer.C:
		// Closing the listener unblocks the accept; the receiver
		// goroutine exits instead of lingering until process teardown.
		ln.Close()
		return nil, errors.New(errors.ErrCodeReportTimeout,
			"no report within %s of build exit", timeout)
	case <-ctx.Done():
		ln.Close()
		return nil, ctx.Err()
	}
}

type receiveResult struct {
	report *Report
	err    error
}

// receive accepts exactly one connection, reads the full message, and
// parses it as a Report. It stops accepting afterwards.
func receive(ln net.Listener, maxSize int64, done chan<- receiveResult) {
	conn, err := ln.Accept()
	if err != nil {
		done <- receiveResult{err: errors.Wrap(errors.ErrCodeInternal, err, "accept report connection")}
		return
	}
	defer conn.Close()

	data, err := io.ReadAll(io.LimitReader(conn, maxSize))
	if err != nil {
		done <- receiveResult{err: errors.Wrap(errors.ErrCodeInternal, err, "read report")}
		return
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		done <- receiveResult{err: errors.Wrap(errors.ErrCodeInternal, err, "decode report")}
		return
	}
	done <- receiveResult{report: &r}
}
