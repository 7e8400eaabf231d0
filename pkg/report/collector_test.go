package report

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

// fakeRunner stands in for the zig child process. Instead of building,
// it runs fn with the environment the collector would hand to zig.
type fakeRunner struct {
	exitCode int
	fn       func(env []string) error
	gotEnv   []string
	gotArgs  []string
}

func (f *fakeRunner) Build(_ context.Context, p zigtool.BuildParams) (*zigtool.BuildResult, error) {
	f.gotEnv = p.Env
	f.gotArgs = p.ExtraArgs
	if f.fn != nil {
		if err := f.fn(p.Env); err != nil {
			return nil, err
		}
	}
	return &zigtool.BuildResult{ExitCode: f.exitCode}, nil
}

// portFromEnv extracts the listener port published to the child.
func portFromEnv(t *testing.T, env []string) string {
	t.Helper()
	for _, kv := range env {
		if v, ok := strings.CutPrefix(kv, PortEnv+"="); ok {
			return v
		}
	}
	t.Fatalf("env %v lacks %s", env, PortEnv)
	return ""
}

// dialAndSend connects to the collector's listener like the build
// runner would and writes the report JSON.
func dialAndSend(t *testing.T, env []string, r *Report) error {
	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", portFromEnv(t, env)))
	if err != nil {
		return err
	}
	defer conn.Close()
	return json.NewEncoder(conn).Encode(r)
}

func sample() *Report {
	return &Report{
		SystemLibraries:    []SystemLibrary{{Name: "z", UsedBy: []string{"exe"}}},
		SystemIntegrations: []string{"wayland"},
		UserOptions: []UserOption{
			{Name: "strip", Description: "strip binary", Type: "bool"},
		},
	}
}

func TestCollect(t *testing.T) {
	runner := &fakeRunner{}
	runner.fn = func(env []string) error { return dialAndSend(t, env, sample()) }

	c := &Collector{Runner: runner}
	got, err := c.Collect(context.Background(), Params{
		ZigVersion: "0.14.1",
		ProjectDir: t.TempDir(),
		ExtraArgs:  []string{"-Dfoo"},
	})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(got.SystemLibraries) != 1 || got.SystemLibraries[0].Name != "z" {
		t.Errorf("SystemLibraries = %+v", got.SystemLibraries)
	}
	if len(got.UserOptions) != 1 || got.UserOptions[0].Name != "strip" {
		t.Errorf("UserOptions = %+v", got.UserOptions)
	}
	if len(runner.gotArgs) != 1 || runner.gotArgs[0] != "-Dfoo" {
		t.Errorf("extra args = %v", runner.gotArgs)
	}
}

func TestCollectSurvivesFailedBuild(t *testing.T) {
	// The runner reports before the build falls over; a non-zero exit
	// must not discard the report.
	runner := &fakeRunner{exitCode: 2}
	runner.fn = func(env []string) error { return dialAndSend(t, env, sample()) }

	c := &Collector{Runner: runner}
	got, err := c.Collect(context.Background(), Params{ZigVersion: "0.14.0", ProjectDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if got == nil {
		t.Fatal("Collect() = nil report")
	}
}

func TestCollectTimeout(t *testing.T) {
	runner := &fakeRunner{} // never connects
	c := &Collector{Runner: runner, Timeout: 100 * time.Millisecond}

	start := time.Now()
	_, err := c.Collect(context.Background(), Params{ZigVersion: "0.14.0", ProjectDir: t.TempDir()})
	if !errors.Is(err, errors.ErrCodeReportTimeout) {
		t.Fatalf("Collect() error = %v, want REPORT_TIMEOUT", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond || elapsed > 2*time.Second {
		t.Errorf("timeout fired after %v", elapsed)
	}
}

func TestCollectUnsupportedVersion(t *testing.T) {
	c := &Collector{Runner: &fakeRunner{}}
	_, err := c.Collect(context.Background(), Params{ZigVersion: "0.4.0", ProjectDir: t.TempDir()})
	if !errors.Is(err, errors.ErrCodeBuildRunnerNotFound) {
		t.Errorf("Collect() error = %v, want BUILD_RUNNER_NOT_FOUND", err)
	}
}

func TestCollectOversizedReportFails(t *testing.T) {
	runner := &fakeRunner{}
	runner.fn = func(env []string) error {
		conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", portFromEnv(t, env)))
		if err != nil {
			return err
		}
		defer conn.Close()
		_, err = conn.Write(make([]byte, 4096))
		return err
	}
	c := &Collector{Runner: runner, MaxSize: 1024}
	if _, err := c.Collect(context.Background(), Params{ZigVersion: "0.14.0", ProjectDir: t.TempDir()}); err == nil {
		t.Fatal("Collect() error = nil, want decode failure for truncated oversized report")
	}
}

func TestRunnerFor(t *testing.T) {
	for _, v := range []string{"0.13.0", "0.14.1", "0.15.0-dev.123+abcdef"} {
		src, err := RunnerFor(v)
		if err != nil {
			t.Errorf("RunnerFor(%s) error = %v", v, err)
			continue
		}
		if !strings.Contains(string(src), PortEnv) {
			t.Errorf("RunnerFor(%s): script does not reference %s", v, PortEnv)
		}
	}

	if _, err := RunnerFor("0.11.0"); !errors.Is(err, errors.ErrCodeBuildRunnerNotFound) {
		t.Errorf("RunnerFor(0.11.0) error = %v, want BUILD_RUNNER_NOT_FOUND", err)
	}
	if _, err := RunnerFor("not-a-version"); !errors.Is(err, errors.ErrCodeBuildRunnerNotFound) {
		t.Errorf("RunnerFor(garbage) error = %v, want BUILD_RUNNER_NOT_FOUND", err)
	}
}

func TestWriteRunner(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteRunner(dir, "0.14.0")
	if err != nil {
		t.Fatalf("WriteRunner() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "pub fn main") {
		t.Error("written runner does not look like a zig program")
	}
}
