// Package report collects a structured build report from an
// instrumented zig build run.
//
// The collector substitutes zig's build orchestration with an embedded
// build-runner script that, instead of building, describes the build
// graph: system libraries, system integrations, and user-declared
// options. The script connects back over loopback TCP to a listener
// the collector opens before spawning the child, and writes the report
// as a single JSON message.
package report

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/semver"

	"github.com/zonrecipe/zonrecipe/pkg/errors"
)

// PortEnv is the environment variable naming the loopback port the
// build runner must connect to.
const PortEnv = "REPORT_LISTEN_PORT"

// Report is the structured description emitted by the build runner.
type Report struct {
	SystemLibraries    []SystemLibrary `json:"system_libraries"`
	SystemIntegrations []string        `json:"system_integrations"`
	UserOptions        []UserOption    `json:"user_options"`
}

// SystemLibrary is one system library the build links against, with the
// build steps that use it.
type SystemLibrary struct {
	Name   string   `json:"name"`
	UsedBy []string `json:"used_by"`
}

// UserOption is one user-declared build option.
type UserOption struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Values      []string `json:"values,omitempty"`
}

//go:embed runners/*.zig
var runnersFS embed.FS

// RunnerFor selects the embedded build-runner source matching the
// tool's version family (major.minor). A version family without a
// runner is fatal and non-retryable: it signals a zig release the tool
// does not support yet.
func RunnerFor(zigVersion string) ([]byte, error) {
	family := semver.MajorMinor("v" + zigVersion)
	if family == "" {
		return nil, errors.New(errors.ErrCodeBuildRunnerNotFound,
			"cannot parse zig version %q", zigVersion)
	}
	name := fmt.Sprintf("runners/report_%s.zig", family[1:])
	src, err := runnersFS.ReadFile(name)
	if err != nil {
		return nil, errors.New(errors.ErrCodeBuildRunnerNotFound,
			"no build runner for zig %s (version family %s)", zigVersion, family[1:])
	}
	return src, nil
}

// WriteRunner materializes the build-runner source for zigVersion into
// dir and returns the script path. The caller owns the file.
func WriteRunner(dir, zigVersion string) (string, error) {
	src, err := RunnerFor(zigVersion)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "report_runner.zig")
	if err := os.WriteFile(path, src, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "write build runner")
	}
	return path, nil
}
