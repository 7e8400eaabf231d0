// Package cli implements the zonrecipe command-line interface.
//
// The main commands are:
//   - generate: resolve dependencies, run the instrumented build, and
//     render a packaging recipe
//   - graph: export the resolved dependency graph as DOT or SVG
//   - cache: inspect and clean the per-user cache
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/zonrecipe/zonrecipe/pkg/buildinfo"
	"github.com/zonrecipe/zonrecipe/pkg/cache"
)

// appName is the application name used for directories and display.
const appName = "zonrecipe"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	cacheDir string
	noCache  bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "zonrecipe generates distribution packaging recipes for zig projects",
		Long:         `zonrecipe resolves a project's build.zig.zon dependency graph, runs an instrumented build to discover system libraries and user options, and renders a packaging recipe ready for review.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.cacheDir, "cache-dir", "", "override the cache directory")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "disable memoized tool queries")

	var noColor bool
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if noColor || os.Getenv("NO_COLOR") != "" {
			lipgloss.SetColorProfile(termenv.Ascii)
			c.Logger.SetColorProfile(termenv.Ascii)
		}
		return nil
	}

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// openDirs bootstraps the on-disk cache layout.
func (c *CLI) openDirs() (*cache.Dirs, error) {
	return cache.Bootstrap(c.cacheDir)
}

// metaCache returns the key-value store for memoized tool queries, or
// a null cache when disabled.
func (c *CLI) metaCache(dirs *cache.Dirs) cache.Cache {
	if c.noCache {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dirs.Meta)
	if err != nil {
		c.Logger.Debug("meta cache unavailable", "err", err)
		return cache.NewNullCache()
	}
	return fc
}
