package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/zonrecipe/zonrecipe/pkg/cache"
	"github.com/zonrecipe/zonrecipe/pkg/errors"
	"github.com/zonrecipe/zonrecipe/pkg/manifest"
	"github.com/zonrecipe/zonrecipe/pkg/recipe"
	"github.com/zonrecipe/zonrecipe/pkg/report"
	"github.com/zonrecipe/zonrecipe/pkg/resolver"
	"github.com/zonrecipe/zonrecipe/pkg/tarpack"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

// generateCommand creates the generate command, the main entry point:
// resolve, collect the build report, render the recipe.
func (c *CLI) generateCommand() *cobra.Command {
	var (
		zigExe    string
		fetchMode string
		systemDir string
		template  string
		output    string
		skipBuild bool
	)

	cmd := &cobra.Command{
		Use:   "generate [project-dir] [-- build-args...]",
		Short: "Generate a packaging recipe for a zig project",
		Long: `Generate resolves the project's build.zig.zon dependency graph,
runs an instrumented build to discover system libraries and user
options, and renders a packaging recipe.

Arguments after -- are passed to the instrumented build, e.g.:

  zonrecipe generate . -- -Dtracy=true`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			extraArgs := args
			if at := cmd.ArgsLenAtDash(); at >= 0 {
				extraArgs = args[at:]
				args = args[:at]
			} else {
				extraArgs = nil
			}
			if len(args) > 1 {
				return fmt.Errorf("at most one project directory, got %d", len(args))
			}
			if len(args) == 1 {
				projectDir = args[0]
			}

			mode, err := resolver.ParseFetchMode(fetchMode)
			if err != nil {
				return err
			}

			return c.runGenerate(cmd.Context(), generateOptions{
				projectDir: projectDir,
				zigExe:     zigExe,
				mode:       mode,
				systemDir:  systemDir,
				template:   template,
				output:     output,
				skipBuild:  skipBuild,
				extraArgs:  extraArgs,
			})
		},
	}

	cmd.Flags().StringVar(&zigExe, "zig", "zig", "zig executable to use")
	cmd.Flags().StringVar(&fetchMode, "fetch-mode", string(resolver.FetchModePlain), "dependency fetch mode (skip, plain, hashed)")
	cmd.Flags().StringVar(&systemDir, "system-dir", "", "system package directory passed to the build")
	cmd.Flags().StringVar(&template, "template", "", "custom recipe template file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "recipe output path (- for stdout)")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "skip the instrumented build and omit report data")

	return cmd
}

type generateOptions struct {
	projectDir string
	zigExe     string
	mode       resolver.FetchMode
	systemDir  string
	template   string
	output     string
	skipBuild  bool
	extraArgs  []string
}

// projectRoot normalizes the positional argument. Users may point at
// either the project directory or the manifest file inside it; the rest
// of the pipeline (resolver root, build cwd, metadata lookup) always
// wants the directory.
func projectRoot(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "project %s", path)
	}
	if info.IsDir() {
		return path, nil
	}
	return filepath.Dir(path), nil
}

func (c *CLI) runGenerate(ctx context.Context, opts generateOptions) error {
	man, err := manifest.ParseFile(opts.projectDir)
	if err != nil {
		return err
	}
	if opts.projectDir, err = projectRoot(opts.projectDir); err != nil {
		return err
	}
	printInfo("%s %s", man.Name, man.Version)

	dirs, err := c.openDirs()
	if err != nil {
		return err
	}
	client := zigtool.New(opts.zigExe)

	version, err := c.zigVersion(ctx, client, opts.zigExe, dirs)
	if err != nil {
		return err
	}
	printKeyValue("zig", version)
	if min := man.MinimumZigVersion; min != "" && semver.Compare("v"+version, "v"+min) < 0 {
		printWarning("zig %s is older than the declared minimum %s", version, min)
	}

	res, err := c.resolve(ctx, client, man, opts, dirs)
	if err != nil {
		return err
	}

	rctx := recipe.NewContext(man.Name, man.Version)
	rctx.Zig = man.MinimumZigVersion
	rctx.Vendor = res.Vendor
	rctx.GitCommits = res.GitCommits

	outPath, outDir := c.outputTarget(opts, man)

	if len(res.GitCommits) > 0 {
		name, err := c.packGitCommits(man.Name, res.GitCommits, dirs, outDir)
		if err != nil {
			return err
		}
		rctx.TarballName = name
		printSuccess("Packed %d source-control dependencies", len(res.GitCommits))
		printFile(filepath.Join(outDir, name))
	}

	if !opts.skipBuild {
		rctx.Report, err = c.collectReport(ctx, client, version, opts)
		if err != nil {
			return err
		}
	}

	meta, err := recipe.LoadMeta(opts.projectDir)
	if err != nil {
		return err
	}
	rctx.Meta = meta

	if err := c.render(rctx, opts.template, outPath); err != nil {
		return err
	}
	if outPath == "" {
		return nil
	}
	printSuccess("Recipe written")
	printFile(outPath)
	return nil
}

// zigVersion asks the tool for its version, memoized per executable
// path and mtime.
func (c *CLI) zigVersion(ctx context.Context, client *zigtool.Client, exe string, dirs *cache.Dirs) (string, error) {
	meta := c.metaCache(dirs)
	defer meta.Close()

	var key string
	if path, err := exec.LookPath(exe); err == nil {
		if info, err := os.Stat(path); err == nil {
			key = cache.VersionKey(path, info.ModTime())
		}
	}
	if key != "" {
		if data, hit, err := meta.Get(ctx, key); err == nil && hit {
			c.Logger.Debug("zig version from cache", "version", string(data))
			return string(data), nil
		}
	}

	version, err := client.Version(ctx)
	if err != nil {
		return "", err
	}
	if key != "" {
		if err := meta.Set(ctx, key, []byte(version), cache.TTLVersion); err != nil {
			c.Logger.Debug("memoize zig version", "err", err)
		}
	}
	return version, nil
}

func (c *CLI) resolve(ctx context.Context, client *zigtool.Client, man *manifest.Manifest, opts generateOptions, dirs *cache.Dirs) (*resolver.Result, error) {
	sp := newSpinner(ctx, "Resolving dependencies...")
	sp.Start()

	r := resolver.New(client, resolver.Options{
		StoreDir: dirs.Store,
		Mode:     opts.mode,
		Logger:   c.Logger,
	})
	res, err := r.Resolve(ctx, man, opts.projectDir)
	if err != nil {
		sp.StopWithError("Resolution failed")
		return nil, err
	}

	sp.StopWithSuccess(fmt.Sprintf("Resolved %d dependencies", len(res.Vendor)+len(res.GitCommits)))
	if len(res.GitCommits) > 0 {
		printDetail("%d require manual archiving", len(res.GitCommits))
	}
	return res, nil
}

// packGitCommits assembles the reproducible archive of non-fetchable
// dependencies in outDir. The file is packed under a scratch name
// first: the checksum-bearing final name is only known afterwards.
func (c *CLI) packGitCommits(project string, entries []resolver.GitCommitEntry, dirs *cache.Dirs, outDir string) (string, error) {
	tmp, err := os.CreateTemp(outDir, ".zonrecipe-pack-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	sum, err := tarpack.Pack(entries, dirs.Store, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	name := tarpack.FileName(project, sum)
	if err := os.Rename(tmp.Name(), filepath.Join(outDir, name)); err != nil {
		return "", err
	}
	return name, nil
}

func (c *CLI) collectReport(ctx context.Context, client *zigtool.Client, version string, opts generateOptions) (*report.Processed, error) {
	sp := newSpinner(ctx, "Running instrumented build...")
	sp.Start()

	collector := &report.Collector{Runner: client, Logger: c.Logger}
	raw, err := collector.Collect(ctx, report.Params{
		ZigVersion: version,
		ProjectDir: opts.projectDir,
		SystemDir:  opts.systemDir,
		ExtraArgs:  opts.extraArgs,
	})
	if err != nil {
		sp.StopWithError("Build report collection failed")
		return nil, err
	}

	sp.StopWithSuccess(fmt.Sprintf("Collected build report (%d options, %d system libraries)",
		len(raw.UserOptions), len(raw.SystemLibraries)))
	return report.PostProcess(raw, c.Logger), nil
}

// outputTarget resolves the recipe path and the directory receiving
// side artifacts. An empty path means stdout.
func (c *CLI) outputTarget(opts generateOptions, man *manifest.Manifest) (path, dir string) {
	if opts.output == "-" {
		return "", "."
	}
	if opts.output != "" {
		return opts.output, filepath.Dir(opts.output)
	}
	name := fmt.Sprintf("%s-%s.ebuild", man.Name, man.Version)
	return name, "."
}

func (c *CLI) render(rctx *recipe.Context, template, outPath string) error {
	if outPath == "" {
		if template != "" {
			return recipe.RenderFile(os.Stdout, rctx, template)
		}
		return recipe.Render(os.Stdout, rctx)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if template != "" {
		err = recipe.RenderFile(f, rctx, template)
	} else {
		err = recipe.Render(f, rctx)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
