package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zonrecipe/zonrecipe/pkg/depgraph"
	"github.com/zonrecipe/zonrecipe/pkg/manifest"
	"github.com/zonrecipe/zonrecipe/pkg/resolver"
	"github.com/zonrecipe/zonrecipe/pkg/zigtool"
)

// graphCommand creates the graph command for dependency inspection.
func (c *CLI) graphCommand() *cobra.Command {
	var (
		zigExe    string
		fetchMode string
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "graph [project-dir]",
		Short: "Export the resolved dependency graph",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir := "."
			if len(args) == 1 {
				projectDir = args[0]
			}

			mode, err := resolver.ParseFetchMode(fetchMode)
			if err != nil {
				return err
			}

			man, err := manifest.ParseFile(projectDir)
			if err != nil {
				return err
			}
			if projectDir, err = projectRoot(projectDir); err != nil {
				return err
			}

			dirs, err := c.openDirs()
			if err != nil {
				return err
			}

			client := zigtool.New(zigExe)
			res, err := c.resolve(cmd.Context(), client, man, generateOptions{
				projectDir: projectDir,
				mode:       mode,
			}, dirs)
			if err != nil {
				return err
			}

			g := depgraph.Build(man.Name, res.Edges)

			var data []byte
			switch strings.ToLower(format) {
			case "dot":
				data = []byte(g.ToDOT())
			case "svg":
				data, err = g.RenderSVG(cmd.Context())
				if err != nil {
					return err
				}
			case "json":
				var buf bytes.Buffer
				if err := g.WriteJSON(&buf); err != nil {
					return err
				}
				data = buf.Bytes()
			default:
				return fmt.Errorf("unknown graph format %q (want dot, svg, or json)", format)
			}

			if output == "" || output == "-" {
				_, err = os.Stdout.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return err
			}
			printSuccess("Graph written")
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVar(&zigExe, "zig", "zig", "zig executable to use")
	cmd.Flags().StringVar(&fetchMode, "fetch-mode", string(resolver.FetchModePlain), "dependency fetch mode (skip, plain, hashed)")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format (dot, svg, json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (- for stdout)")

	return cmd
}
