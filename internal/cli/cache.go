package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the package store and memoized tool queries",
	}

	cmd.AddCommand(c.cacheInfoCommand())
	cmd.AddCommand(c.cacheCleanCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheInfoCommand creates the "cache info" subcommand.
func (c *CLI) cacheInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show cache location and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := c.openDirs()
			if err != nil {
				return err
			}
			size, err := dirs.Size()
			if err != nil {
				return err
			}
			printKeyValue("root", dirs.Root)
			printKeyValue("store", dirs.Store)
			printKeyValue("size", formatBytes(size))
			return nil
		},
	}
}

// cacheCleanCommand creates the "cache clean" subcommand.
func (c *CLI) cacheCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove all cached packages and memoized queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := c.openDirs()
			if err != nil {
				return err
			}
			size, err := dirs.Size()
			if err != nil {
				return err
			}
			if err := dirs.Clean(); err != nil {
				return err
			}
			printSuccess("Cache cleaned, reclaimed %s", formatBytes(size))
			printDetail("Directory: %s", dirs.Root)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dirs, err := c.openDirs()
			if err != nil {
				return err
			}
			fmt.Println(dirs.Root)
			return nil
		},
	}
}

// formatBytes renders a byte count in human-friendly units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
