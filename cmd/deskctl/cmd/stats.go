package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show performance statistics of settled positions",
	RunE:  runStats,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all positions as CSV",
	Long: `Write every position of the account as CSV to a file, or to stdout
when no output file is given.

Example:
  deskctl export -o positions.csv`,
	RunE: runExport,
}

var exportOutput string

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output CSV path (default stdout)")
}

func runStats(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	metrics, err := c.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	renderStats(cmd.OutOrStdout(), metrics)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	data, err := c.ExportCSV(cmd.Context())
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", exportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n", successStyle.Render("✓ Wrote "+exportOutput))
	return nil
}
