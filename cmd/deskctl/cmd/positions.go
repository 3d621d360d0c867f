package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List positions, newest first",
	RunE:  runPositions,
}

var positionCmd = &cobra.Command{
	Use:   "position ID",
	Short: "Show one position",
	Args:  cobra.ExactArgs(1),
	RunE:  runPosition,
}

var (
	positionsOpen    bool
	positionsHistory bool
)

func init() {
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(positionCmd)

	positionsCmd.Flags().BoolVar(&positionsOpen, "open", false, "only open positions")
	positionsCmd.Flags().BoolVar(&positionsHistory, "history", false, "only settled positions")
	positionsCmd.MarkFlagsMutuallyExclusive("open", "history")
}

func runPositions(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	status := ""
	switch {
	case positionsOpen:
		status = "open"
	case positionsHistory:
		status = "closed"
	}
	positions, err := c.Positions(cmd.Context(), status)
	if err != nil {
		return fmt.Errorf("list positions: %w", err)
	}
	renderPositions(cmd.OutOrStdout(), positions)
	return nil
}

func runPosition(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	pos, err := c.Position(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("get position: %w", err)
	}
	renderPosition(cmd.OutOrStdout(), pos)
	return nil
}
