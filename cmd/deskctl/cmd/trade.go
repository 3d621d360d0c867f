package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"optionDesk/internal/client"
)

var tradeCmd = &cobra.Command{
	Use:       "trade buy|sell",
	Short:     "Open a BUY or SELL position",
	ValidArgs: []string{"buy", "sell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Long: `Open a binary position on the price direction. The stake is deducted
immediately; the position settles when its expiry elapses.

Symbol and expiry default to the chart selection of the session.

Example:
  deskctl trade buy --amount 20
  deskctl trade sell --amount 5 --symbol EUR/USD --expiry 5`,
	RunE: runTrade,
}

var (
	tradeAmount string
	tradeSymbol string
	tradeExpiry int
)

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().StringVarP(&tradeAmount, "amount", "a", "", "stake amount (required)")
	tradeCmd.Flags().StringVarP(&tradeSymbol, "symbol", "s", "", "instrument symbol (default: chart symbol)")
	tradeCmd.Flags().IntVarP(&tradeExpiry, "expiry", "x", 0, "expiry in minutes (default: chart expiry)")
	tradeCmd.MarkFlagRequired("amount")
}

func runTrade(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(tradeAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", tradeAmount, err)
	}
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	pos, err := c.Open(cmd.Context(), client.OpenRequest{
		Symbol:        tradeSymbol,
		Direction:     strings.ToUpper(args[0]),
		Amount:        amount,
		ExpiryMinutes: tradeExpiry,
	})
	if err != nil {
		return fmt.Errorf("open position: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Position opened"))
	renderPosition(cmd.OutOrStdout(), pos)
	return nil
}
