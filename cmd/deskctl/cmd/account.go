package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the logged-in account and balance",
	RunE:  runAccount,
}

var depositCmd = &cobra.Command{
	Use:   "deposit AMOUNT",
	Short: "Add virtual funds to the account",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeposit,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(depositCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	acct, err := c.Account(cmd.Context())
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	renderAccount(cmd.OutOrStdout(), acct)
	return nil
}

func runDeposit(cmd *cobra.Command, args []string) error {
	amount, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[0], err)
	}
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	acct, err := c.Deposit(cmd.Context(), amount)
	if err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("✓ Deposited "+amount.StringFixed(2)))
	renderAccount(cmd.OutOrStdout(), acct)
	return nil
}
