package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"optionDesk/internal/client"
	"optionDesk/internal/domain"
)

var priceCmd = &cobra.Command{
	Use:   "price [SYMBOL]",
	Short: "Show the current price of one or all instruments",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPrice,
}

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List tradable instruments",
	RunE:  runInstruments,
}

var candlesCmd = &cobra.Command{
	Use:   "candles SYMBOL",
	Short: "Show recent candles for an instrument",
	Args:  cobra.ExactArgs(1),
	RunE:  runCandles,
}

var studyCmd = &cobra.Command{
	Use:   "study SYMBOL",
	Short: "Show an indicator (SMA, EMA, RSI, ATR) over recent candles",
	Long: `Compute a chart study over the candles of an instrument.

Example:
  deskctl study BTC/USD --name RSI --period 14 --granularity 1m`,
	Args: cobra.ExactArgs(1),
	RunE: runStudy,
}

var chartCmd = &cobra.Command{
	Use:   "chart",
	Short: "Show or change the chart selection",
	Long: `Show the chart widget state of the session: symbol, granularity,
expiry, current price, candles and markers for recent positions.
Any flag given changes the selection first.

Example:
  deskctl chart --symbol ETH/USD --granularity 5m --expiry 3`,
	RunE: runChart,
}

var (
	candlesGranularity string
	studyName          string
	studyPeriod        int
	studyGranularity   string
	chartSymbol        string
	chartGranularity   string
	chartExpiry        int
)

func init() {
	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(instrumentsCmd)
	rootCmd.AddCommand(candlesCmd)
	rootCmd.AddCommand(studyCmd)
	rootCmd.AddCommand(chartCmd)

	candlesCmd.Flags().StringVarP(&candlesGranularity, "granularity", "g", "1m", "bucket size (1m, 5m, 15m)")
	studyCmd.Flags().StringVarP(&studyName, "name", "n", "SMA", "indicator name (SMA, EMA, RSI, ATR)")
	studyCmd.Flags().IntVarP(&studyPeriod, "period", "p", 14, "indicator period in candles")
	studyCmd.Flags().StringVarP(&studyGranularity, "granularity", "g", "1m", "bucket size (1m, 5m, 15m)")
	chartCmd.Flags().StringVarP(&chartSymbol, "symbol", "s", "", "select instrument")
	chartCmd.Flags().StringVarP(&chartGranularity, "granularity", "g", "", "select granularity (1m, 5m, 15m)")
	chartCmd.Flags().IntVarP(&chartExpiry, "expiry", "x", 0, "select expiry minutes")
}

func runPrice(cmd *cobra.Command, args []string) error {
	c := anonymousClient()
	if len(args) == 1 {
		q, err := c.Quote(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("price: %w", err)
		}
		renderQuotes(cmd.OutOrStdout(), []domain.Quote{*q})
		return nil
	}
	quotes, err := c.Quotes(cmd.Context())
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	renderQuotes(cmd.OutOrStdout(), quotes)
	return nil
}

func runInstruments(cmd *cobra.Command, args []string) error {
	instruments, err := anonymousClient().Instruments(cmd.Context())
	if err != nil {
		return fmt.Errorf("instruments: %w", err)
	}
	renderInstruments(cmd.OutOrStdout(), instruments)
	return nil
}

func runCandles(cmd *cobra.Command, args []string) error {
	candles, err := anonymousClient().Candles(cmd.Context(), args[0], domain.Granularity(candlesGranularity))
	if err != nil {
		return fmt.Errorf("candles: %w", err)
	}
	renderCandles(cmd.OutOrStdout(), candles)
	return nil
}

func runStudy(cmd *cobra.Command, args []string) error {
	series, err := anonymousClient().Study(cmd.Context(), args[0], domain.Granularity(studyGranularity), studyName, studyPeriod)
	if err != nil {
		return fmt.Errorf("study: %w", err)
	}
	renderStudy(cmd.OutOrStdout(), fmt.Sprintf("%s(%d) %s", strings.ToUpper(studyName), studyPeriod, args[0]), series)
	return nil
}

func runChart(cmd *cobra.Command, args []string) error {
	c, _, err := authedClient()
	if err != nil {
		return err
	}
	upd := client.ChartUpdate{
		Symbol:        chartSymbol,
		Granularity:   domain.Granularity(chartGranularity),
		ExpiryMinutes: chartExpiry,
	}

	var ch *client.Chart
	if upd == (client.ChartUpdate{}) {
		ch, err = c.Chart(cmd.Context())
	} else {
		ch, err = c.UpdateChart(cmd.Context(), upd)
	}
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}
	renderChart(cmd.OutOrStdout(), ch)
	return nil
}
