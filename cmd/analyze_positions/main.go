package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"optionDesk/internal/analytics"
	"optionDesk/internal/domain"
	"optionDesk/internal/utils"
)

var (
	pattern  = flag.String("files", "data/replay_*.csv", "glob of exported position CSV files")
	starting = flag.String("balance", "10000", "starting balance used for return and drawdown")
)

func main() {
	flag.Parse()

	startingBalance, err := decimal.NewFromString(*starting)
	if err != nil {
		log.Fatalf("Invalid starting balance %q: %v", *starting, err)
	}

	files, err := filepath.Glob(*pattern)
	if err != nil {
		log.Fatalf("Error finding position files: %v", err)
	}
	sort.Strings(files)

	if len(files) == 0 {
		log.Println("No position files found. Export positions or run the session replay first.")
		return
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "File\tTrades\tWinRate\tAvgWin\tAvgLoss\tNetPnL\tMaxDD\tROI%\t")

	all := make(map[string][]*domain.Position, len(files))
	for _, file := range files {
		positions, err := utils.ReadPositionsCSVFile(file)
		if err != nil {
			log.Printf("Error reading positions from %s: %v", file, err)
			continue
		}
		all[file] = positions

		m := analytics.AnalyzePerformance(positions, startingBalance)
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%s\t%.2f\t%.2f\t\n",
			filepath.Base(file),
			m.TotalTrades,
			m.WinRate*100,
			m.AverageWin,
			m.AverageLoss,
			m.NetProfit.StringFixed(2),
			m.MaxDrawdown*100,
			m.ReturnOnInvestment*100,
		)
	}
	w.Flush()

	fmt.Println("\n## Expiry Analysis")
	analyzeExpiries(files, all)
}

type bucket struct {
	trades int
	won    int
	net    decimal.Decimal
}

// analyzeExpiries breaks settled positions down by expiry and direction.
func analyzeExpiries(files []string, all map[string][]*domain.Position) {
	for _, file := range files {
		positions, ok := all[file]
		if !ok {
			continue
		}

		buckets := make(map[string]*bucket)
		for _, p := range positions {
			if p.IsOpen() || p.ProfitLoss == nil {
				continue
			}
			key := fmt.Sprintf("%dm %s", p.ExpiryMinutes, p.Direction)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{}
				buckets[key] = b
			}
			b.trades++
			if p.Status == domain.StatusWon {
				b.won++
			}
			b.net = b.net.Add(*p.ProfitLoss)
		}
		if len(buckets) == 0 {
			continue
		}

		keys := make([]string, 0, len(buckets))
		for k := range buckets {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Printf("\n### %s\n", filepath.Base(file))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
		fmt.Fprintln(w, "Expiry/Side\tTrades\tWinRate\tNetPnL\t")
		for _, k := range keys {
			b := buckets[k]
			fmt.Fprintf(w, "%s\t%d\t%.2f\t%s\t\n", k, b.trades, float64(b.won)/float64(b.trades)*100, b.net.StringFixed(2))
		}
		w.Flush()
	}
}
