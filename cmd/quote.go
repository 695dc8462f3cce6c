package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	coreconfig "github.com/andriy-git/stocksTUI/core/config"
	"github.com/andriy-git/stocksTUI/market/domain"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL [SYMBOL...]",
	Short: "Fetch and print quotes for the given symbols",
	Long:  `One-shot lookup: refreshes any stale entries for the given symbols, then prints the cached quotes. Exits without leaving a scheduler running.`,
	Args:  cobra.MinimumNArgs(1),
	Run:   quoteRun,
}

func init() {
	quoteCmd.Flags().Bool("news", false, "Also fetch and print recent headlines")
	rootCmd.AddCommand(quoteCmd)
}

func quoteRun(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	withNews, _ := cmd.Flags().GetBool("news")

	symbols := make([]string, 0, len(args))
	for _, arg := range args {
		symbols = append(symbols, domain.NormalizeSymbol(arg))
	}

	kinds := []domain.DataKind{domain.KindQuote, domain.KindMeta}
	if withNews {
		kinds = append(kinds, domain.KindNews)
	}
	if err := marketService.FetchFresh(ctx, symbols, kinds); err != nil {
		// A partial fetch still leaves usable entries; print what we have.
		logrus.WithError(err).Warn("[QUOTE] refresh incomplete, printing cached values")
	}

	snaps, err := marketService.Snapshot(ctx, symbols)
	if err != nil {
		logrus.Fatalf("Failed to read cache: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tPRICE\tCHANGE\tCHANGE%\tSTATE\tAGE")
	for _, snap := range snaps {
		if snap.Quote == nil {
			reason := snap.Reason
			if snap.LastError != "" {
				reason = snap.LastError
			}
			fmt.Fprintf(w, "%s\t-\t-\t-\t%s\t-\n", snap.Key.Symbol, reason)
			continue
		}
		q := snap.Quote
		fmt.Fprintf(w, "%s\t%.2f\t%+.2f\t%+.2f%%\t%s\t%s\n",
			snap.Key.Symbol, q.Price, q.Change(), q.ChangePercent(), q.MarketState, snap.Age)
	}
	w.Flush()

	if withNews {
		for _, sym := range symbols {
			items, err := marketService.GetNews(ctx, sym)
			if err != nil {
				continue
			}
			fmt.Printf("\n%s headlines:\n", sym)
			for _, item := range items {
				fmt.Printf("  - %s (%s)\n", item.Title, item.Publisher)
			}
		}
	}

	if coreconfig.Global.App.Debug {
		stats := marketService.PoolStats()
		logrus.Debugf("[QUOTE] pool dispatched=%d dropped=%d", stats.TotalDispatched, stats.TotalDropped)
	}
}
