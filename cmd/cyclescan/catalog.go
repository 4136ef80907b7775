package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cyclescan/internal/arbitrage"
	"cyclescan/internal/catalog"
	"cyclescan/internal/exchange"
	"cyclescan/internal/model"
)

var catalogEvaluate bool

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Validate and list the configured cycles",
	Long: `Load the cycle catalog exactly as the scanner would, failing on any malformed
cycle, and print it. With --evaluate every cycle is also valued once against
the simulator's starting quotes at the configured fee.`,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().BoolVar(&catalogEvaluate, "evaluate", false, "Value each cycle against the simulator's starting quotes")
	rootCmd.AddCommand(catalogCmd)
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := catalog.FromConfig(cfg.Catalog)
	if err != nil {
		return err
	}

	var (
		engine *arbitrage.Engine
		snap   model.Snapshot
		fee    float64
	)
	if catalogEvaluate {
		if fee, err = cfg.FeeRate(); err != nil {
			return err
		}
		prices, err := exchange.InitialPrices(cfg.Feed.Simulator.Prices)
		if err != nil {
			return err
		}
		engine = arbitrage.NewEngine(cfg.Scanner.Notional, arbitrage.NewStableSet(cat.StableAssets()...))
		snap = model.NewSnapshot(prices, time.Now())
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	if catalogEvaluate {
		fmt.Fprintln(w, "ID\tPATH\tSYMBOLS\tRETURN %")
	} else {
		fmt.Fprintln(w, "ID\tPATH\tSYMBOLS")
	}
	for _, c := range cat.Cycles() {
		syms := make([]string, len(c.Symbols))
		for i, s := range c.Symbols {
			syms[i] = s.String()
		}
		row := fmt.Sprintf("%s\t%s\t%s", c.ID, c.Path(), strings.Join(syms, ","))
		if catalogEvaluate {
			res, err := engine.Evaluate(c, snap, fee)
			if err != nil {
				row += "\t" + err.Error()
			} else {
				row += fmt.Sprintf("\t%.4f", res.PercentReturn)
			}
		}
		fmt.Fprintln(w, row)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d cycles over %d symbols\n", cat.Len(), len(cat.Symbols()))
	return nil
}
