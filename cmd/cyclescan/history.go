package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"cyclescan/internal/alert"
	"cyclescan/internal/cache"
	"cyclescan/internal/database"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the most recent recorded opportunities",
	RunE:  runHistory,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow opportunities published by a running scanner",
	RunE:  runWatch,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of opportunities to show")
	rootCmd.AddCommand(historyCmd, watchCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Enabled() {
		return errors.New("database.host is not configured")
	}

	repo, err := database.NewPostgresRepository(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	results, err := repo.RecentOpportunities(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OBSERVED\tCYCLE\tPATH\tRETURN %\tFEE")
	for _, r := range results {
		opp := alert.NewOpportunity(r)
		fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%.4f\n",
			r.ObservedAt.Local().Format(time.DateTime), r.CycleID, opp.PathDescription, r.PercentReturn, r.FeeRate)
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Redis.Enabled() {
		return errors.New("redis.addr is not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rc, err := cache.NewResultCache(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rc.Close()

	results, err := rc.Subscribe(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", cfg.Redis.Channel)
	for r := range results {
		opp := alert.NewOpportunity(r)
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %-8s %.4f%%  %s\n    %s\n",
			r.ObservedAt.Local().Format(time.TimeOnly), r.CycleID, r.PercentReturn, opp.PathDescription,
			strings.ReplaceAll(opp.LegsDescription, "; ", "\n    "))
	}
	return nil
}
