package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cyclescan/internal/alert"
	"cyclescan/internal/arbitrage"
	"cyclescan/internal/cache"
	"cyclescan/internal/catalog"
	"cyclescan/internal/config"
	"cyclescan/internal/database"
	"cyclescan/internal/exchange"
	"cyclescan/internal/feed"
	"cyclescan/internal/metrics"
	"cyclescan/internal/model"
	"cyclescan/internal/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Stream quotes and scan the catalog until interrupted",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.FromConfig(cfg.Catalog)
	if err != nil {
		return err
	}
	fee, err := cfg.FeeRate()
	if err != nil {
		return err
	}

	m := metrics.New()
	book := feed.NewQuoteBook(logger)
	client, err := exchange.NewClient(cfg.Feed.Source, logger, &cfg)
	if err != nil {
		return err
	}

	opts := []scanner.Option{scanner.WithMetrics(m)}

	if cfg.Database.Enabled() {
		repo, err := database.NewPostgresRepository(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer repo.Close()
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
		opts = append(opts, scanner.WithRecorder(repo))
		logger.Info("Recording opportunities to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	}

	if cfg.Redis.Enabled() {
		rc, err := cache.NewResultCache(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		opts = append(opts, scanner.WithPublisher(rc))
		logger.Info("Publishing results to Redis", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	dispatcher := newDispatcher(logger, cfg.Alerts, m)
	opts = append(opts, scanner.WithAlerter(dispatcher))

	engine := arbitrage.NewEngine(cfg.Scanner.Notional, arbitrage.NewStableSet(cat.StableAssets()...))
	sc, err := scanner.New(logger, engine, cat.Cycles(), book, scanner.Config{
		Interval:               cfg.Scanner.Interval,
		ThresholdPercent:       cfg.Scanner.ThresholdPercent,
		FeeRate:                fee,
		Workers:                cfg.Scanner.Workers,
		MissingQuoteAlertTicks: cfg.Scanner.MissingQuoteAlertTicks,
	}, opts...)
	if err != nil {
		return err
	}

	if file := config.ConfigFile(); file != "" {
		config.Watch(func(c config.Config, err error) {
			if err != nil {
				logger.Error("Config reload failed", "file", file, "error", err)
				return
			}
			fee, err := c.FeeRate()
			if err != nil {
				logger.Error("Config reload: keeping previous fee rate", "error", err)
				return
			}
			if err := sc.SetFeeRate(fee); err != nil {
				logger.Error("Config reload: fee rate rejected", "error", err)
			}
		})
	}

	logger.Info("Starting cyclescan",
		"feed", client.GetName(),
		"cycles", cat.Len(),
		"symbols", len(cat.Symbols()),
		"feeRate", fee,
		"threshold", cfg.Scanner.ThresholdPercent,
	)

	ticks := make(chan model.PriceTick, 256)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.StartStream(gctx, ticks, cat.Symbols())
	})
	g.Go(func() error {
		book.Run(gctx, ticks)
		return nil
	})
	g.Go(func() error {
		if err := sc.Run(gctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		watchStaleness(gctx, logger, book, cfg.Feed.StaleAfter)
		return nil
	})
	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newMux(m, book, cfg.Feed.StaleAfter),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving metrics", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	dispatcher.Wait()
	logger.Info("cyclescan stopped")
	return err
}

func newDispatcher(logger *slog.Logger, cfg config.AlertsConfig, m *metrics.Metrics) *alert.Dispatcher {
	var judge alert.Judge = alert.StaticJudge{}
	if cfg.JudgeURL != "" {
		judge = alert.NewHTTPJudge(cfg.JudgeURL, cfg.Timeout, alert.BreakerSettings{
			ConsecutiveFailures: cfg.BreakerFailures,
			OpenTimeout:         cfg.BreakerTimeout,
		})
	}

	senders := []alert.Sender{alert.NewLogSender(logger)}
	if cfg.DiscordWebhook != "" {
		senders = append(senders, alert.NewDiscordSender(cfg.DiscordWebhook))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, alert.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}

	return alert.NewDispatcher(logger, judge, senders, alert.DispatcherConfig{
		Timeout:       cfg.Timeout,
		RatePerMinute: cfg.RatePerMinute,
		Burst:         cfg.Burst,
		MaxInFlight:   cfg.MaxInFlight,
	}, m)
}

func newMux(m *metrics.Metrics, book *feed.QuoteBook, staleAfter time.Duration) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		quoted := book.Len()
		stale := len(book.Stale(staleAfter))
		if quoted == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, "quoted=%d stale=%d\n", quoted, stale)
	})
	return mux
}

func watchStaleness(ctx context.Context, logger *slog.Logger, book *feed.QuoteBook, maxAge time.Duration) {
	if maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(maxAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stale := book.Stale(maxAge); len(stale) > 0 {
				names := make([]string, len(stale))
				for i, s := range stale {
					names[i] = s.String()
				}
				logger.Warn("Quotes have gone stale", "symbols", names, "maxAge", maxAge)
			}
		}
	}
}
