package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/peakgear/pricewatch/internal/app"
	"github.com/peakgear/pricewatch/internal/config"
	"github.com/peakgear/pricewatch/internal/currency"
	apihttp "github.com/peakgear/pricewatch/internal/interfaces/http"
	"github.com/peakgear/pricewatch/internal/scheduler"
)

const (
	appName           = "pricewatch"
	version           = "v1.2.0"
	defaultConfigPath = "config/pricewatch.yaml"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Retail price collection and analysis",
		Version: version,
		Long: `pricewatch collects outdoor-gear catalogs from retail providers,
normalizes their bespoke feeds into one record shape, and runs the price
analysis pipeline: currency normalization, product matching, price history,
trend scoring and reliability weighting.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "Path to the YAML configuration file")

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Run one collection batch",
		Long:  "Collect from every enabled provider once, run the analysis pipeline when the database is configured, and print the batch result as JSON",
		RunE:  runCollect,
	}
	collectCmd.Flags().StringSlice("providers", nil, "Comma-separated provider slugs (default: all enabled)")
	collectCmd.Flags().Bool("no-cache", false, "Drop cached provider records before collecting")
	collectCmd.Flags().Bool("skip-analysis", false, "Collect only, leaving the database untouched")

	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the batch scheduler daemon",
		Long:  "Trigger a collection batch on a fixed interval until interrupted",
		RunE:  runSchedule,
	}
	scheduleCmd.Flags().Duration("interval", 0, "Tick interval (default: config value)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Serve the collection-control and observability API with Prometheus metrics",
		RunE:  runServe,
	}
	serveCmd.Flags().String("host", "", "Bind host (default: config value)")
	serveCmd.Flags().Int("port", 0, "Bind port (default: config value)")

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "Show the provider registry",
		Long:  "Print each enabled provider with its reliability weights, breaker state, budget and endpoint",
		RunE:  runProviders,
	}

	ratesCmd := &cobra.Command{
		Use:   "rates",
		Short: "Show the current exchange rate table",
		Long:  "Fetch the exchange rates used for price normalization and print them quoted in the base currency",
		RunE:  runRates,
	}

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(ratesCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// loadConfig reads the configured YAML file and applies its log level. The
// default config path is optional; an explicitly given one must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == defaultConfigPath {
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}
	return cfg, nil
}

func runCollect(cmd *cobra.Command, args []string) error {
	providers, _ := cmd.Flags().GetStringSlice("providers")
	noCache, _ := cmd.Flags().GetBool("no-cache")
	skipAnalysis, _ := cmd.Flags().GetBool("skip-analysis")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := svc.Bootstrap(ctx); err != nil {
		return err
	}

	result := svc.RunBatch(ctx, app.BatchOptions{
		Providers:    providers,
		UseCache:     !noCache,
		SkipAnalysis: skipAnalysis,
		TriggeredBy:  app.TriggerCLI,
	})

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if result.Failed() {
		return fmt.Errorf("batch failed with %d errors", len(result.Errors))
	}
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	interval, _ := cmd.Flags().GetDuration("interval")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Bootstrap(ctx); err != nil {
		return err
	}

	if interval <= 0 {
		interval = cfg.Scheduler.Interval()
	}
	sched := scheduler.New(svc, scheduler.Config{
		Interval:   interval,
		RunOnStart: cfg.Scheduler.RunOnStart,
	})

	if err := sched.Start(ctx); !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Scheduler stopped")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.HTTP.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.HTTP.Port = port
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := svc.Bootstrap(ctx); err != nil {
		cancel()
		return err
	}
	cancel()

	server, err := apihttp.NewServer(svc, cfg.HTTP)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		base := "http://" + server.Addr()
		log.Info().
			Str("collect", base+"/api/v1/collect").
			Str("products", base+"/api/v1/products").
			Str("stats", base+"/api/v1/stats").
			Str("metrics", base+"/metrics").
			Msg("API endpoints available")

		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	circuits := svc.Breakers.Stats()
	budgets := svc.Budgets.Stats()
	endpoints := cfg.Collector.Endpoints()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Provider\tReliability\tQuality\tCircuit\tBudget\tEndpoint")
	fmt.Fprintln(w, "--------\t-----------\t-------\t-------\t------\t--------")

	for _, slug := range svc.Adapters.Slugs() {
		weights := svc.Weights.GetProviderWeights(slug)

		state := "closed"
		if cb, ok := circuits[slug]; ok {
			state = cb.State
		}

		budgetCol := "-"
		if b, ok := budgets[slug]; ok && b.Limit > 0 {
			budgetCol = fmt.Sprintf("%d/%d", b.Used, b.Limit)
		}

		fmt.Fprintf(w, "%s\t%.2f\t%d\t%s\t%s\t%s\n",
			slug, weights.Reliability, weights.DataQuality, state, budgetCol, endpoints[slug])
	}
	return w.Flush()
}

func runRates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rates := svc.Rates.Rates(ctx)
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	fmt.Printf("Exchange rates quoted in %s (%d currencies)\n\n", currency.BaseCurrency, len(codes))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Currency\tRate")
	fmt.Fprintln(w, "--------\t----")
	for _, code := range codes {
		fmt.Fprintf(w, "%s\t%.4f\n", code, rates[code])
	}
	return w.Flush()
}
