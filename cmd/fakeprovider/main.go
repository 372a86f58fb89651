// fakeprovider serves the four retail provider feeds for local development
// and manual testing. Point the collector's base URL at it and every provider
// answers with generated catalog data, including realistic latency and
// failure rates.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peakgear/pricewatch/internal/collector/providertest"
)

func main() {
	addr := flag.String("addr", "localhost:8002", "listen address")
	minLatency := flag.Duration("min-latency", 100*time.Millisecond, "minimum simulated response latency")
	maxLatency := flag.Duration("max-latency", 500*time.Millisecond, "maximum simulated response latency")
	errorScale := flag.Float64("errors", 1.0, "multiplier on each provider's default failure rate (0 disables injection)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rates := make(map[string]float64)
	for _, profile := range providertest.Profiles() {
		rates[profile.Slug] = profile.ErrorRate * *errorScale
	}

	server := &http.Server{
		Addr: *addr,
		Handler: providertest.Handler(providertest.Options{
			ErrorRates: rates,
			MinLatency: *minLatency,
			MaxLatency: *maxLatency,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logEvent := log.Info()
		for _, profile := range providertest.Profiles() {
			logEvent = logEvent.Str(profile.Slug,
				fmt.Sprintf("http://%s/api/v1/providers/%s/products", *addr, profile.Slug))
		}
		logEvent.Msg("Fake provider endpoints available")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		log.Error().Err(err).Msg("Server error")
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
		return
	}
	log.Info().Msg("Server stopped")
}
