package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/polyquery/metasearch/api"
	"github.com/polyquery/metasearch/config"
	"github.com/polyquery/metasearch/kv"
	"github.com/polyquery/metasearch/ledger"
	"github.com/polyquery/metasearch/provider"
	"github.com/polyquery/metasearch/router"
)

var verbose = flag.Bool("v", false, "enable verbose logging")

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config.Load()

	routing, err := config.LoadRouting(cfg.RoutingPath)
	if err != nil {
		log.Fatalf("Failed to load routing config: %v", err)
	}

	var store kv.Store
	if cfg.StatePath != "" {
		store, err = kv.NewSQLiteStore(cfg.StatePath)
		if err != nil {
			log.Warnf("Failed to open state store, running in-memory only: %v", err)
			store = nil
		}
	}
	if store != nil {
		defer store.Close()
	}

	led := ledger.New(store)
	for name, caps := range routing.Providers {
		led.SetDailyCap(name, caps.DailyCap)
		led.SetMonthlyCap(name, caps.MonthlyCap)
		led.SetRequestsDailyCap(name, caps.RequestsDailyCap)
		led.SetObjectsDailyCap(name, caps.ObjectsDailyCap)
	}
	if err := led.LoadSnapshot(context.Background()); err != nil {
		log.Warnf("Failed to load ledger snapshot: %v", err)
	}

	registry := provider.NewRegistry(provider.Config{
		BraveAPIKey:  cfg.BraveAPIKey,
		SerperAPIKey: cfg.SerperAPIKey,
	})

	srv := &api.Server{
		Router:  router.New(registry, led, routing),
		Ledger:  led,
		Routing: routing,
	}

	http.HandleFunc("/search", api.RecoveryMiddleware(srv.HandleSearch))
	http.HandleFunc("/diagnostics", api.RecoveryMiddleware(srv.HandleDiagnostics))
	http.HandleFunc("/health", srv.HandleHealth)
	http.HandleFunc("/", srv.HandleRoot)

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Starting on %s (providers: %v, mode: %s)",
			cfg.ListenAddr, registry.Names(), routing.DefaultMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-sigChan
	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := led.SaveSnapshot(ctx); err != nil {
		log.Warnf("Failed to save ledger snapshot: %v", err)
	}
	server.Shutdown(ctx)
}
