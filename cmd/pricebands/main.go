package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"pricebands/internal/collector"
	"pricebands/internal/config"
	"pricebands/internal/pipeline"
	"pricebands/internal/recorder"
	"pricebands/internal/scheduler"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("[INFO] pricebands starting...")

	// Load config
	cfgPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	// Init fetchers, one per supported source
	fetchers := map[string]collector.Fetcher{
		"cryptocompare": collector.NewCryptoCompareFetcher(collector.WithProxy(cfg.Proxy)),
		"yahoo":         collector.NewYahooFetcher(cfg.Proxy),
		"mock":          &collector.MockFetcher{},
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Printf("[WARN] init sqlite recorder failed, using noop: %v", err)
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	p := pipeline.NewPipeline(cfg, fetchers, rec)

	// One-shot mode unless a refresh schedule is configured
	if cfg.Schedule.RefreshCron == "" {
		if err := p.Run(); err != nil {
			log.Fatalf("[FATAL] refresh run: %v", err)
		}
		log.Println("[INFO] refresh complete")
		return
	}

	sched := scheduler.NewScheduler()
	if err := sched.Register(cfg.Schedule.RefreshCron, func() {
		if err := p.Run(); err != nil {
			log.Printf("[ERROR] refresh run: %v", err)
		}
	}); err != nil {
		log.Fatalf("[FATAL] %v", err)
	}
	sched.Start()
	defer sched.Stop()

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, refreshing now")
		go func() {
			if err := p.Run(); err != nil {
				log.Printf("[ERROR] refresh run: %v", err)
			}
		}()
	}

	log.Printf("[INFO] pricebands is running on schedule %q. Press Ctrl+C to stop.", cfg.Schedule.RefreshCron)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("[INFO] shutdown signal received, stopping...")
	log.Println("[INFO] pricebands stopped")
}
