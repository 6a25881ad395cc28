// Package main wires the spindle CLI: one config-driven crawl per run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spindleworks/spindle"
	"github.com/spindleworks/spindle/boltcache"
	"github.com/spindleworks/spindle/headless"
	"github.com/spindleworks/spindle/internal/config"
	"github.com/spindleworks/spindle/internal/logging"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("run failed", zap.Error(err))
		stop()
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	settings := &spindle.Settings{
		CacheEnabled: cfg.Crawl.Cache.Enabled,
		HTTPProxy:    cfg.Crawl.HTTPProxy,
		HTTPSProxy:   cfg.Crawl.HTTPSProxy,
		Delay:        cfg.Crawl.Delay,
		Timeout:      cfg.Crawl.Timeout,
		UserAgent:    cfg.Crawl.UserAgent,
		Logger:       logger,
	}

	if cfg.Crawl.Cache.Enabled && cfg.Crawl.Cache.Dir != "" {
		store, err := boltcache.Open(cfg.Crawl.Cache.Dir)
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		defer func() {
			_ = store.Close()
		}()
		settings.Cache = store
		logger.Info("persistent cache enabled", zap.String("dir", cfg.Crawl.Cache.Dir))
	}

	if cfg.Fetcher.Kind == "headless" {
		browser, err := headless.New(ctx, headless.Config{
			MaxParallel: cfg.Fetcher.MaxParallel,
			NavTimeout:  cfg.Fetcher.NavTimeout,
			ProxyURL:    cfg.Crawl.HTTPSProxy,
		}, logger)
		if err != nil {
			return fmt.Errorf("start headless fetcher: %w", err)
		}
		defer browser.Close()
		settings.Fetcher = browser
	}

	out := os.Stdout
	if cfg.Output.Path != "" && cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		out = f
	}

	spider, err := newSiteSpider(cfg.Spider, logger)
	if err != nil {
		return fmt.Errorf("build spider: %w", err)
	}

	engine, err := spindle.NewEngine(settings)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	enc := json.NewEncoder(out)
	crawl := engine.Crawl(ctx, spider)
	items := 0
	for crawl.Next() {
		if err := enc.Encode(crawl.Item()); err != nil {
			return fmt.Errorf("write item: %w", err)
		}
		items++
	}
	if err := crawl.Err(); err != nil {
		return fmt.Errorf("crawl: %w", err)
	}
	logger.Info("crawl complete",
		zap.Int("items", items),
		zap.Int("pages", spider.PagesSeen()),
	)
	return nil
}
