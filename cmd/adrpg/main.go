// Command adrpg overlays monsters on the ad slots of web pages.
//
// Usage:
//
//	adrpg -config adrpg.yaml              # overlay the pages listed in the config
//	adrpg -url https://example.com        # overlay a single page
//	adrpg -scan page.html > out.html      # dry run on a saved page, no browser
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/adrpg/idgen"
	"github.com/hazyhaar/adrpg/overlay"
)

func main() {
	configPath := flag.String("config", "", "path to adrpg.yaml config file")
	singleURL := flag.String("url", "", "overlay a single URL")
	scanPath := flag.String("scan", "", "scan a saved HTML file and print the result")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *scanPath); err != nil {
		logger.Error("adrpg: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, scanPath string) error {
	cfg, err := overlay.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if scanPath != "" {
		return runScan(ctx, logger, cfg, scanPath)
	}
	if singleURL != "" {
		cfg.Pages = append(cfg.Pages, overlay.PageConfig{ID: idgen.New(), URL: singleURL})
	}
	if len(cfg.Pages) == 0 {
		fmt.Fprintln(os.Stderr, "usage: adrpg -config <file> | -url <url> | -scan <file.html>")
		os.Exit(2)
	}

	o, err := overlay.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := o.Start(ctx); err != nil {
		o.Stop()
		return fmt.Errorf("start: %w", err)
	}

	<-ctx.Done()
	o.Stop()
	return nil
}

// runScan replaces the slots of a saved page and writes it to stdout.
// Events go to stderr so the page output stays clean.
func runScan(ctx context.Context, logger *slog.Logger, cfg *overlay.Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	doc, err := overlay.ParseHTML(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	o, err := overlay.New(cfg, logger, overlay.NewStdoutSink(os.Stderr))
	if err != nil {
		return err
	}
	defer o.Stop()

	n, err := o.ScanDocument(ctx, "scan", "file://"+path, doc)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	logger.Info("adrpg: scan done", "file", path, "candidates", n)
	return doc.Render(os.Stdout)
}
