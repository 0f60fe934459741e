package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/config"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "nimbus"
)

func main() {
	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info(map[string]any{"signal": sig.String()}, "shutdown_signal_received")
		cancel()
	}()

	if err := newCLI(config.Load).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// newCLI builds the command tree. load supplies the base configuration,
// which global flags then override.
func newCLI(load func() (*config.AppConfig, error)) *cli.App {
	var app *Application

	return &cli.App{
		Name:    appName,
		Usage:   "headless browser core: filtering, offline cache, content handling and downloads",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "private", Usage: "private session: no offline cache, no remote viewers"},
			&cli.BoolFlag{Name: "no-adblock", Usage: "disable request filtering"},
			&cli.BoolFlag{Name: "no-viewers", Usage: "never redirect documents to a remote viewer"},
			&cli.BoolFlag{Name: "no-cache", Usage: "disable the offline cache"},
			&cli.StringFlag{Name: "log-level", Usage: "override the configured log level"},
		},
		Before: func(c *cli.Context) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			applyFlags(c, cfg)

			if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
				return fmt.Errorf("logging configuration error: %w", err)
			}
			log.Info(map[string]any{
				"version":   version,
				"env":       cfg.Env,
				"log_level": cfg.Log.Level,
				"private":   cfg.Private,
				"filtering": cfg.Filter.Enabled,
				"cache":     cfg.Cache.Enabled,
				"viewers":   cfg.Viewers.Enabled,
			}, "starting_nimbus")

			app, err = buildApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to build application: %w", err)
			}
			return nil
		},
		After: func(c *cli.Context) error {
			if app == nil {
				return nil
			}
			return app.Close()
		},
		Commands: []*cli.Command{
			{
				Name:      "open",
				Usage:     "navigate to each URL in one tab; with no arguments, read URLs from stdin",
				ArgsUsage: "[url...]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "content", Usage: "print the displayed markup"},
				},
				Action: func(c *cli.Context) error { return app.openAction(c) },
			},
			{
				Name:      "check",
				Usage:     "report whether a request would be blocked",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "document", Usage: "URL of the page making the request"},
					&cli.StringFlag{Name: "type", Value: "other", Usage: "resource type, e.g. script, image, document"},
				},
				Action: func(c *cli.Context) error { return app.checkAction(c) },
			},
			{
				Name:      "classify",
				Usage:     "report how a response would be handled",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mime", Usage: "declared Content-Type of the response"},
					&cli.StringFlag{Name: "current", Usage: "URL of the document on screen"},
					&cli.BoolFlag{Name: "save", Usage: "treat the response as a save request"},
					&cli.BoolFlag{Name: "in-viewer", Usage: "the current document is already a viewer page"},
				},
				Action: func(c *cli.Context) error { return app.classifyAction(c) },
			},
			{
				Name:      "get",
				Usage:     "download a URL into the downloads directory",
				ArgsUsage: "<url>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "file name inside the downloads directory"},
				},
				Action: func(c *cli.Context) error { return app.getAction(c) },
			},
			{
				Name:   "filters",
				Usage:  "print statistics for the loaded filter lists",
				Action: func(c *cli.Context) error { return app.filtersAction(c) },
			},
			{
				Name:   "clear-cache",
				Usage:  "remove every page from the offline cache",
				Action: func(c *cli.Context) error { return app.clearCacheAction(c) },
			},
		},
	}
}

// applyFlags overlays global command line flags onto cfg.
func applyFlags(c *cli.Context, cfg *config.AppConfig) {
	if c.Bool("private") {
		cfg.Private = true
	}
	if c.Bool("no-adblock") {
		cfg.Filter.Enabled = false
	}
	if c.Bool("no-viewers") {
		cfg.Viewers.Enabled = false
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
}
