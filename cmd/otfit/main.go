// Command otfit runs the try-on session daemon: the shared state store,
// the try-on orchestrator, and the bridge surfaces (HTTP, MCP over QUIC).
//
// Usage:
//
//	otfit -config otfit.yaml                 # run with config file
//	otfit -db otfit.db                       # run with defaults
//	otfit -db otfit.db -attach <product-url> # open a page in selection mode
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ynl8015/otfit/bridge"
	"github.com/ynl8015/otfit/closet"
	"github.com/ynl8015/otfit/eventlog"
	"github.com/ynl8015/otfit/fitting"
	"github.com/ynl8015/otfit/malls"
	"github.com/ynl8015/otfit/mcpquic"
	"github.com/ynl8015/otfit/picker"
	"github.com/ynl8015/otfit/store"
)

func main() {
	configPath := flag.String("config", "", "path to otfit.yaml config file")
	dbPath := flag.String("db", "", "path to SQLite database")
	listen := flag.String("listen", "", "HTTP listen address")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	mcpQUICAddr := flag.String("mcp-quic", "", "MCP-over-QUIC listen address (disabled when empty)")
	attachURL := flag.String("attach", "", "open this page in a browser in selection mode")
	flag.Parse()

	cfg, err := resolveConfig(*configPath, *dbPath, *listen, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, *mcpQUICAddr, *attachURL); err != nil {
		logger.Error("otfit: fatal", "error", err)
		os.Exit(1)
	}
}

func resolveConfig(configPath, dbPath, listen, logLevel string) (*bridge.FileConfig, error) {
	cfg := bridge.DefaultFileConfig()
	if configPath != "" {
		loaded, err := bridge.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	// Flags override the file.
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *bridge.FileConfig, mcpQUICAddr, attachURL string) error {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := eventlog.Init(st.Conn()); err != nil {
		return fmt.Errorf("init eventlog: %w", err)
	}
	events := eventlog.New(st.Conn())

	watcher := store.NewWatcher(st, store.WatchOptions{
		Interval: cfg.Watch.Interval,
		Debounce: cfg.Watch.Debounce,
		Logger:   logger,
	})
	go watcher.Run(ctx)

	fitter := fitting.New(fitting.Config{
		Store: st,
		Primary: fitting.NewFitDiT(fitting.FitDiTConfig{
			Space:       cfg.FitDiT.Space,
			ResolveBase: cfg.FitDiT.ResolveBase,
		}),
		Secondary: fitting.NewLeffa(fitting.LeffaConfig{
			Space:       cfg.Leffa.Space,
			ResolveBase: cfg.Leffa.ResolveBase,
		}),
		Events: events,
		Logger: logger,
	})

	br := bridge.New(bridge.Config{
		Store:     st,
		Cart:      closet.NewCart(st),
		Moodboard: closet.NewMoodboard(st),
		Fitting:   fitter,
		Events:    events,
		Watcher:   watcher,
		Logger:    logger,
	})

	if mcpQUICAddr != "" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "otfit",
			Version: "1.0.0",
		}, nil)
		br.RegisterMCP(mcpSrv)

		tlsCfg, err := mcpquic.SelfSignedTLSConfig()
		if err != nil {
			return fmt.Errorf("mcp quic tls: %w", err)
		}
		ql, err := mcpquic.NewListener(mcpQUICAddr, tlsCfg, mcpSrv, logger)
		if err != nil {
			return fmt.Errorf("mcp quic listen: %w", err)
		}
		go func() {
			if err := ql.Serve(ctx); err != nil && ctx.Err() == nil {
				logger.Error("otfit: mcp quic", "error", err)
			}
		}()
		defer ql.Close()
	}

	if attachURL != "" {
		detach, err := attachPage(ctx, logger, cfg, st, events, br, attachURL)
		if err != nil {
			return fmt.Errorf("attach %s: %w", attachURL, err)
		}
		defer detach()
	}

	srv := bridge.NewServer(br, cfg.Listen)
	return srv.Run(ctx)
}

// attachPage opens the product page in a controlled browser and wires its
// selection controller into the bridge. Picks reach the store like any
// other surface's; the bridge then broadcasts completion back.
func attachPage(ctx context.Context, logger *slog.Logger, cfg *bridge.FileConfig, st store.Store, events *eventlog.Logger, br *bridge.Bridge, pageURL string) (func(), error) {
	b := picker.NewBrowser(picker.BrowserConfig{
		RemoteURL: cfg.Browser.RemoteURL,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	rb, err := b.Start()
	if err != nil {
		return nil, err
	}

	tab, err := picker.OpenTab(ctx, rb, pageURL, logger)
	if err != nil {
		b.Close()
		return nil, err
	}

	ctl := picker.NewController(picker.Config{
		Page:   tab,
		Store:  st,
		Events: events,
		OnSelected: func(p malls.Product) {
			if _, err := br.Dispatch(ctx, bridge.Message{Action: bridge.ActionSelectionComplete}); err != nil {
				logger.Warn("otfit: selection broadcast", "error", err)
			}
		},
		Logger: logger,
	})
	detachCtl := br.AttachController(ctl)
	go tab.Listen(ctx, ctl)
	logger.Info("otfit: page attached", "url", pageURL)

	return func() {
		detachCtl()
		if err := tab.Close(); err != nil {
			logger.Warn("otfit: close tab", "error", err)
		}
		if err := b.Close(); err != nil {
			logger.Warn("otfit: close browser", "error", err)
		}
	}, nil
}
