package picker

import (
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserConfig configures the browser used for selection mode.
type BrowserConfig struct {
	// RemoteURL is the WebSocket URL of a running Chrome instance.
	// Empty launches a local one.
	RemoteURL string
	// Headless controls the local launch mode. Selection mode is
	// usually headful so the user can see the page.
	Headless bool
	Logger   *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns the Chrome connection for the selection surface.
type Browser struct {
	cfg     BrowserConfig
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewBrowser creates an unconnected Browser. Call Start.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Start launches or connects to Chrome.
func (b *Browser) Start() (*rod.Browser, error) {
	log := b.cfg.Logger

	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(b.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("picker: launch chrome: %w", err)
		}
		b.lnch = l
		wsURL = u
		log.Info("picker: launched local chrome", "url", wsURL, "headless", b.cfg.Headless)
	} else {
		log.Info("picker: connecting to remote chrome", "url", wsURL)
	}

	br := rod.New().ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("picker: connect: %w", err)
	}
	b.browser = br
	return br, nil
}

// Close shuts the connection down and kills a locally launched Chrome.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
	}
	return err
}
