package picker

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

//go:embed select.js
var selectJS string

const bindingName = "__otfit_binding"

// Tab is the rod-backed Page: one retailer tab with the selection
// payload injected.
type Tab struct {
	page *rod.Page
	host string
	url  string
	log  *slog.Logger
}

// OpenTab opens a stealth tab on pageURL, waits for the page to load
// and injects the selection payload.
func OpenTab(ctx context.Context, browser *rod.Browser, pageURL string, log *slog.Logger) (*Tab, error) {
	if log == nil {
		log = slog.Default()
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("picker: create tab: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("picker: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("picker: wait load timeout", "url", pageURL, "error", err)
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("picker: parse url %s: %w", pageURL, err)
	}

	t := &Tab{page: page, host: u.Host, url: pageURL, log: log}
	if err := t.inject(ctx); err != nil {
		page.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tab) inject(ctx context.Context) error {
	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(t.page); err != nil {
		t.log.Warn("picker: add binding failed (may already exist)", "error", err)
	}
	if _, err := t.page.Context(ctx).Eval(selectJS); err != nil {
		return fmt.Errorf("picker: inject payload: %w", err)
	}
	t.log.Debug("picker: payload injected", "url", t.url)
	return nil
}

// Listen dispatches binding events from the page to the controller.
// It blocks until ctx is cancelled; run it on its own goroutine.
func (t *Tab) Listen(ctx context.Context, ctl *Controller) {
	t.page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name != bindingName {
			return
		}
		var ev struct {
			Kind string `json:"kind"`
			Path []int  `json:"path"`
		}
		if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
			t.log.Warn("picker: parse binding payload", "error", err)
			return
		}

		var err error
		switch ev.Kind {
		case "enter":
			err = ctl.PointerEnter(ctx, ev.Path)
		case "leave":
			err = ctl.PointerLeave(ctx, ev.Path)
		case "click":
			_, _, err = ctl.Click(ctx, ev.Path)
		}
		if err != nil {
			t.log.Warn("picker: event handling failed", "kind", ev.Kind, "error", err)
		}
	})()
}

// Close closes the tab.
func (t *Tab) Close() error { return t.page.Close() }

// Host implements Page.
func (t *Tab) Host() string { return t.host }

// URL implements Page.
func (t *Tab) URL() string { return t.url }

// HTML implements Page.
func (t *Tab) HTML(ctx context.Context) (string, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("picker: serialize page: %w", err)
	}
	return res.Value.Str(), nil
}

// ShowOverlay implements Page.
func (t *Tab) ShowOverlay(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`() => window.__otfit_show_overlay()`)
	return err
}

// RemoveOverlay implements Page.
func (t *Tab) RemoveOverlay(ctx context.Context) error {
	_, err := t.page.Context(ctx).Eval(`() => window.__otfit_remove_overlay()`)
	return err
}

// Highlight implements Page.
func (t *Tab) Highlight(ctx context.Context, path []int) error {
	_, err := t.page.Context(ctx).Eval(`(path) => window.__otfit_highlight(path)`, path)
	return err
}

// Unhighlight implements Page.
func (t *Tab) Unhighlight(ctx context.Context, path []int) error {
	_, err := t.page.Context(ctx).Eval(`(path) => window.__otfit_unhighlight(path)`, path)
	return err
}

// Confirm implements Page.
func (t *Tab) Confirm(ctx context.Context, path []int, message string) error {
	_, err := t.page.Context(ctx).Eval(`(path, msg) => window.__otfit_confirm(path, msg)`, path, message)
	return err
}
