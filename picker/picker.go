package picker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/ynl8015/otfit/eventlog"
	"github.com/ynl8015/otfit/malls"
	"github.com/ynl8015/otfit/store"
)

// State is the controller state.
type State int

const (
	// Idle: pointer events pass through untouched.
	Idle State = iota
	// Selecting: the overlay is up and pointer events drive the
	// product walk.
	Selecting
)

func (s State) String() string {
	if s == Selecting {
		return "selecting"
	}
	return "idle"
}

// Page is the surface the controller drives. The rod implementation
// talks to a live tab; tests substitute a fake.
type Page interface {
	// Host is the page host used for adapter selection.
	Host() string
	// URL is the full page URL stored on the product record.
	URL() string
	// HTML serializes the current document.
	HTML(ctx context.Context) (string, error)
	// ShowOverlay and RemoveOverlay bracket the Selecting state.
	ShowOverlay(ctx context.Context) error
	RemoveOverlay(ctx context.Context) error
	// Highlight outlines the element at path; Unhighlight clears it.
	Highlight(ctx context.Context, path []int) error
	Unhighlight(ctx context.Context, path []int) error
	// Confirm shows the transient selection confirmation on the
	// element at path.
	Confirm(ctx context.Context, path []int, message string) error
}

// confirmMessage is shown on the product card after a successful pick.
const confirmMessage = "✓ 상품이 선택되었습니다"

// Config wires a Controller.
type Config struct {
	Page  Page
	Store store.Store
	// Events is optional; nil disables event recording.
	Events *eventlog.Logger
	// OnSelected fires after a successful pick. The bridge uses it to
	// broadcast completion, which in turn forces every page back to
	// Idle; the click itself never leaves Selecting.
	OnSelected func(malls.Product)
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller is the per-page selection state machine.
type Controller struct {
	cfg Config

	mu          sync.Mutex
	state       State
	highlighted []int
}

// NewController creates an Idle controller.
func NewController(cfg Config) *Controller {
	cfg.defaults()
	return &Controller{cfg: cfg}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Toggle flips between Idle and Selecting and returns the new state.
// Entering Selecting installs the overlay; leaving removes it.
func (c *Controller) Toggle(ctx context.Context) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Idle {
		if err := c.cfg.Page.ShowOverlay(ctx); err != nil {
			return Idle, fmt.Errorf("picker: show overlay: %w", err)
		}
		c.state = Selecting
	} else {
		if err := c.leaveLocked(ctx); err != nil {
			return Selecting, err
		}
	}
	c.cfg.Logger.Info("picker: mode toggled", "state", c.state.String(), "host", c.cfg.Page.Host())
	return c.state, nil
}

// Complete forces the controller back to Idle. Driven externally by
// the completion broadcast so that every open page leaves selection
// mode together.
func (c *Controller) Complete(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Idle {
		return nil
	}
	return c.leaveLocked(ctx)
}

func (c *Controller) leaveLocked(ctx context.Context) error {
	if c.highlighted != nil {
		if err := c.cfg.Page.Unhighlight(ctx, c.highlighted); err != nil {
			c.cfg.Logger.Warn("picker: unhighlight on leave", "error", err)
		}
		c.highlighted = nil
	}
	if err := c.cfg.Page.RemoveOverlay(ctx); err != nil {
		return fmt.Errorf("picker: remove overlay: %w", err)
	}
	c.state = Idle
	return nil
}

// findAt parses the page and runs the product walk from the element at
// path. Returns the document, the found node and its path.
func (c *Controller) findAt(ctx context.Context, path []int) (*html.Node, *html.Node, []int, error) {
	markup, err := c.cfg.Page.HTML(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("picker: page html: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("picker: parse page: %w", err)
	}
	target := NodeAtPath(doc, path)
	if target == nil {
		return doc, nil, nil, nil
	}
	found := FindProduct(target)
	if found == nil {
		return doc, nil, nil, nil
	}
	return doc, found, PathOf(found), nil
}

// PointerEnter highlights the product card under the pointer, if any.
func (c *Controller) PointerEnter(ctx context.Context, path []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Selecting {
		return nil
	}
	_, found, foundPath, err := c.findAt(ctx, path)
	if err != nil || found == nil {
		return err
	}
	if err := c.cfg.Page.Highlight(ctx, foundPath); err != nil {
		return fmt.Errorf("picker: highlight: %w", err)
	}
	c.highlighted = foundPath
	return nil
}

// PointerLeave clears the highlight for the card under the pointer.
func (c *Controller) PointerLeave(ctx context.Context, path []int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Selecting {
		return nil
	}
	_, found, foundPath, err := c.findAt(ctx, path)
	if err != nil || found == nil {
		return err
	}
	if err := c.cfg.Page.Unhighlight(ctx, foundPath); err != nil {
		return fmt.Errorf("picker: unhighlight: %w", err)
	}
	c.highlighted = nil
	return nil
}

// Click handles a click at path. With no product card in the ancestor
// chain it is a no-op and picked is false (the page lets the click
// through). On a card it extracts the product, publishes it as the
// selected product, shows the confirmation and fires OnSelected. The
// state stays Selecting until the external completion arrives.
func (c *Controller) Click(ctx context.Context, path []int) (product malls.Product, picked bool, err error) {
	product, picked, err = c.clickLocked(ctx, path)
	if err != nil || !picked {
		return product, picked, err
	}
	// The completion broadcast re-enters this controller through
	// Complete, so the callback must run with the lock released.
	if c.cfg.OnSelected != nil {
		c.cfg.OnSelected(product)
	}
	return product, true, nil
}

func (c *Controller) clickLocked(ctx context.Context, path []int) (product malls.Product, picked bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Selecting {
		return malls.Product{}, false, nil
	}

	doc, found, foundPath, err := c.findAt(ctx, path)
	if err != nil {
		return malls.Product{}, false, err
	}
	if found == nil {
		return malls.Product{}, false, nil
	}

	product, err = malls.Extract(c.cfg.Page.Host(), found, doc, c.cfg.Page.URL())
	if err != nil {
		return malls.Product{}, false, fmt.Errorf("picker: extract: %w", err)
	}

	if err := c.cfg.Store.Set(ctx, map[string]any{store.KeySelectedProduct: product}); err != nil {
		return malls.Product{}, false, fmt.Errorf("picker: publish selection: %w", err)
	}
	if c.cfg.Events != nil {
		c.cfg.Events.Log(ctx, eventlog.Event{
			Kind:    eventlog.KindProductPicked,
			Mall:    string(product.Mall),
			Success: true,
		})
	}
	if err := c.cfg.Page.Confirm(ctx, foundPath, confirmMessage); err != nil {
		c.cfg.Logger.Warn("picker: confirmation failed", "error", err)
	}
	c.cfg.Logger.Info("picker: product selected",
		"mall", product.Mall, "category", product.Category, "name", product.Name)
	return product, true, nil
}
