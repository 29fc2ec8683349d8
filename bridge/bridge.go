// Package bridge is the coordination hub between otfit surfaces. It
// routes the cross-surface message protocol, drives page picker
// controllers, and exposes the session operations (try-on, cart,
// mood board, reset) over HTTP and MCP.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ynl8015/otfit/closet"
	"github.com/ynl8015/otfit/eventlog"
	"github.com/ynl8015/otfit/fitting"
	"github.com/ynl8015/otfit/malls"
	"github.com/ynl8015/otfit/picker"
	"github.com/ynl8015/otfit/store"
	"github.com/ynl8015/otfit/taxonomy"
)

// Message actions. ADD_TO_CART keeps its historical upper-case spelling;
// surfaces in the wild still send it.
const (
	ActionTryOn             = "tryOn"
	ActionAddToCart         = "ADD_TO_CART"
	ActionToggleSelect      = "toggleSelect"
	ActionSelectionComplete = "selectionComplete"
)

var (
	ErrUnknownAction  = errors.New("bridge: unknown action")
	ErrMissingProduct = errors.New("bridge: action requires a product")
	ErrMissingPhoto   = errors.New("bridge: photo payload is empty")
	ErrNoUserImage    = errors.New("bridge: no user image in session")
	ErrNoGarment      = errors.New("bridge: no garment selected")
)

// Message is the envelope surfaces exchange through the bridge.
type Message struct {
	Action  string         `json:"action"`
	Product *malls.Product `json:"product,omitempty"`
}

// SelectionController is the subset of the page picker the bridge drives.
// *picker.Controller satisfies it.
type SelectionController interface {
	Toggle(ctx context.Context) (picker.State, error)
	Complete(ctx context.Context) error
	State() picker.State
}

// Config carries the bridge's collaborators. Events and Watcher are
// optional; without a Watcher the events stream endpoint is unavailable.
type Config struct {
	Store     store.Store
	Cart      *closet.Cart
	Moodboard *closet.Moodboard
	Fitting   *fitting.Service
	Events    *eventlog.Logger
	Watcher   *store.Watcher
	Logger    *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Bridge routes messages and fans selection commands out to every
// attached page controller.
type Bridge struct {
	cfg Config

	mu          sync.Mutex
	nextID      int
	controllers map[int]SelectionController
}

func New(cfg Config) *Bridge {
	cfg.defaults()
	return &Bridge{cfg: cfg, controllers: make(map[int]SelectionController)}
}

// AttachController registers a page controller so selection messages
// reach it. The returned function detaches it again.
func (b *Bridge) AttachController(c SelectionController) (detach func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.controllers[id] = c
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.controllers, id)
		b.mu.Unlock()
	}
}

func (b *Bridge) snapshot() []SelectionController {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]SelectionController, 0, len(b.controllers))
	for _, c := range b.controllers {
		out = append(out, c)
	}
	return out
}

// completeSelection forces every attached controller back to idle.
// Failures on individual tabs are logged, not propagated: a closed tab
// must not block the others.
func (b *Bridge) completeSelection(ctx context.Context) {
	for _, c := range b.snapshot() {
		if err := c.Complete(ctx); err != nil {
			b.cfg.Logger.Warn("bridge: selection complete", "error", err)
		}
	}
}

// Dispatch routes one message. tryOn and ADD_TO_CART both store the
// product as the session selection and then broadcast selectionComplete,
// so the page that produced the product leaves selection mode. Neither
// touches the cart; carting goes through the cart endpoints.
func (b *Bridge) Dispatch(ctx context.Context, msg Message) (any, error) {
	switch msg.Action {
	case ActionTryOn, ActionAddToCart:
		if msg.Product == nil || msg.Product.Empty() {
			return nil, ErrMissingProduct
		}
		if err := b.cfg.Store.Set(ctx, map[string]any{store.KeySelectedProduct: msg.Product}); err != nil {
			return nil, fmt.Errorf("bridge: store selection: %w", err)
		}
		b.completeSelection(ctx)
		return map[string]any{"selected": msg.Product}, nil

	case ActionToggleSelect:
		states := make([]string, 0, 1)
		for _, c := range b.snapshot() {
			st, err := c.Toggle(ctx)
			if err != nil {
				return nil, fmt.Errorf("bridge: toggle: %w", err)
			}
			states = append(states, st.String())
		}
		return map[string]any{"states": states}, nil

	case ActionSelectionComplete:
		b.completeSelection(ctx)
		return map[string]any{"completed": true}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, msg.Action)
	}
}

// TryOnRequest names explicit try-on inputs. Absent fields fall back to
// session state: the uploaded user photo and the selected product.
type TryOnRequest struct {
	UserImage    string `json:"userImage,omitempty"`
	GarmentImage string `json:"garmentImage,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Garment is the session garment record published under selectedGarment.
// Surfaces consume both fields, so it is always the full pair.
type Garment struct {
	Image    string            `json:"image"`
	Category taxonomy.Category `json:"category"`
}

// TryOn resolves the request against session state and runs the fitting
// service. The resolved garment is recorded as the session garment before
// the backends run, so other surfaces can correlate the eventual result.
func (b *Bridge) TryOn(ctx context.Context, req TryOnRequest) (fitting.Result, error) {
	user := req.UserImage
	if user == "" {
		if _, err := store.GetJSON(ctx, b.cfg.Store, store.KeyTempUserImage, &user); err != nil {
			return fitting.Result{}, err
		}
	}
	if user == "" {
		return fitting.Result{}, ErrNoUserImage
	}

	garment := req.GarmentImage
	category := taxonomy.Parse(req.Category)
	if garment == "" {
		var p malls.Product
		ok, err := store.GetJSON(ctx, b.cfg.Store, store.KeySelectedProduct, &p)
		if err != nil {
			return fitting.Result{}, err
		}
		if !ok || p.Image == "" {
			return fitting.Result{}, ErrNoGarment
		}
		garment = p.Image
		if req.Category == "" {
			category = p.Category
		}
	}

	if err := b.cfg.Store.Set(ctx, map[string]any{store.KeySelectedGarment: Garment{Image: garment, Category: category}}); err != nil {
		return fitting.Result{}, fmt.Errorf("bridge: store garment: %w", err)
	}
	return b.cfg.Fitting.TryOn(ctx, user, garment, category)
}

// SetPhoto stores the uploaded user photo (a data URI or URL) as the
// session photo. Uploading surfaces call this once per chosen file.
func (b *Bridge) SetPhoto(ctx context.Context, image string) error {
	if image == "" {
		return ErrMissingPhoto
	}
	if err := b.cfg.Store.Set(ctx, map[string]any{store.KeyTempUserImage: image}); err != nil {
		return fmt.Errorf("bridge: store photo: %w", err)
	}
	return nil
}

// Session is the read view of the per-session state: whether a photo is
// uploaded, the current selection and garment, and the cached result for
// that garment if a try-on already ran.
type Session struct {
	HasPhoto bool           `json:"hasPhoto"`
	Selected *malls.Product `json:"selected,omitempty"`
	Garment  *Garment       `json:"garment,omitempty"`
	Result   string         `json:"result,omitempty"`
}

func (b *Bridge) Session(ctx context.Context) (Session, error) {
	var sess Session

	var photo string
	if _, err := store.GetJSON(ctx, b.cfg.Store, store.KeyTempUserImage, &photo); err != nil {
		return Session{}, err
	}
	sess.HasPhoto = photo != ""

	var p malls.Product
	if ok, err := store.GetJSON(ctx, b.cfg.Store, store.KeySelectedProduct, &p); err != nil {
		return Session{}, err
	} else if ok {
		sess.Selected = &p
	}

	var g Garment
	if ok, err := store.GetJSON(ctx, b.cfg.Store, store.KeySelectedGarment, &g); err != nil {
		return Session{}, err
	} else if ok && g.Image != "" {
		sess.Garment = &g
		result, found, err := b.cfg.Fitting.CachedResult(ctx, g.Image)
		if err != nil {
			return Session{}, err
		}
		if found {
			sess.Result = result
		}
	}
	return sess, nil
}

// Reset clears the per-session keys. Cart and mood board survive.
func (b *Bridge) Reset(ctx context.Context) error {
	if err := store.Reset(ctx, b.cfg.Store); err != nil {
		return err
	}
	if b.cfg.Events != nil {
		b.cfg.Events.Log(ctx, eventlog.Event{Kind: eventlog.KindSessionReset, Success: true})
	}
	return nil
}
