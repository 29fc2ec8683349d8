// Package fitting orchestrates virtual try-on across a primary and a
// secondary backend. The primary (FitDiT, higher quality and slower)
// is metered by a persisted call counter; once the quota is spent, or
// whenever the primary fails, the secondary (Leffa) takes over with
// the same inputs.
package fitting

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ynl8015/otfit/eventlog"
	"github.com/ynl8015/otfit/store"
	"github.com/ynl8015/otfit/taxonomy"
)

// QuotaLimit is the number of primary-backend calls available. At or
// above it the primary is skipped entirely.
const QuotaLimit = 50

// Config wires the orchestrator.
type Config struct {
	Store     store.Store
	Primary   Backend
	Secondary Backend
	// Events is optional; nil disables event recording.
	Events *eventlog.Logger
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service runs try-ons and maintains the quota counter and the result
// cache in the shared store.
type Service struct {
	cfg Config
}

// New creates the orchestrator.
func New(cfg Config) *Service {
	cfg.defaults()
	return &Service{cfg: cfg}
}

// Result is a finished try-on.
type Result struct {
	// Image is the result image reference (URL or data URI).
	Image string `json:"image"`
	// Backend names the backend that produced it.
	Backend string `json:"backend"`
	// QuotaExceeded is set when the primary was skipped because the
	// quota is spent. A notice for the user, not an error.
	QuotaExceeded bool `json:"quotaExceeded,omitempty"`
}

// TryOn runs one try-on for the garment image against the user photo.
// Only Upper, Lower and Dress garments are supported. A successful
// result is cached in the store under the garment image.
func (s *Service) TryOn(ctx context.Context, userImage, garmentImage string, category taxonomy.Category) (Result, error) {
	if !taxonomy.Fittable(category) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedCategory, category)
	}

	log := s.cfg.Logger
	s.event(ctx, eventlog.Event{Kind: eventlog.KindTryOnStarted, Success: true})

	count, err := store.GetInt(ctx, s.cfg.Store, store.KeyFitditCallCount)
	if err != nil {
		return Result{}, fmt.Errorf("fitting: read quota: %w", err)
	}

	res := Result{}
	if count < QuotaLimit {
		image, err := s.cfg.Primary.TryOn(ctx, userImage, garmentImage, category)
		if err == nil {
			// Only a successful primary call spends quota.
			if err := s.cfg.Store.Set(ctx, map[string]any{store.KeyFitditCallCount: count + 1}); err != nil {
				return Result{}, fmt.Errorf("fitting: bump quota: %w", err)
			}
			res.Image, res.Backend = image, s.cfg.Primary.Name()
			return res, s.finish(ctx, garmentImage, res)
		}
		log.Warn("fitting: primary failed, falling back",
			"backend", s.cfg.Primary.Name(), "error", err)
	} else {
		log.Info("fitting: quota spent, using secondary", "count", count)
		res.QuotaExceeded = true
	}

	image, err := s.cfg.Secondary.TryOn(ctx, userImage, garmentImage, category)
	if err != nil {
		s.event(ctx, eventlog.Event{
			Kind:    eventlog.KindTryOnFailed,
			Backend: s.cfg.Secondary.Name(),
			Detail:  fmt.Sprintf(`{"error":%q}`, err.Error()),
		})
		return Result{}, &BackendError{Backend: s.cfg.Secondary.Name(), Err: err}
	}
	res.Image, res.Backend = image, s.cfg.Secondary.Name()
	return res, s.finish(ctx, garmentImage, res)
}

// finish caches the result under the garment image. Last write wins
// when two contexts fit the same garment concurrently.
func (s *Service) finish(ctx context.Context, garmentImage string, res Result) error {
	results := map[string]string{}
	if _, err := store.GetJSON(ctx, s.cfg.Store, store.KeyFittingResults, &results); err != nil {
		return fmt.Errorf("fitting: read results: %w", err)
	}
	results[garmentImage] = res.Image
	if err := s.cfg.Store.Set(ctx, map[string]any{store.KeyFittingResults: results}); err != nil {
		return fmt.Errorf("fitting: cache result: %w", err)
	}
	s.event(ctx, eventlog.Event{
		Kind:    eventlog.KindTryOnFinished,
		Backend: res.Backend,
		Success: true,
	})
	return nil
}

// CachedResult returns the cached result image for a garment, if any.
func (s *Service) CachedResult(ctx context.Context, garmentImage string) (string, bool, error) {
	results := map[string]string{}
	if _, err := store.GetJSON(ctx, s.cfg.Store, store.KeyFittingResults, &results); err != nil {
		return "", false, fmt.Errorf("fitting: read results: %w", err)
	}
	image, ok := results[garmentImage]
	return image, ok, nil
}

// QuotaRemaining reports how many primary calls are left.
func (s *Service) QuotaRemaining(ctx context.Context) (int, error) {
	count, err := store.GetInt(ctx, s.cfg.Store, store.KeyFitditCallCount)
	if err != nil {
		return 0, fmt.Errorf("fitting: read quota: %w", err)
	}
	if count >= QuotaLimit {
		return 0, nil
	}
	return QuotaLimit - count, nil
}

func (s *Service) event(ctx context.Context, e eventlog.Event) {
	if s.cfg.Events != nil {
		s.cfg.Events.Log(ctx, e)
	}
}
