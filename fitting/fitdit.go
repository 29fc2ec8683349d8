package fitting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/ynl8015/otfit/taxonomy"
)

// FitDiTConfig locates the FitDiT space. Zero values use the hosted
// deployment.
type FitDiTConfig struct {
	// Space is the Gradio space origin.
	Space string
	// ResolveBase is the prefix for relative result paths.
	ResolveBase string
	// HTTP is the shared transport. nil creates a default client.
	HTTP *resty.Client
}

func (c *FitDiTConfig) defaults() {
	if c.Space == "" {
		c.Space = "https://boyuanjiang-fitdit.hf.space"
	}
	if c.ResolveBase == "" {
		c.ResolveBase = "https://huggingface.co/spaces/BoyuanJiang/FitDiT/resolve/main"
	}
	if c.HTTP == nil {
		c.HTTP = resty.New()
	}
}

// FitDiT is the primary try-on backend: a two-step Gradio space that
// first builds a garment mask from the user photo, then runs the
// diffusion pass with that mask.
type FitDiT struct {
	gradio *gradioClient
	fetch  *imageFetcher
	base   string
}

// NewFitDiT creates the backend.
func NewFitDiT(cfg FitDiTConfig) *FitDiT {
	cfg.defaults()
	return &FitDiT{
		gradio: newGradioClient(cfg.Space, cfg.HTTP),
		fetch:  &imageFetcher{http: cfg.HTTP},
		base:   cfg.ResolveBase,
	}
}

// Name implements Backend.
func (f *FitDiT) Name() string { return "fitdit" }

// fitditCategory maps internal categories to the space's garment
// labels. Unknown values fall back to the upper-body label.
func fitditCategory(c taxonomy.Category) string {
	switch c {
	case taxonomy.Upper:
		return "Upper-body"
	case taxonomy.Lower:
		return "Lower-body"
	case taxonomy.Dress:
		return "Dresses"
	}
	return "Upper-body"
}

// TryOn implements Backend.
func (f *FitDiT) TryOn(ctx context.Context, userImage, garmentImage string, category taxonomy.Category) (string, error) {
	userBytes, err := f.fetch.fetch(ctx, userImage)
	if err != nil {
		return "", fmt.Errorf("fitting: fitdit user image: %w", err)
	}
	garmentBytes, err := f.fetch.fetch(ctx, garmentImage)
	if err != nil {
		return "", fmt.Errorf("fitting: fitdit garment image: %w", err)
	}

	user, err := f.gradio.upload(ctx, "user.png", userBytes)
	if err != nil {
		return "", err
	}
	garment, err := f.gradio.upload(ctx, "garment.png", garmentBytes)
	if err != nil {
		return "", err
	}

	// Step 1: mask generation. The mask and pose outputs feed the
	// process call verbatim.
	maskOut, err := f.gradio.call(ctx, "generate_mask", []any{
		user, fitditCategory(category), 0, 0, 0, 0,
	})
	if err != nil {
		return "", err
	}
	if len(maskOut) < 2 {
		return "", fmt.Errorf("%w: generate_mask returned %d outputs", ErrUnprocessableResponse, len(maskOut))
	}
	mask, pose := maskOut[0], maskOut[1]

	// Step 2: the diffusion pass returning a gallery.
	out, err := f.gradio.call(ctx, "process", []any{
		user, garment, json.RawMessage(mask), json.RawMessage(pose),
		20, 2, -1, 1, "768x1024",
	})
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: process returned no outputs", ErrUnprocessableResponse)
	}
	return normalize(out[0], f.base)
}
