package fitting

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/ynl8015/otfit/taxonomy"
)

// LeffaConfig locates the Leffa space. Zero values use the hosted
// deployment.
type LeffaConfig struct {
	Space       string
	ResolveBase string
	HTTP        *resty.Client
}

func (c *LeffaConfig) defaults() {
	if c.Space == "" {
		c.Space = "https://franciszzj-leffa.hf.space"
	}
	if c.ResolveBase == "" {
		c.ResolveBase = "https://huggingface.co/spaces/franciszzj/Leffa/resolve/main"
	}
	if c.HTTP == nil {
		c.HTTP = resty.New()
	}
}

// Leffa is the secondary try-on backend: a single-call Gradio space
// used when the primary is unavailable or over quota.
type Leffa struct {
	gradio *gradioClient
	fetch  *imageFetcher
	base   string
}

// NewLeffa creates the backend.
func NewLeffa(cfg LeffaConfig) *Leffa {
	cfg.defaults()
	return &Leffa{
		gradio: newGradioClient(cfg.Space, cfg.HTTP),
		fetch:  &imageFetcher{http: cfg.HTTP},
		base:   cfg.ResolveBase,
	}
}

// Name implements Backend.
func (l *Leffa) Name() string { return "leffa" }

// leffaGarmentType maps internal categories to the space's garment
// type strings. Unknown values fall back to upper_body.
func leffaGarmentType(c taxonomy.Category) string {
	switch c {
	case taxonomy.Upper:
		return "upper_body"
	case taxonomy.Lower:
		return "lower_body"
	case taxonomy.Dress:
		return "dresses"
	}
	return "upper_body"
}

// TryOn implements Backend.
func (l *Leffa) TryOn(ctx context.Context, userImage, garmentImage string, category taxonomy.Category) (string, error) {
	userBytes, err := l.fetch.fetch(ctx, userImage)
	if err != nil {
		return "", fmt.Errorf("fitting: leffa user image: %w", err)
	}
	garmentBytes, err := l.fetch.fetch(ctx, garmentImage)
	if err != nil {
		return "", fmt.Errorf("fitting: leffa garment image: %w", err)
	}

	user, err := l.gradio.upload(ctx, "user.png", userBytes)
	if err != nil {
		return "", err
	}
	garment, err := l.gradio.upload(ctx, "garment.png", garmentBytes)
	if err != nil {
		return "", err
	}

	out, err := l.gradio.call(ctx, "leffa_predict_vt", []any{
		user, garment,
		false, // ref_acceleration
		30,    // step
		2.5,   // scale
		42,    // seed
		"viton_hd",
		leffaGarmentType(category),
		false, // vt_repaint
	})
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%w: leffa_predict_vt returned no outputs", ErrUnprocessableResponse)
	}
	return normalize(out[0], l.base)
}
