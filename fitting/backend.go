package fitting

import (
	"context"

	"github.com/ynl8015/otfit/taxonomy"
)

// Backend runs one try-on: user photo plus garment image in, result
// image reference out. Implementations materialize their own inputs so
// a fetch failure surfaces as that backend's failure.
type Backend interface {
	Name() string
	TryOn(ctx context.Context, userImage, garmentImage string, category taxonomy.Category) (string, error)
}
