package fitting

import (
	"errors"
	"fmt"
)

// ErrUnsupportedCategory is returned by TryOn for categories outside
// {Upper, Lower, Dress}.
var ErrUnsupportedCategory = errors.New("fitting: category not supported for try-on")

// ErrUnprocessableResponse is returned when no normalization rule can
// turn a backend response into an image reference.
var ErrUnprocessableResponse = errors.New("fitting: unprocessable backend response")

// ErrImageFetch wraps failures materializing an input image (URL or
// data URI) into bytes.
var ErrImageFetch = errors.New("fitting: image fetch failed")

// BackendError is the terminal error when every backend failed. Err is
// the last backend's failure.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("fitting: backend %s failed: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }
