package fitting

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// imageFetcher materializes an image reference (URL or data URI) into
// bytes suitable for upload.
type imageFetcher struct {
	http *resty.Client
}

func (f *imageFetcher) fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURI(ref)
	}
	resp, err := f.http.R().SetContext(ctx).Get(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageFetch, ref, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s: %s", ErrImageFetch, ref, resp.Status())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: %s: empty body", ErrImageFetch, ref)
	}
	return body, nil
}

func decodeDataURI(uri string) ([]byte, error) {
	_, rest, ok := strings.Cut(uri, ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data URI", ErrImageFetch)
	}
	data, err := base64.StdEncoding.DecodeString(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: data URI decode: %v", ErrImageFetch, err)
	}
	return data, nil
}
