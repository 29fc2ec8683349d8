package fitting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// gradioClient speaks the Gradio HTTP call protocol against one hosted
// space: upload input files, POST the call, then read the result from
// the event stream.
type gradioClient struct {
	base string // space origin, e.g. https://boyuanjiang-fitdit.hf.space
	http *resty.Client
}

func newGradioClient(base string, http *resty.Client) *gradioClient {
	return &gradioClient{base: strings.TrimRight(base, "/"), http: http}
}

// fileData is the wire shape Gradio expects for uploaded file inputs.
type fileData struct {
	Path string            `json:"path"`
	Meta map[string]string `json:"meta"`
}

// upload sends raw image bytes to the space and returns the file
// reference to pass as an input value.
func (c *gradioClient) upload(ctx context.Context, filename string, data []byte) (fileData, error) {
	var paths []string
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("files", filename, bytes.NewReader(data)).
		SetResult(&paths).
		Post(c.base + "/gradio_api/upload")
	if err != nil {
		return fileData{}, fmt.Errorf("fitting: upload: %w", err)
	}
	if resp.IsError() {
		return fileData{}, fmt.Errorf("fitting: upload: %s: %s", resp.Status(), resp.String())
	}
	if len(paths) == 0 {
		return fileData{}, fmt.Errorf("fitting: upload: empty response")
	}
	return fileData{Path: paths[0], Meta: map[string]string{"_type": "gradio.FileData"}}, nil
}

// call invokes one named API with positional inputs and returns the
// output slots as raw JSON, so callers can feed one call's outputs
// into the next without interpreting them.
func (c *gradioClient) call(ctx context.Context, api string, data []any) ([]json.RawMessage, error) {
	var started struct {
		EventID string `json:"event_id"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{"data": data}).
		SetResult(&started).
		Post(c.base + "/gradio_api/call/" + api)
	if err != nil {
		return nil, fmt.Errorf("fitting: call %s: %w", api, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fitting: call %s: %s: %s", api, resp.Status(), resp.String())
	}
	if started.EventID == "" {
		return nil, fmt.Errorf("fitting: call %s: no event id in %s", api, resp.String())
	}

	stream, err := c.http.R().
		SetContext(ctx).
		Get(c.base + "/gradio_api/call/" + api + "/" + started.EventID)
	if err != nil {
		return nil, fmt.Errorf("fitting: call %s result: %w", api, err)
	}
	if stream.IsError() {
		return nil, fmt.Errorf("fitting: call %s result: %s", api, stream.Status())
	}
	return parseEventStream(api, stream.String())
}

// parseEventStream extracts the completed payload from the SSE body the
// call endpoint returns once the job finishes.
func parseEventStream(api, body string) ([]json.RawMessage, error) {
	event := ""
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			switch event {
			case "error":
				return nil, fmt.Errorf("fitting: %s reported error: %s", api, payload)
			case "complete":
				var out []json.RawMessage
				if err := json.Unmarshal([]byte(payload), &out); err != nil {
					return nil, fmt.Errorf("fitting: %s result payload: %w", api, err)
				}
				return out, nil
			}
		}
	}
	return nil, fmt.Errorf("fitting: %s stream ended without completion", api)
}
