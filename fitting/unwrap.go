package fitting

import (
	"encoding/json"
	"fmt"
	"strings"
)

// normalize reduces one backend output slot to an image reference (URL
// or data URI). Gradio components wrap results in several shapes, so
// the rules run in a fixed order:
//
//   - array: recurse into the first element
//   - string: data URI or absolute URL verbatim; a leading slash
//     resolves against base; any other string is treated as a file name
//     under base/results/
//   - object: first present of name, url, path, data, image, orig_name
//     (name and orig_name as file names, url verbatim, path against
//     base, data and image recursively)
//
// Anything else is ErrUnprocessableResponse.
func normalize(raw json.RawMessage, base string) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnprocessableResponse, err)
	}
	return normalizeValue(v, base)
}

func normalizeValue(v any, base string) (string, error) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return "", fmt.Errorf("%w: empty array", ErrUnprocessableResponse)
		}
		return normalizeValue(t[0], base)

	case string:
		switch {
		case strings.HasPrefix(t, "data:image/"):
			return t, nil
		case strings.HasPrefix(t, "http://"), strings.HasPrefix(t, "https://"):
			return t, nil
		case strings.HasPrefix(t, "/"):
			return base + t, nil
		case t == "":
			return "", fmt.Errorf("%w: empty string", ErrUnprocessableResponse)
		default:
			return base + "/results/" + t, nil
		}

	case map[string]any:
		if name, ok := t["name"].(string); ok && name != "" {
			return base + "/results/" + name, nil
		}
		if url, ok := t["url"].(string); ok && url != "" {
			return url, nil
		}
		if path, ok := t["path"].(string); ok && path != "" {
			return base + path, nil
		}
		if data, ok := t["data"]; ok && data != nil {
			return normalizeValue(data, base)
		}
		if image, ok := t["image"]; ok && image != nil {
			return normalizeValue(image, base)
		}
		if orig, ok := t["orig_name"].(string); ok && orig != "" {
			return base + "/results/" + orig, nil
		}
		return "", fmt.Errorf("%w: object with no image field", ErrUnprocessableResponse)
	}
	return "", fmt.Errorf("%w: %T", ErrUnprocessableResponse, v)
}
