package analysis

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/teemow/inboxsense/internal/apperr"
)

const fence = "```"

// Normalize removes a Markdown code fence around model output. A leading
// "```json" or bare "```", a trailing "```" and surrounding whitespace are
// stripped; anything else is left alone.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	if rest, ok := strings.CutPrefix(s, fence+"json"); ok {
		s = rest
	} else if rest, ok := strings.CutPrefix(s, fence); ok {
		s = rest
	}
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

// Parse normalizes text and decodes it into a Result. Only the exact keys
// "classification" and "sentiment" are read. Undecodable text fails with
// apperr.ErrMalformedResponse, a result missing either key with
// apperr.ErrIncompleteResponse. Unknown keys are ignored and label values are
// returned as given.
func Parse(text string) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(Normalize(text)), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrMalformedResponse, err)
	}

	var (
		r       Result
		missing []string
	)
	for _, f := range []struct {
		key string
		dst *string
	}{
		{key: "classification", dst: &r.Classification},
		{key: "sentiment", dst: &r.Sentiment},
	} {
		raw, ok := fields[f.key]
		if ok {
			if err := json.Unmarshal(raw, f.dst); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", apperr.ErrMalformedResponse, f.key, err)
			}
		}
		if *f.dst == "" {
			missing = append(missing, f.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", apperr.ErrIncompleteResponse, strings.Join(missing, ", "))
	}
	return &r, nil
}
