package analysis

import (
	"fmt"
	"slices"

	"github.com/teemow/inboxsense/internal/apperr"
)

// Classifications are the categories the model is asked to choose from.
var Classifications = []string{
	"Support",
	"Sales",
	"Invoice",
	"Spam",
	"Personal",
	"Project Update",
	"Marketing",
	"Other",
}

// Sentiments are the sentiments the model is asked to choose from.
var Sentiments = []string{"Positive", "Negative", "Neutral"}

// ErrUnknownLabel is returned in strict mode for a label outside the allowed sets.
var ErrUnknownLabel = fmt.Errorf("%w: label outside the allowed set", apperr.ErrResponseFormat)

// Result is the analysis of one email as returned by the model.
type Result struct {
	Classification string `json:"classification"`
	Sentiment      string `json:"sentiment"`
}

// CheckLabels reports an error wrapping ErrUnknownLabel when either field of
// r is not one of the allowed values.
func CheckLabels(r *Result) error {
	if r == nil {
		return fmt.Errorf("%w: no result", ErrUnknownLabel)
	}
	if !slices.Contains(Classifications, r.Classification) {
		return fmt.Errorf("%w: classification %q", ErrUnknownLabel, r.Classification)
	}
	if !slices.Contains(Sentiments, r.Sentiment) {
		return fmt.Errorf("%w: sentiment %q", ErrUnknownLabel, r.Sentiment)
	}
	return nil
}
