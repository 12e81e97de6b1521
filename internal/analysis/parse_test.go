package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxsense/internal/apperr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `{"a":1}`, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence with trailing newline", in: "```json\n{\"a\":1}\n```\n", want: `{"a":1}`},
		{name: "surrounding whitespace", in: "  \n{\"a\":1}\n\t", want: `{"a":1}`},
		{name: "only leading fence", in: "```json {\"a\":1}", want: `{"a":1}`},
		{name: "only trailing fence", in: "{\"a\":1}```", want: `{"a":1}`},
		{name: "prose untouched", in: "I think it is sales.", want: "I think it is sales."},
		{name: "empty", in: "", want: ""},
		{name: "fence inside value kept", in: "{\"a\":\"```\"}", want: "{\"a\":\"```\"}"},
		{name: "nested braces", in: `{"a":{"b":1}}`, want: `{"a":{"b":1}}`},
		{name: "fenced nested braces", in: "```json\n{\"a\":{\"b\":1}}\n```", want: `{"a":{"b":1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    *Result
		wantErr error
	}{
		{
			name: "sales scenario",
			in:   `{"classification":"Sales","sentiment":"Positive"}`,
			want: &Result{Classification: "Sales", Sentiment: "Positive"},
		},
		{
			name: "fenced",
			in:   "```json\n{\"classification\": \"Support\", \"sentiment\": \"Negative\"}\n```",
			want: &Result{Classification: "Support", Sentiment: "Negative"},
		},
		{
			name: "extra keys ignored",
			in:   `{"classification":"Invoice","sentiment":"Neutral","confidence":0.9}`,
			want: &Result{Classification: "Invoice", Sentiment: "Neutral"},
		},
		{
			name: "labels outside the sets pass through",
			in:   `{"classification":"Newsletter","sentiment":"Mixed"}`,
			want: &Result{Classification: "Newsletter", Sentiment: "Mixed"},
		},
		{
			name: "nested object alongside the keys",
			in:   `{"classification":"Sales","sentiment":"Positive","details":{"score":{"value":1}}}`,
			want: &Result{Classification: "Sales", Sentiment: "Positive"},
		},
		{
			name: "fenced nested object",
			in:   "```json\n{\"details\":{\"tags\":[\"a\"]},\"classification\":\"Support\",\"sentiment\":\"Neutral\"}\n```",
			want: &Result{Classification: "Support", Sentiment: "Neutral"},
		},
		{
			name:    "capitalized keys",
			in:      `{"Classification":"Sales","SENTIMENT":"Positive"}`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "mixed case classification key",
			in:      `{"cLaSsIfIcAtIoN":"Sales","sentiment":"Positive"}`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "labels nested one level down",
			in:      `{"result":{"classification":"Sales","sentiment":"Positive"}}`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "null sentiment",
			in:      `{"classification":"Sales","sentiment":null}`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "missing sentiment",
			in:      `{"classification":"Sales"}`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "empty classification",
			in:      `{"classification":"","sentiment":"Positive"}`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "null",
			in:      `null`,
			wantErr: apperr.ErrIncompleteResponse,
		},
		{
			name:    "prose",
			in:      "This email looks like a sales inquiry.",
			wantErr: apperr.ErrMalformedResponse,
		},
		{
			name:    "empty",
			in:      "",
			wantErr: apperr.ErrMalformedResponse,
		},
		{
			name:    "array",
			in:      `[{"classification":"Sales","sentiment":"Positive"}]`,
			wantErr: apperr.ErrMalformedResponse,
		},
		{
			name:    "wrong value type",
			in:      `{"classification":3,"sentiment":"Positive"}`,
			wantErr: apperr.ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				assert.Nil(t, got)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, apperr.ErrResponseFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_FencedEqualsUnfenced(t *testing.T) {
	plain, err := Parse(`{"classification":"Personal","sentiment":"Positive"}`)
	require.NoError(t, err)
	fenced, err := Parse("```json\n{\"classification\":\"Personal\",\"sentiment\":\"Positive\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, plain, fenced)
}

func TestCheckLabels(t *testing.T) {
	assert.NoError(t, CheckLabels(&Result{Classification: "Project Update", Sentiment: "Neutral"}))
	assert.ErrorIs(t, CheckLabels(&Result{Classification: "Newsletter", Sentiment: "Neutral"}), ErrUnknownLabel)
	assert.ErrorIs(t, CheckLabels(&Result{Classification: "Sales", Sentiment: "Mixed"}), ErrUnknownLabel)
	assert.ErrorIs(t, CheckLabels(nil), apperr.ErrResponseFormat)
}
