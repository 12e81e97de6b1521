// Package analysis asks a generative model to classify an email and judge
// its sentiment.
//
// BuildPrompt embeds the subject and body into a fixed instruction listing
// the allowed labels. The model's answer is passed through Normalize, which
// strips a Markdown code fence, and decoded by Parse. An answer that is not a
// JSON object or lacks either key is rejected; label values are returned as
// the model gave them unless Options.StrictLabels is set.
//
// GeminiModel and OpenAIModel implement Model. WithBreaker puts a circuit
// breaker in front of either.
package analysis
