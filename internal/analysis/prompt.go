package analysis

import (
	"fmt"
	"strings"
)

// BuildPrompt returns the instruction sent to the model for one email. The
// subject and body are embedded verbatim.
func BuildPrompt(subject, body string) string {
	var b strings.Builder
	b.WriteString("Analyze the following email content (subject and body) and provide the analysis strictly in JSON format.\n")
	b.WriteString("The JSON object should have two keys:\n")
	fmt.Fprintf(&b, "1. \"classification\": Categorize the email into one of the following: %s.\n", quoteList(Classifications))
	fmt.Fprintf(&b, "2. \"sentiment\": Determine the overall sentiment: %s.\n", quoteList(Sentiments))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Subject: %s\n", subject)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Body:\n%s\n", body)
	b.WriteString("\n")
	b.WriteString(`Respond ONLY with the JSON object. Example: {"classification": "Sales", "sentiment": "Positive"}`)
	return b.String()
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ", ")
}
