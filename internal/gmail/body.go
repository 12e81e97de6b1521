package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
	"golang.org/x/net/html"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// header returns the first header named name, compared case-insensitively.
func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// walkParts calls fn for part and each of its descendants, depth first.
func walkParts(part *gmail.MessagePart, fn func(*gmail.MessagePart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// findBody returns the still-encoded data of the first inline part of the
// given MIME type.
func findBody(payload *gmail.MessagePart, mimeType string) string {
	var data string
	walkParts(payload, func(part *gmail.MessagePart) {
		if data != "" || part.Filename != "" || part.Body == nil {
			return
		}
		if strings.EqualFold(part.MimeType, mimeType) && part.Body.Data != "" {
			data = part.Body.Data
		}
	})
	return data
}

// extractBody returns the plain-text body of msg. A text/plain part wins; an
// HTML part is reduced to its text; the snippet is the last resort.
func extractBody(msg *gmail.Message) (string, error) {
	if msg == nil {
		return "", nil
	}

	if data := findBody(msg.Payload, mimeTextPlain); data != "" {
		decoded, err := decodeBase64(data)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(decoded), nil
	}

	if data := findBody(msg.Payload, mimeTextHTML); data != "" {
		decoded, err := decodeBase64(data)
		if err != nil {
			return "", err
		}
		return htmlToText(decoded), nil
	}

	return html.UnescapeString(msg.Snippet), nil
}

// decodeBase64 decodes Gmail body data. The API uses base64url but padding
// varies between messages.
func decodeBase64(data string) (string, error) {
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding, base64.StdEncoding} {
		if decoded, err := enc.DecodeString(data); err == nil {
			return string(decoded), nil
		}
	}
	return "", fmt.Errorf("failed to decode message body")
}

// htmlToText extracts the visible text of an HTML document. Block elements
// become line breaks; script and style content is dropped.
func htmlToText(src string) string {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return strings.TrimSpace(src)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head", "noscript", "template":
				return
			}
		case html.TextNode:
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteByte('\n')
				}
			}
		}
	}
	walk(doc)

	return strings.TrimSpace(b.String())
}
