// Package urltext extracts URL substrings from message bodies.
package urltext

import (
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Extract returns the URL substrings of text in order of appearance,
// or nil if there are none.
func Extract(text string) []string {
	if text == "" {
		return nil
	}
	return urlPattern.FindAllString(text, -1)
}

// Join newline-joins extracted URLs for storage. Empty input yields "".
func Join(urls []string) string {
	return strings.Join(urls, "\n")
}
