package service

import "github.com/microcosm-cc/bluemonday"

// richTextPolicy allows the formatting markup of user generated content and
// strips scripts, event handlers and unsafe URLs.
var richTextPolicy = bluemonday.UGCPolicy()

// SanitizeHTML returns html reduced to the markup richTextPolicy allows.
func SanitizeHTML(html string) string {
	return richTextPolicy.Sanitize(html)
}
