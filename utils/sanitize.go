package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.UGCPolicy()

// Sanitize strips unsafe HTML from user-supplied text before it enters an
// aggregate. Plain text passes through unchanged.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
