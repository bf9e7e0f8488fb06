package content

import (
	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.UGCPolicy()

// Sanitize removes unsafe HTML from the input string. It is applied to
// message text before it is persisted or fanned out.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}
