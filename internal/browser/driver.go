package browser

import (
	"context"
	"strings"
	"time"
)

// Driver is the controllable browser session the lifecycle engine works
// against. Evaluate runs a script inside the page's security context, which
// is how authenticated API calls keep the site's anti-bot posture; a generic
// HTTP client is not a substitute.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitURL(ctx context.Context, pattern string, timeout time.Duration) error
	Evaluate(ctx context.Context, js string, out any) error
	Close() error
}

// MatchURL matches a URL against a glob-ish pattern where "*" and "**" match
// any run of characters, e.g. "**/social-quest".
func MatchURL(pattern, url string) bool {
	pattern = strings.ReplaceAll(pattern, "**", "*")
	parts := strings.Split(pattern, "*")

	rest := url
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx := strings.Index(rest, part)
		if idx < 0 {
			return false
		}
		if i == 0 && !strings.HasPrefix(pattern, "*") && idx != 0 {
			return false
		}
		rest = rest[idx+len(part):]
	}
	if !strings.HasSuffix(pattern, "*") && len(parts) > 0 && parts[len(parts)-1] != "" && rest != "" {
		return false
	}
	return true
}
