package unfurl

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoBase is returned when a relative reference has no base to resolve against.
var ErrNoBase = errors.New("relative reference without base URL")

// Absolutize resolves ref against base using RFC 3986 reference resolution.
// References that are already absolute are returned untouched.
func Absolutize(base *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", ref, err)
	}
	if u.IsAbs() {
		return ref, nil
	}
	if base == nil {
		return "", ErrNoBase
	}
	return base.ResolveReference(u).String(), nil
}

// ParseBase parses rawURL and returns it only when it is absolute.
func ParseBase(rawURL string) (*url.URL, bool) {
	base, err := url.Parse(rawURL)
	if err != nil || !base.IsAbs() {
		return nil, false
	}
	return base, true
}
