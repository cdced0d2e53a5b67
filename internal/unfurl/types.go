package unfurl

import (
	"strings"
	"time"
)

// TransferPolicy holds the limits applied to a single outbound fetch.
// Values are copied per request and never mutated mid-flight.
type TransferPolicy struct {
	Timeout              time.Duration
	MaxBytes             int64
	AcceptedContentTypes []string
	UserAgentPrimary     string
	UserAgentFallback    string
	BlockedHostnames     []string
	MaxRedirects         int
}

// UserAgentFor picks the user agent for host. Hosts containing any blocked entry
// get the fallback identity.
func (p TransferPolicy) UserAgentFor(host string) string {
	host = strings.ToLower(host)
	for _, entry := range p.BlockedHostnames {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if strings.Contains(host, entry) {
			if p.UserAgentFallback != "" {
				return p.UserAgentFallback
			}
			break
		}
	}
	return p.UserAgentPrimary
}

// AcceptsContentType reports whether a declared Content-Type is previewable.
// Parameters are stripped before prefix matching; anything still mentioning
// "html" is accepted for misconfigured servers. An empty value is accepted.
func (p TransferPolicy) AcceptsContentType(declared string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if mediaType == "" {
		return true
	}
	for _, prefix := range p.AcceptedContentTypes {
		if strings.HasPrefix(mediaType, strings.ToLower(prefix)) {
			return true
		}
	}
	return strings.Contains(mediaType, "html")
}

// RawTransfer is the undecoded body handed from the Fetcher to the Decoder.
type RawTransfer struct {
	URL             string
	FinalURL        string
	StatusCode      int
	Body            []byte
	ContentType     string
	ContentEncoding string
	Duration        time.Duration
}

// Result is the externally visible preview. Nil fields are absent.
// ImageURL and CanonicalURL are always absolute when set.
type Result struct {
	Title          *string `json:"title"`
	Description    *string `json:"description"`
	ImageURL       *string `json:"imageUrl"`
	SiteName       *string `json:"siteName"`
	ArticleContent *string `json:"articleContent"`
	Type           *string `json:"type"`
	CanonicalURL   *string `json:"canonicalUrl"`
}

// Empty reports whether no metadata was resolved apart from the site name fallback.
func (r Result) Empty() bool {
	return r.Title == nil && r.Description == nil && r.ImageURL == nil &&
		r.Type == nil && r.CanonicalURL == nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
