// Package extract resolves preview fields from rewritten HTML.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

var (
	titleKeys       = []string{"og:title", "twitter:title"}
	descriptionKeys = []string{"og:description", "twitter:description", "description"}
	imageKeys       = []string{"og:image", "twitter:image"}
	siteNameKeys    = []string{"og:site_name"}
)

// MetaTagIndex maps lowercased meta keys to the first non-empty value seen
// in document order.
type MetaTagIndex map[string]string

// IndexMeta builds a MetaTagIndex from every <meta> element in doc. The key is
// the property attribute, or name when property is empty. The value is the
// content attribute, or value when content is empty.
func IndexMeta(doc *goquery.Document) MetaTagIndex {
	index := MetaTagIndex{}
	doc.Find("meta").Each(func(_ int, m *goquery.Selection) {
		key := strings.ToLower(strings.TrimSpace(firstAttr(m, "property", "name")))
		if key == "" {
			return
		}
		value := strings.TrimSpace(firstAttr(m, "content", "value"))
		if value == "" {
			return
		}
		if _, seen := index[key]; !seen {
			index[key] = value
		}
	})
	return index
}

// Pick returns the value of the first key present in the index.
func (m MetaTagIndex) Pick(keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return ""
}

func firstAttr(s *goquery.Selection, names ...string) string {
	for _, name := range names {
		if v := s.AttrOr(name, ""); v != "" {
			return v
		}
	}
	return ""
}

// Extractor implements unfurl.Extractor.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract reads title, description, image, and site name from doc using the
// meta priority chains, plus og:type and og:url when present. It never fails;
// unresolvable fields are left nil.
func (e *Extractor) Extract(baseURL, doc string) unfurl.Result {
	tree, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		e.logger.Warn("html parse failed; empty result", zap.Error(err))
		return unfurl.Result{}
	}
	index := IndexMeta(tree)
	base, hasBase := unfurl.ParseBase(baseURL)

	title := index.Pick(titleKeys...)
	if title == "" {
		title = strings.TrimSpace(tree.Find("title").First().Text())
	}

	// An image value that cannot be resolved yields to the next key.
	var image string
	for _, key := range imageKeys {
		raw, ok := index[key]
		if !ok {
			continue
		}
		if image = e.absolutize(base, raw); image != "" {
			break
		}
	}

	siteName := index.Pick(siteNameKeys...)
	if siteName == "" && hasBase {
		siteName = base.Hostname()
	}

	res := unfurl.Result{
		Title:       unfurl.StringPtr(title),
		Description: unfurl.StringPtr(index.Pick(descriptionKeys...)),
		ImageURL:    unfurl.StringPtr(image),
		SiteName:    unfurl.StringPtr(siteName),
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(strings.NewReader(doc)); err != nil {
		e.logger.Debug("opengraph parse failed", zap.Error(err))
		return res
	}
	res.Type = unfurl.StringPtr(strings.TrimSpace(og.Type))
	if canonical := strings.TrimSpace(og.URL); canonical != "" {
		res.CanonicalURL = unfurl.StringPtr(e.absolutize(base, canonical))
	}
	return res
}

func (e *Extractor) absolutize(base *url.URL, ref string) string {
	abs, err := unfurl.Absolutize(base, ref)
	if err != nil {
		e.logger.Debug("dropping unresolvable url", zap.String("ref", ref), zap.Error(err))
		return ""
	}
	return abs
}
