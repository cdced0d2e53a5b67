// Package rewrite repairs publisher markup before metadata extraction.
//
// The pass promotes lazy-loaded image URLs, absolutizes image and gallery links,
// fills in images for <figure><picture> blocks, and drops <script> and <aside>
// scaffolding. It is idempotent: rewriting its own output changes nothing.
package rewrite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

var (
	lazySrcAttrs    = []string{"data-src", "data-lazy-src", "data-original", "data-actualsrc", "data-url"}
	lazySrcsetAttrs = []string{"data-srcset", "data-lazy-srcset"}

	// DefaultGalleryPrefixes are relative paths publishers use for photo galleries.
	DefaultGalleryPrefixes = []string{"/gallery/", "/galleries/", "/photos/", "/slideshow/", "/picture-gallery/"}
)

// Config tunes the rewrite pass.
type Config struct {
	GalleryPrefixes []string
}

// Rewriter implements unfurl.Rewriter.
type Rewriter struct {
	galleryPrefixes []string
	logger          *zap.Logger
}

// New returns a Rewriter. Empty GalleryPrefixes selects DefaultGalleryPrefixes.
func New(cfg Config, logger *zap.Logger) *Rewriter {
	if len(cfg.GalleryPrefixes) == 0 {
		cfg.GalleryPrefixes = DefaultGalleryPrefixes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{galleryPrefixes: cfg.GalleryPrefixes, logger: logger}
}

// Rewrite parses doc leniently, applies the repairs, and serializes the tree.
// Failures on a single element skip that element only.
func (rw *Rewriter) Rewrite(baseURL, doc string) string {
	base, ok := unfurl.ParseBase(baseURL)
	if !ok {
		rw.logger.Debug("base url unusable; relative references kept", zap.String("base", baseURL))
	}

	// With scripting disabled, <noscript> children parse as elements, so the
	// fallback images publishers place there get rewritten too.
	root, err := html.ParseWithOptions(strings.NewReader(doc), html.ParseOptionEnableScripting(false))
	if err != nil {
		rw.logger.Warn("html parse failed; returning input", zap.Error(err))
		return doc
	}
	tree := goquery.NewDocumentFromNode(root)

	tree.Find("img").Each(func(_ int, img *goquery.Selection) {
		rw.skipOnError("img", rewriteImage(img, base))
	})
	tree.Find("figure").Each(func(_ int, fig *goquery.Selection) {
		rw.skipOnError("figure", rewriteFigure(fig, base))
	})
	tree.Find("script, aside").Remove()
	tree.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		rw.skipOnError("a", rw.rewriteGalleryLink(a, base))
	})

	out, err := tree.Html()
	if err != nil {
		rw.logger.Warn("html render failed; returning input", zap.Error(err))
		return doc
	}
	return out
}

func (rw *Rewriter) skipOnError(element string, err error) {
	if err != nil {
		rw.logger.Debug("element skipped", zap.String("element", element), zap.Error(err))
	}
}

func rewriteImage(img *goquery.Selection, base *url.URL) error {
	if err := promoteOrResolve(img, "src", lazySrcAttrs, base, unfurl.Absolutize); err != nil {
		return err
	}
	return promoteOrResolve(img, "srcset", lazySrcsetAttrs, base, resolveSrcset)
}

// promoteOrResolve copies the first non-empty placeholder into target, or,
// without a placeholder, absolutizes target in place.
func promoteOrResolve(
	img *goquery.Selection,
	target string,
	placeholders []string,
	base *url.URL,
	resolver func(*url.URL, string) (string, error),
) error {
	value := ""
	for _, attr := range placeholders {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" {
			value = v
			break
		}
	}
	if value == "" {
		value = img.AttrOr(target, "")
	}
	if strings.TrimSpace(value) == "" {
		return nil
	}
	resolved, err := resolver(base, value)
	if err != nil {
		return fmt.Errorf("%s: %w", target, err)
	}
	if current, ok := img.Attr(target); !ok || current != resolved {
		img.SetAttr(target, resolved)
	}
	return nil
}

func rewriteFigure(fig *goquery.Selection, base *url.URL) error {
	source := fig.Find("source[srcset]").First()
	if source.Length() == 0 {
		return nil
	}
	first := firstSrcsetURL(source.AttrOr("srcset", ""))
	if first == "" {
		return nil
	}
	resolved, err := unfurl.Absolutize(base, first)
	if err != nil {
		return fmt.Errorf("source srcset: %w", err)
	}
	if img := fig.Find("img").First(); img.Length() > 0 {
		img.SetAttr("src", resolved)
		return nil
	}
	parent := source.Parent()
	if parent.Length() == 0 {
		parent = fig
	}
	parent.AppendNodes(&html.Node{
		Type:     html.ElementNode,
		Data:     "img",
		DataAtom: atom.Img,
		Attr:     []html.Attribute{{Key: "src", Val: resolved}},
	})
	return nil
}

func (rw *Rewriter) rewriteGalleryLink(a *goquery.Selection, base *url.URL) error {
	href := strings.TrimSpace(a.AttrOr("href", ""))
	if !rw.isGalleryPath(href) {
		return nil
	}
	resolved, err := unfurl.Absolutize(base, href)
	if err != nil {
		return fmt.Errorf("href: %w", err)
	}
	a.SetAttr("href", resolved)
	return nil
}

func (rw *Rewriter) isGalleryPath(href string) bool {
	for _, prefix := range rw.galleryPrefixes {
		if strings.HasPrefix(href, prefix) {
			return true
		}
	}
	return false
}

// resolveSrcset absolutizes every candidate URL in a srcset list, keeping
// descriptors. Lists carrying data: URIs are left alone since their commas
// are ambiguous.
func resolveSrcset(base *url.URL, srcset string) (string, error) {
	if strings.Contains(strings.ToLower(srcset), "data:") {
		return srcset, nil
	}
	candidates := strings.Split(srcset, ",")
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		resolved, err := unfurl.Absolutize(base, fields[0])
		if err != nil {
			return "", err
		}
		fields[0] = resolved
		out = append(out, strings.Join(fields, " "))
	}
	return strings.Join(out, ", "), nil
}

func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
