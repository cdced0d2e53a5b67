package unfurl_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/link-unfurler/internal/decode"
	"github.com/JakeFAU/link-unfurler/internal/extract"
	"github.com/JakeFAU/link-unfurler/internal/fetcher/httpstream"
	"github.com/JakeFAU/link-unfurler/internal/rewrite"
	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

func newService(t *testing.T, cfg unfurl.ServiceConfig, logger *zap.Logger) *unfurl.Service {
	t.Helper()
	return unfurl.NewService(
		httpstream.New(httpstream.Config{}, logger),
		decode.New(logger),
		rewrite.New(rewrite.Config{}, logger),
		extract.New(logger),
		cfg,
		logger,
	)
}

func policy() unfurl.TransferPolicy {
	return unfurl.TransferPolicy{
		Timeout:              2 * time.Second,
		MaxBytes:             3 << 20,
		AcceptedContentTypes: []string{"text/html", "application/xhtml+xml"},
		UserAgentPrimary:     "URLPreviewerBot/1.0",
	}
}

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPreviewFromURL_OpenGraph(t *testing.T) {
	t.Parallel()

	srv := serve(t, "text/html; charset=utf-8",
		`<meta property="og:title" content="Breaking News"><meta property="og:image" content="/img.png">`)

	res, err := newService(t, unfurl.ServiceConfig{}, nil).PreviewFromURL(context.Background(), srv.URL+"/a", policy())
	require.NoError(t, err)
	require.NotNil(t, res.Title)
	require.Equal(t, "Breaking News", *res.Title)
	require.NotNil(t, res.ImageURL)
	require.Equal(t, srv.URL+"/img.png", *res.ImageURL)
	require.NotNil(t, res.SiteName)
	require.Equal(t, "127.0.0.1", *res.SiteName)
	require.Nil(t, res.Description)
	require.Nil(t, res.ArticleContent)
}

func TestPreviewFromURL_UnsupportedContentType(t *testing.T) {
	t.Parallel()

	srv := serve(t, "application/pdf", "%PDF-1.7")

	_, err := newService(t, unfurl.ServiceConfig{}, nil).PreviewFromURL(context.Background(), srv.URL+"/doc.pdf", policy())
	require.ErrorIs(t, err, unfurl.ErrUnsupportedContentType)
	kind, ok := unfurl.KindOf(err)
	require.True(t, ok)
	require.Equal(t, unfurl.KindUnsupportedContentType, kind)
}

func TestPreviewFromURL_NoMetadataFallsBackToHostname(t *testing.T) {
	t.Parallel()

	srv := serve(t, "text/html", "<html><body><p>nothing here</p></body></html>")

	res, err := newService(t, unfurl.ServiceConfig{}, nil).PreviewFromURL(context.Background(), srv.URL, policy())
	require.NoError(t, err)
	require.Nil(t, res.Title)
	require.Nil(t, res.Description)
	require.Nil(t, res.ImageURL)
	require.Nil(t, res.ArticleContent)
	require.NotNil(t, res.SiteName)
	require.Equal(t, "127.0.0.1", *res.SiteName)
}

func TestPreviewFromURL_LazyImageBecomesRewrittenArticle(t *testing.T) {
	t.Parallel()

	srv := serve(t, "text/html",
		`<html><head><title>Story</title></head><body><script>track()</script><img data-src="/lazy.jpg"></body></html>`)

	res, err := newService(t, unfurl.ServiceConfig{CaptureArticle: true}, nil).PreviewFromURL(context.Background(), srv.URL+"/story", policy())
	require.NoError(t, err)
	require.Equal(t, "Story", *res.Title)
	require.NotNil(t, res.ArticleContent)
	require.Contains(t, *res.ArticleContent, `src="`+srv.URL+`/lazy.jpg"`)
	require.NotContains(t, *res.ArticleContent, "track()")
}

func TestPreviewFromURL_LogsFetchFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	core, logs := observer.New(zapcore.InfoLevel)
	_, err := newService(t, unfurl.ServiceConfig{}, zap.New(core)).PreviewFromURL(context.Background(), srv.URL, policy())
	require.ErrorIs(t, err, unfurl.ErrUpstreamStatus)
	require.EqualError(t, err, "upstream returned 410")

	entries := logs.FilterMessage("fetch failed").All()
	require.Len(t, entries, 1)
	require.Equal(t, "upstream_status", entries[0].ContextMap()["kind"])
}

func TestPreviewFromURL_MultibyteTitle(t *testing.T) {
	t.Parallel()

	srv := serve(t, "text/html; charset=iso-8859-1", "<title>Caf\xe9 du Monde</title>")

	res, err := newService(t, unfurl.ServiceConfig{}, nil).PreviewFromURL(context.Background(), srv.URL, policy())
	require.NoError(t, err)
	require.Equal(t, "Café du Monde", *res.Title)
	require.False(t, strings.ContainsRune(*res.Title, '�'))
}
