package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func val(t *testing.T, p *string) string {
	t.Helper()
	require.NotNil(t, p)
	return *p
}

func TestExtract_OpenGraphWins(t *testing.T) {
	doc := `<html><head>
<title>Fallback</title>
<meta property="og:title" content="Breaking News">
<meta name="twitter:title" content="Twitter Title">
<meta name="description" content="Plain description">
<meta property="og:description" content="OG description">
<meta property="og:image" content="/img/lead.jpg">
<meta property="og:site_name" content="Example News">
<meta property="og:type" content="article">
<meta property="og:url" content="/world/story">
</head><body></body></html>`

	res := New(nil).Extract("https://news.example.com/world/story?utm=1", doc)
	require.Equal(t, "Breaking News", val(t, res.Title))
	require.Equal(t, "OG description", val(t, res.Description))
	require.Equal(t, "https://news.example.com/img/lead.jpg", val(t, res.ImageURL))
	require.Equal(t, "Example News", val(t, res.SiteName))
	require.Equal(t, "article", val(t, res.Type))
	require.Equal(t, "https://news.example.com/world/story", val(t, res.CanonicalURL))
	require.Nil(t, res.ArticleContent)
}

func TestExtract_TwitterAndPlainFallbacks(t *testing.T) {
	doc := `<html><head>
<meta name="twitter:title" content="Tweet Title">
<meta name="twitter:description" content="Tweet description">
<meta name="description" content="Plain description">
<meta name="twitter:image" content="https://cdn.example.com/t.png">
</head><body></body></html>`

	res := New(nil).Extract("https://example.com/a", doc)
	require.Equal(t, "Tweet Title", val(t, res.Title))
	require.Equal(t, "Tweet description", val(t, res.Description))
	require.Equal(t, "https://cdn.example.com/t.png", val(t, res.ImageURL))
	require.Equal(t, "example.com", val(t, res.SiteName))
	require.Nil(t, res.Type)
	require.Nil(t, res.CanonicalURL)
}

func TestExtract_UnresolvableOpenGraphImageFallsBackToTwitter(t *testing.T) {
	doc := `<html><head>
<meta property="og:image" content="http://[::1">
<meta name="twitter:image" content="https://cdn.example.com/t.png">
</head></html>`

	res := New(nil).Extract("https://example.com/a", doc)
	require.Equal(t, "https://cdn.example.com/t.png", val(t, res.ImageURL))
}

func TestExtract_PlainDescription(t *testing.T) {
	doc := `<html><head><meta name="Description" content="  Only plain  "></head></html>`
	res := New(nil).Extract("https://example.com/", doc)
	require.Equal(t, "Only plain", val(t, res.Description))
}

func TestExtract_TitleElementFallback(t *testing.T) {
	doc := `<html><head><title>
   Hello World
</title><title>Second</title></head><body></body></html>`
	res := New(nil).Extract("https://example.com/", doc)
	require.Equal(t, "Hello World", val(t, res.Title))
}

func TestExtract_NoMetadata(t *testing.T) {
	res := New(nil).Extract("https://blog.example.org:8443/post", "<html><body><p>hi</p></body></html>")
	require.Nil(t, res.Title)
	require.Nil(t, res.Description)
	require.Nil(t, res.ImageURL)
	require.Equal(t, "blog.example.org", val(t, res.SiteName))
	require.True(t, res.Empty())
}

func TestExtract_UnusableBaseLeavesSiteNameAndRelativeImageNil(t *testing.T) {
	doc := `<html><head><meta property="og:image" content="lead.jpg"></head></html>`
	res := New(nil).Extract("not a url", doc)
	require.Nil(t, res.SiteName)
	require.Nil(t, res.ImageURL)
}

func TestExtract_EmptyTitleElement(t *testing.T) {
	res := New(nil).Extract("https://example.com/", "<html><head><title>   </title></head></html>")
	require.Nil(t, res.Title)
}

func TestIndexMeta_FirstNonEmptyWins(t *testing.T) {
	doc := `<html><head>
<meta property="OG:Title" content="   ">
<meta property="og:title" content="First">
<meta property="og:title" content="Second">
<meta name="keywords" value="go,html">
<meta property="" name="author" content="Ada">
<meta content="orphan">
</head></html>`
	tree, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	require.NoError(t, err)

	index := IndexMeta(tree)
	require.Equal(t, "First", index["og:title"])
	require.Equal(t, "go,html", index["keywords"])
	require.Equal(t, "Ada", index["author"])
	require.Len(t, index, 3)
}

func TestMetaTagIndex_Pick(t *testing.T) {
	index := MetaTagIndex{"b": "2", "c": "3"}
	require.Equal(t, "2", index.Pick("a", "b", "c"))
	require.Equal(t, "", index.Pick("x"))
	require.Equal(t, "", index.Pick())
}

func TestExtract_Deterministic(t *testing.T) {
	doc := `<html><head><meta property="og:title" content="Same"><meta property="og:image" content="x.png"></head></html>`
	e := New(nil)
	first := e.Extract("https://example.com/dir/page", doc)
	second := e.Extract("https://example.com/dir/page", doc)
	require.Equal(t, first, second)
	require.Equal(t, "https://example.com/dir/x.png", val(t, first.ImageURL))
}
