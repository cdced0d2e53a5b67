// Package httpstream implements unfurl.Fetcher with a streaming net/http GET.
package httpstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

const (
	acceptHeader         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	acceptEncodingHeader = "gzip, deflate, br"
	acceptLanguageHeader = "en-US,en;q=0.9"
	chunkSize            = 32 * 1024
	defaultMaxConns      = 10
	defaultMaxRedirects  = 10
)

// Config controls the shared transport.
type Config struct {
	// MaxConnections bounds in-flight fetches and pooled connections.
	MaxConnections int
}

// Fetcher streams response bodies under an unfurl.TransferPolicy.
type Fetcher struct {
	client  *http.Client
	limiter chan struct{}
	logger  *zap.Logger
}

// New builds a Fetcher with a bounded connection pool.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = defaultMaxConns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client:  &http.Client{Transport: newHTTPTransport(cfg.MaxConnections)},
		limiter: make(chan struct{}, cfg.MaxConnections),
		logger:  logger,
	}
}

// Fetch performs a GET for rawURL. The whole exchange, including the body read,
// runs under policy.Timeout. The byte cap applies to bytes as they arrive on the
// wire, before any decompression.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, policy unfurl.TransferPolicy) (unfurl.RawTransfer, error) {
	if policy.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Timeout)
		defer cancel()
	}

	if err := f.acquire(ctx); err != nil {
		return unfurl.RawTransfer{}, classify(ctx, rawURL, err)
	}
	defer f.release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return unfurl.RawTransfer{}, &unfurl.FetchError{
			Kind: unfurl.KindConnectFailure,
			URL:  rawURL,
			Err:  fmt.Errorf("new request: %w", err),
		}
	}
	req.Header.Set("User-Agent", policy.UserAgentFor(req.URL.Hostname()))
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Encoding", acceptEncodingHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	start := time.Now()
	resp, err := f.clientFor(policy).Do(req)
	if err != nil {
		return unfurl.RawTransfer{}, classify(ctx, rawURL, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Debug("close response body", zap.String("url", rawURL), zap.Error(cerr))
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return unfurl.RawTransfer{}, &unfurl.FetchError{
			Kind:       unfurl.KindUpstreamStatus,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if !policy.AcceptsContentType(contentType) {
		return unfurl.RawTransfer{}, &unfurl.FetchError{
			Kind:        unfurl.KindUnsupportedContentType,
			URL:         rawURL,
			StatusCode:  resp.StatusCode,
			ContentType: strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]),
		}
	}

	body, err := readCapped(resp.Body, policy.MaxBytes)
	if err != nil {
		var fe *unfurl.FetchError
		if errors.As(err, &fe) {
			fe.URL = rawURL
			fe.StatusCode = resp.StatusCode
			return unfurl.RawTransfer{}, fe
		}
		return unfurl.RawTransfer{}, classify(ctx, rawURL, err)
	}

	return unfurl.RawTransfer{
		URL:             rawURL,
		FinalURL:        resp.Request.URL.String(),
		StatusCode:      resp.StatusCode,
		Body:            body,
		ContentType:     contentType,
		ContentEncoding: resp.Header.Get("Content-Encoding"),
		Duration:        time.Since(start),
	}, nil
}

// readCapped accumulates r chunk by chunk and aborts as soon as the running
// total exceeds maxBytes. maxBytes <= 0 disables the cap.
func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	var (
		body  []byte
		total int64
		buf   = make([]byte, chunkSize)
	)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if maxBytes > 0 && total > maxBytes {
				return nil, &unfurl.FetchError{Kind: unfurl.KindResponseTooLarge}
			}
			body = append(body, buf[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return body, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
}

func (f *Fetcher) clientFor(policy unfurl.TransferPolicy) *http.Client {
	c := *f.client
	c.CheckRedirect = checkRedirectFunc(policy.MaxRedirects)
	return &c
}

func checkRedirectFunc(maxHops int) func(req *http.Request, via []*http.Request) error {
	if maxHops <= 0 {
		maxHops = defaultMaxRedirects
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

// classify maps a transport error onto the fatal kinds. Deadline expiry
// anywhere in the exchange is a timeout; everything else is a connect failure.
func classify(ctx context.Context, rawURL string, err error) error {
	kind := unfurl.KindConnectFailure
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		kind = unfurl.KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = unfurl.KindTimeout
	}
	return &unfurl.FetchError{Kind: kind, URL: rawURL, Err: err}
}

func (f *Fetcher) acquire(ctx context.Context) error {
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for connection slot: %w", ctx.Err())
	}
}

func (f *Fetcher) release() {
	select {
	case <-f.limiter:
	default:
	}
}

func newHTTPTransport(maxConns int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          maxConns,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
