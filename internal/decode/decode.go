// Package decode turns raw transfers into UTF-8 text.
//
// Decoding never fails the pipeline. A body whose declared compression cannot be
// undone is passed through as-is, and invalid byte sequences become U+FFFD.
package decode

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"

	"github.com/JakeFAU/link-unfurler/internal/metrics"
	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

// Decoder implements unfurl.Decoder.
type Decoder struct {
	logger *zap.Logger
}

// New returns a Decoder. A nil logger disables logging.
func New(logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{logger: logger}
}

// Decode undoes contentEncoding (gzip or br) and converts the result to UTF-8.
// Any other encoding, or none, leaves the bytes untouched.
func (d *Decoder) Decode(body []byte, contentEncoding string) string {
	return lossyUTF8(d.decompress(body, contentEncoding))
}

// DecodeTransfer is Decode plus transcoding from the charset declared in the
// transfer's Content-Type, when that charset is known and not UTF-8.
func (d *Decoder) DecodeTransfer(raw unfurl.RawTransfer) string {
	body := d.decompress(raw.Body, raw.ContentEncoding)
	if enc, name := lookupCharset(raw.ContentType); enc != nil && name != "utf-8" {
		out, err := enc.NewDecoder().Bytes(body)
		if err == nil {
			return string(out)
		}
		d.logger.Debug("charset transcode failed",
			zap.String("url", raw.URL),
			zap.String("charset", name),
			zap.Error(err),
		)
	}
	return lossyUTF8(body)
}

func (d *Decoder) decompress(body []byte, contentEncoding string) []byte {
	name := strings.ToLower(strings.TrimSpace(contentEncoding))
	var (
		out []byte
		err error
	)
	switch name {
	case "gzip", "x-gzip":
		out, err = gunzip(body)
	case "br":
		out, err = unbrotli(body)
	default:
		return body
	}
	if err != nil {
		metrics.ObserveDecodeDegraded(name)
		d.logger.Warn("decompression failed; using raw body",
			zap.String("encoding", name),
			zap.Int("bytes", len(body)),
			zap.Error(err),
		)
		return body
	}
	return out
}

func gunzip(body []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer zr.Close() //nolint:errcheck // reader over memory
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	return out, nil
}

func unbrotli(body []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	if err != nil {
		return nil, fmt.Errorf("brotli body: %w", err)
	}
	return out, nil
}

// lookupCharset resolves the charset parameter of contentType against the
// WHATWG label table. Unknown or missing labels yield a nil encoding.
func lookupCharset(contentType string) (encoding.Encoding, string) {
	if contentType == "" {
		return nil, ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, ""
	}
	label, ok := params["charset"]
	if !ok {
		return nil, ""
	}
	return charset.Lookup(label)
}

func lossyUTF8(body []byte) string {
	out, err := unicode.UTF8.NewDecoder().Bytes(body)
	if err != nil {
		return strings.ToValidUTF8(string(body), "\uFFFD")
	}
	return string(out)
}
