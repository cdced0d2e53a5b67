package unfurl

import "context"

// Fetcher performs the bounded GET and returns the undecoded body.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, policy TransferPolicy) (RawTransfer, error)
}

// Decoder turns a raw transfer into text. It never fails.
type Decoder interface {
	DecodeTransfer(raw RawTransfer) string
}

// Rewriter repairs publisher markup and returns serialized HTML. It never fails.
type Rewriter interface {
	Rewrite(baseURL, html string) string
}

// Extractor resolves preview metadata from HTML. It never fails.
type Extractor interface {
	Extract(baseURL, html string) Result
}
