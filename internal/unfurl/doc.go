// Package unfurl defines the link preview pipeline and the types shared by its stages.
//
// A preview request flows Fetcher -> Decoder -> Rewriter -> Extractor. Each request is
// independent: the only shared state is the immutable TransferPolicy and the fetcher's
// bounded connection pool. Fatal failures surface as *FetchError with a Kind the caller
// can map to a transport status; everything else degrades to a best-effort Result.
package unfurl
