package unfurl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/link-unfurler/internal/metrics"
)

// ServiceConfig toggles optional pipeline behavior.
type ServiceConfig struct {
	// CaptureArticle copies the rewritten HTML into Result.ArticleContent.
	CaptureArticle bool
}

// Service composes the pipeline stages.
type Service struct {
	fetcher   Fetcher
	decoder   Decoder
	rewriter  Rewriter
	extractor Extractor
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService wires the pipeline. A nil logger disables logging.
func NewService(
	fetcher Fetcher,
	decoder Decoder,
	rewriter Rewriter,
	extractor Extractor,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		fetcher:   fetcher,
		decoder:   decoder,
		rewriter:  rewriter,
		extractor: extractor,
		cfg:       cfg,
		logger:    logger,
	}
}

// PreviewFromURL fetches rawURL under policy and resolves its preview.
// rawURL must already be an http(s) URL. Fatal failures are *FetchError.
func (s *Service) PreviewFromURL(ctx context.Context, rawURL string, policy TransferPolicy) (Result, error) {
	start := time.Now()
	raw, err := s.fetcher.Fetch(ctx, rawURL, policy)
	if err != nil {
		outcome := "error"
		if kind, ok := KindOf(err); ok {
			outcome = kind.String()
		}
		metrics.ObservePreview(outcome, time.Since(start))
		s.logger.Info("fetch failed",
			zap.String("url", rawURL),
			zap.String("kind", outcome),
			zap.Error(err),
		)
		return Result{}, err
	}
	metrics.ObserveFetchBytes(len(raw.Body))

	text := s.decoder.DecodeTransfer(raw)
	rewritten := s.rewriter.Rewrite(rawURL, text)
	result := s.extractor.Extract(rawURL, rewritten)
	if s.cfg.CaptureArticle {
		result.ArticleContent = StringPtr(rewritten)
	}

	if result.Empty() {
		metrics.ObserveExtractionEmpty()
		s.logger.Debug("no metadata found", zap.String("url", rawURL))
	}
	metrics.ObservePreview("ok", time.Since(start))
	s.logger.Debug("preview resolved",
		zap.String("url", rawURL),
		zap.Int("bytes", len(raw.Body)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}
