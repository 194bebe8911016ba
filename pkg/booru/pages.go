package booru

import (
	"context"
	"errors"
	"time"

	"boorufetch/pkg/config"
	"boorufetch/pkg/logger"
	"boorufetch/pkg/retry"
)

// ErrNoMorePages signals normal exhaustion of the result set.
var ErrNoMorePages = errors.New("no more pages")

// MetadataFetcher is the slice of the client the page source needs.
type MetadataFetcher interface {
	FetchPage(ctx context.Context, tags string, limit, page int) ([]Post, error)
}

// PageSource turns the paginated metadata endpoint into a lazy, finite
// sequence of post batches. Pulls are strictly sequential and in
// increasing page order; a fixed inter-page delay is observed between
// pulls to respect API rate limits.
type PageSource struct {
	fetcher MetadataFetcher
	tags    string
	limit   int
	delay   time.Duration

	cursor   int
	endPage  int // exclusive, 0 = unbounded
	maxPages int // count cap, 0 = unbounded
	pulled   int
	done     bool

	logger logger.Logger
}

// NewPageSource creates a page source from the run configuration.
func NewPageSource(fetcher MetadataFetcher, cfg *config.BooruConfig, log logger.Logger) *PageSource {
	if log == nil {
		log = logger.GetLogger()
	}
	return &PageSource{
		fetcher:  fetcher,
		tags:     cfg.Tags,
		limit:    cfg.PageSize,
		delay:    cfg.PageDelay,
		cursor:   cfg.StartPage,
		endPage:  cfg.EndPage,
		maxPages: cfg.MaxPages,
		logger:   log,
	}
}

// Next pulls the next batch of posts. It returns ErrNoMorePages on normal
// exhaustion (empty batch or page bound reached) and any api error as-is;
// an api error permanently ends the sequence.
func (s *PageSource) Next(ctx context.Context) ([]Post, error) {
	if s.done {
		return nil, ErrNoMorePages
	}

	if s.endPage > 0 && s.cursor >= s.endPage {
		s.done = true
		s.logger.InfoWithFields("reached configured end page", map[string]interface{}{
			"end_page": s.endPage,
		})
		return nil, ErrNoMorePages
	}
	if s.maxPages > 0 && s.pulled >= s.maxPages {
		s.done = true
		s.logger.InfoWithFields("reached configured page cap", map[string]interface{}{
			"max_pages": s.maxPages,
		})
		return nil, ErrNoMorePages
	}

	// Inter-page delay between pulls, never inside per-post processing
	if s.pulled > 0 && s.delay > 0 {
		if err := retry.Wait(ctx, s.delay); err != nil {
			s.done = true
			return nil, err
		}
	}

	s.logger.InfoWithFields("fetching page", map[string]interface{}{
		"page": s.cursor,
		"tags": s.tags,
	})

	posts, err := s.fetcher.FetchPage(ctx, s.tags, s.limit, s.cursor)
	if err != nil {
		s.done = true
		return nil, err
	}

	if len(posts) == 0 {
		s.done = true
		s.logger.Info("no more posts to download")
		return nil, ErrNoMorePages
	}

	s.cursor++
	s.pulled++
	return posts, nil
}

// Page returns the current page cursor.
func (s *PageSource) Page() int {
	return s.cursor
}
