package scraper

import (
	"context"
	"errors"
	"sync"
	"time"

	"boorufetch/internal/downloader"
	"boorufetch/pkg/booru"
	"boorufetch/pkg/config"
	"boorufetch/pkg/filter"
	"boorufetch/pkg/logger"
	"boorufetch/pkg/normalize"
	"boorufetch/pkg/ratelimit"
	"boorufetch/pkg/storage"
	"boorufetch/pkg/tags"
)

// Scraper orchestrates the fetch, filter, dedup, download pipeline and
// the post-run sidecar normalization.
type Scraper struct {
	client BooruClient
	config *config.Config
	logger logger.Logger
}

// Summary is the end-of-run report. Downloaded maps resolved artifact
// extensions to counts.
type Summary struct {
	Downloaded map[string]int
	Rejected   int // filtered out by policy
	Duplicates int // dedup hits (prior runs or in-run claims)
	Failed     int // per-post failures, isolated and logged
	Pages      int
}

// Total returns the number of artifacts written this run.
func (s *Summary) Total() int {
	total := 0
	for _, n := range s.Downloaded {
		total += n
	}
	return total
}

// New creates a Scraper backed by a real API client.
func New(cfg *config.Config) *Scraper {
	log := logger.GetLogger()
	return &Scraper{
		client: booru.NewClient(cfg, log),
		config: cfg,
		logger: log,
	}
}

// NewWithClient creates a Scraper with an injected client.
func NewWithClient(cfg *config.Config, client BooruClient, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{client: client, config: cfg, logger: log}
}

// Run executes the whole pipeline. The page loop submits accepted posts
// fire-and-forget; a fatal api error stops new submissions but work
// already in the pool still completes. All submitted work is joined
// before the summary is final and the normalizer runs. The fatal error,
// if any, is returned after both.
func (s *Scraper) Run(ctx context.Context) (*Summary, error) {
	cfg := s.config

	policy, err := filter.NewPolicy(&cfg.Filter)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return nil, err
	}

	s.logger.InfoWithFields("starting run", map[string]interface{}{
		"tags":       cfg.Booru.Tags,
		"output_dir": store.OutputDir(),
		"known_ids":  store.DownloadedCount(),
	})

	limiter := ratelimit.NewTokenBucket(cfg.RateLimit.RequestsPerMinute, time.Minute)
	pool := downloader.NewWorkerPool(cfg.Download.Concurrency, s.client, store, limiter, s.logger)
	pool.Start()

	summary := &Summary{Downloaded: make(map[string]int)}

	// Single aggregator owns the download counter; workers only emit
	// results on the channel.
	var aggWG sync.WaitGroup
	aggWG.Add(1)
	go func() {
		defer aggWG.Done()
		for result := range pool.Results() {
			switch {
			case result.Err != nil:
				summary.Failed++
			case result.Skipped:
				summary.Duplicates++
			default:
				summary.Downloaded[result.Ext]++
			}
		}
	}()

	source := booru.NewPageSource(s.client, &cfg.Booru, s.logger)

	// The aggregator owns the summary until the barrier; the page loop
	// tallies its own counts locally and merges them after the join.
	var pages, rejected, duplicates int

	var runErr error
pageLoop:
	for {
		posts, err := source.Next(ctx)
		if errors.Is(err, booru.ErrNoMorePages) {
			break
		}
		if err != nil {
			// Fatal: stop submitting, let in-flight work finish
			s.logger.WithError(err).Error("metadata fetch failed, stopping run")
			runErr = err
			break
		}
		pages++

		// Screening is sequential in the page's returned order
		for i := range posts {
			post := posts[i]

			if verdict := policy.Evaluate(&post); !verdict.Accepted {
				rejected++
				s.logger.InfoWithFields("skipped post", map[string]interface{}{
					"post_id":   post.ID,
					"predicate": verdict.Predicate,
					"reason":    verdict.Reason,
				})
				continue
			}

			if store.IsDownloaded(post.ID) {
				duplicates++
				s.logger.DebugWithFields("skipped already downloaded post", map[string]interface{}{
					"post_id": post.ID,
				})
				continue
			}

			job := downloader.Job{
				Post: post,
				Stem: tags.FileStem(&post, cfg.Output.EmbedTags),
			}
			if err := pool.Submit(job); err != nil {
				s.logger.WithError(err).Error("failed to submit job")
				break pageLoop
			}
		}
	}

	// Hard barrier: every submitted unit completes before the summary
	// and the normalizer phase.
	pool.Stop()
	aggWG.Wait()

	summary.Pages = pages
	summary.Rejected = rejected
	summary.Duplicates += duplicates

	s.logSummary(summary)

	normalizer := normalize.New(store.OutputDir(), cfg.Booru.Tags, cfg.Sidecar.TriggerWords, s.logger)
	if err := normalizer.Run(cfg.Sidecar.PromoteSearchTags); err != nil {
		s.logger.WithError(err).Error("sidecar normalization failed")
		if runErr == nil {
			runErr = err
		}
	}

	return summary, runErr
}

func (s *Scraper) logSummary(summary *Summary) {
	s.logger.InfoWithFields("download summary", map[string]interface{}{
		"pages":      summary.Pages,
		"downloaded": summary.Total(),
		"rejected":   summary.Rejected,
		"duplicates": summary.Duplicates,
		"failed":     summary.Failed,
	})
	for ext, count := range summary.Downloaded {
		s.logger.InfoWithFields("format summary", map[string]interface{}{
			"format": ext,
			"files":  count,
		})
	}
}
