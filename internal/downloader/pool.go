package downloader

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"boorufetch/pkg/booru"
	"boorufetch/pkg/logger"
	"boorufetch/pkg/mediakind"
	"boorufetch/pkg/ratelimit"
	"boorufetch/pkg/tags"
)

// Job represents one accepted post to download and persist.
type Job struct {
	Post booru.Post
	Stem string // artifact file stem, id-prefixed
}

// Result represents the outcome of one job.
type Result struct {
	PostID   int64
	Ext      string // resolved artifact extension, empty on failure
	Size     int
	Skipped  bool // lost the claim to a concurrent or prior download
	Err      error
	Duration time.Duration
}

// MediaFetcher downloads raw media bytes.
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

// ArtifactStore persists artifacts and sidecars and arbitrates claims.
type ArtifactStore interface {
	Claim(id int64) bool
	Release(id int64)
	SaveArtifact(id int64, stem, ext string, data []byte) error
	SaveSidecar(stem, content string) error
}

// DefaultWorkers is the default pool size: one less than the available
// parallelism, at least one.
func DefaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

// WorkerPool executes download jobs with bounded concurrency. Per-post
// failures are isolated: they surface on the result channel and never
// affect other jobs.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	fetcher     MediaFetcher
	store       ArtifactStore
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a download worker pool. A non-positive numWorkers
// selects the default size.
func NewWorkerPool(
	numWorkers int,
	fetcher MediaFetcher,
	store ArtifactStore,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers()
	}
	if log == nil {
		log = logger.GetLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		fetcher:     fetcher,
		store:       store,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.InfoWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue and waits for every submitted job to finish.
// This is the completion barrier the run joins before its summary and
// the normalizer phase.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("worker pool stopped")
}

// Submit adds a new download job to the queue. Submissions race only
// with shutdown, never with each other: the run loop is the single
// submitter and calls Stop after its last Submit.
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
	}

	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob handles a single post: claim, fetch, classify, write
// artifact then sidecar.
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	post := job.Post
	result := Result{PostID: post.ID}

	fail := func(err error) Result {
		wp.store.Release(post.ID)
		result.Err = err
		result.Duration = time.Since(start)
		wp.logger.ErrorWithFields("failed to process post", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   post.ID,
			"error":     err.Error(),
		})
		return result
	}

	if !wp.store.Claim(post.ID) {
		wp.logger.DebugWithFields("post already downloaded or claimed", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   post.ID,
		})
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if wp.rateLimiter != nil && !wp.rateLimiter.Allow() {
		wp.rateLimiter.Wait()
	}

	data, err := wp.fetcher.DownloadMedia(wp.ctx, post.FileURL)
	if err != nil {
		return fail(fmt.Errorf("download failed: %w", err))
	}

	ext, err := mediakind.Resolve(post.FileURL, data)
	if err != nil {
		return fail(err)
	}

	if err := wp.store.SaveArtifact(post.ID, job.Stem, ext, data); err != nil {
		return fail(err)
	}

	if err := wp.store.SaveSidecar(job.Stem, tags.SidecarBody(&post)); err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		wp.logger.ErrorWithFields("failed to write sidecar", map[string]interface{}{
			"worker_id": workerID,
			"post_id":   post.ID,
			"error":     err.Error(),
		})
		return result
	}

	result.Ext = ext
	result.Size = len(data)
	result.Duration = time.Since(start)

	wp.logger.InfoWithFields("downloaded", map[string]interface{}{
		"post_id": post.ID,
		"ext":     ext,
		"bytes":   result.Size,
	})

	return result
}

// NumWorkers returns the pool size.
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}
