// Package scraper drives the download pipeline: a sequential page loop
// pulls post batches from the metadata endpoint, screens each post
// through the filter policy and the dedup index, and dispatches accepted
// posts to a bounded worker pool. Once every submitted download has
// completed, the sidecar normalizer runs over the output directory.
package scraper
