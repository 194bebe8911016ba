package scraper

import (
	"context"

	"boorufetch/pkg/booru"
)

// BooruClient defines the API operations the pipeline consumes.
type BooruClient interface {
	FetchPage(ctx context.Context, tags string, limit, page int) ([]booru.Post, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}
