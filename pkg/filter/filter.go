// Package filter evaluates the post acceptance policy. Evaluation is a
// pure function over a post and an immutable policy: no I/O, no side
// effects, deterministic results.
package filter

import (
	"fmt"
	"strings"
	"time"

	"boorufetch/pkg/booru"
	"boorufetch/pkg/config"
)

// Predicate names reported in rejection results.
const (
	PredicateMediaURL   = "media_url"
	PredicateBlacklist  = "blacklist"
	PredicateDimensions = "dimensions"
	PredicateIDRange    = "id_range"
	PredicateDateRange  = "date_range"
	PredicateScoreRange = "score_range"
	PredicateRating     = "rating"
)

// Result is the outcome of evaluating one post.
type Result struct {
	Accepted  bool
	Predicate string // rejecting predicate, empty when accepted
	Reason    string
}

func accept() Result {
	return Result{Accepted: true}
}

func reject(predicate, format string, args ...interface{}) Result {
	return Result{Predicate: predicate, Reason: fmt.Sprintf(format, args...)}
}

// Policy is the immutable acceptance policy, built once per run.
type Policy struct {
	blacklist map[string]struct{}

	minWidth, minHeight int
	maxWidth, maxHeight int

	minID, maxID int64 // 0 = no bound

	minDate, maxDate *time.Time // inclusive, nil = no bound

	minScore, maxScore *int // inclusive, nil = no bound

	ratings map[string]struct{} // empty = all allowed
}

// NewPolicy builds a policy from the filter configuration.
func NewPolicy(cfg *config.FilterConfig) (*Policy, error) {
	p := &Policy{
		blacklist: make(map[string]struct{}, len(cfg.Blacklist)),
		minWidth:  cfg.MinWidth,
		minHeight: cfg.MinHeight,
		maxWidth:  cfg.MaxWidth,
		maxHeight: cfg.MaxHeight,
		minID:     cfg.MinID,
		maxID:     cfg.MaxID,
		minScore:  cfg.MinScore,
		maxScore:  cfg.MaxScore,
		ratings:   make(map[string]struct{}, len(cfg.Ratings)),
	}

	for _, tag := range cfg.Blacklist {
		p.blacklist[tag] = struct{}{}
	}
	for _, r := range cfg.Ratings {
		p.ratings[strings.ToLower(r)] = struct{}{}
	}

	if cfg.MinDate != "" {
		t, err := time.Parse("2006-01-02", cfg.MinDate)
		if err != nil {
			return nil, fmt.Errorf("invalid min date: %w", err)
		}
		p.minDate = &t
	}
	if cfg.MaxDate != "" {
		t, err := time.Parse("2006-01-02", cfg.MaxDate)
		if err != nil {
			return nil, fmt.Errorf("invalid max date: %w", err)
		}
		// Inclusive upper bound covers the whole day
		t = t.Add(24*time.Hour - time.Nanosecond)
		p.maxDate = &t
	}

	return p, nil
}

// Evaluate screens one post against the policy, short-circuiting on the
// first rejecting predicate. Cheapest, most-likely-to-reject checks run
// first.
func (p *Policy) Evaluate(post *booru.Post) Result {
	if !post.HasMedia() {
		return reject(PredicateMediaURL, "post has no media URL")
	}

	for _, tag := range post.FlatTags() {
		if _, forbidden := p.blacklist[tag]; forbidden {
			return reject(PredicateBlacklist, "blacklisted tag %q", tag)
		}
	}

	// Lower bound is an inclusive floor, upper bound an exclusive ceiling
	if post.Width < p.minWidth || post.Height < p.minHeight ||
		post.Width >= p.maxWidth || post.Height >= p.maxHeight {
		return reject(PredicateDimensions, "size %dx%d outside [%dx%d, %dx%d)",
			post.Width, post.Height, p.minWidth, p.minHeight, p.maxWidth, p.maxHeight)
	}

	if p.minID > 0 && post.ID < p.minID {
		return reject(PredicateIDRange, "id %d below minimum %d", post.ID, p.minID)
	}
	if p.maxID > 0 && post.ID > p.maxID {
		return reject(PredicateIDRange, "id %d above maximum %d", post.ID, p.maxID)
	}

	if p.minDate != nil || p.maxDate != nil {
		created, err := post.CreatedTime()
		if err != nil {
			return reject(PredicateDateRange, "unparseable creation time %q", post.CreatedAt)
		}
		naive := stripZone(created)
		if p.minDate != nil && naive.Before(*p.minDate) {
			return reject(PredicateDateRange, "created %s before minimum %s",
				naive.Format("2006-01-02"), p.minDate.Format("2006-01-02"))
		}
		if p.maxDate != nil && naive.After(*p.maxDate) {
			return reject(PredicateDateRange, "created %s after maximum %s",
				naive.Format("2006-01-02"), p.maxDate.Format("2006-01-02"))
		}
	}

	if p.minScore != nil && post.Score < *p.minScore {
		return reject(PredicateScoreRange, "score %d below minimum %d", post.Score, *p.minScore)
	}
	if p.maxScore != nil && post.Score > *p.maxScore {
		return reject(PredicateScoreRange, "score %d above maximum %d", post.Score, *p.maxScore)
	}

	if len(p.ratings) > 0 {
		if _, ok := p.ratings[strings.ToLower(post.Rating)]; !ok {
			return reject(PredicateRating, "rating %q not in allowed set", post.Rating)
		}
	}

	return accept()
}

// stripZone drops the timestamp's zone for timezone-naive comparison
// against the configured date bounds.
func stripZone(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
