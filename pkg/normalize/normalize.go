// Package normalize implements the post-run sidecar passes: search-tag
// promotion and trigger-word prefixing. Both passes run strictly after
// all downloads complete and both are idempotent.
package normalize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"boorufetch/pkg/logger"
	"boorufetch/pkg/storage"
)

// Normalizer rewrites sidecar content across the output directory.
type Normalizer struct {
	dir        string
	searchTags []string // ordered, underscores rendered as spaces
	trigger    string
	logger     logger.Logger
}

// New creates a normalizer. searchQuery is the raw space-separated tag
// query; its terms are normalized the way sidecar tags are written
// (underscores to spaces) and keep their query order, so promotion output
// is deterministic across runs.
func New(dir, searchQuery, trigger string, log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.GetLogger()
	}

	var searchTags []string
	seen := make(map[string]bool)
	for _, term := range strings.Fields(searchQuery) {
		term = strings.ReplaceAll(term, "_", " ")
		if !seen[term] {
			seen[term] = true
			searchTags = append(searchTags, term)
		}
	}

	return &Normalizer{
		dir:        dir,
		searchTags: searchTags,
		trigger:    strings.TrimSpace(trigger),
		logger:     log,
	}
}

// PromoteSearchTags rewrites every sidecar so tags that are part of the
// search query come first, both groups keeping their relative order.
func (n *Normalizer) PromoteSearchTags() error {
	if len(n.searchTags) == 0 {
		return nil
	}

	n.logger.Info("promoting search tags in sidecar files")
	return n.eachSidecar(func(content string) string {
		// A trigger prefix applied by an earlier run stays pinned in front
		var head string
		if n.trigger != "" {
			if content == n.trigger {
				return content
			}
			if strings.HasPrefix(content, n.trigger+", ") {
				head = n.trigger + ", "
				content = strings.TrimPrefix(content, head)
			}
		}

		current := strings.Split(content, ", ")

		member := make(map[string]bool, len(current))
		for _, tag := range current {
			member[tag] = true
		}

		var promoted []string
		for _, tag := range n.searchTags {
			if member[tag] {
				promoted = append(promoted, tag)
			}
		}

		promotedSet := make(map[string]bool, len(promoted))
		for _, tag := range promoted {
			promotedSet[tag] = true
		}

		var rest []string
		for _, tag := range current {
			if !promotedSet[tag] {
				rest = append(rest, tag)
			}
		}

		return head + strings.Join(append(promoted, rest...), ", ")
	})
}

// ApplyTrigger prepends the configured trigger words to every sidecar.
// Sidecars already carrying the prefix are left alone, so running the
// pass twice never duplicates the trigger.
func (n *Normalizer) ApplyTrigger() error {
	if n.trigger == "" {
		return nil
	}

	n.logger.WithField("trigger", n.trigger).Info("prepending trigger words to sidecar files")
	return n.eachSidecar(func(content string) string {
		if content == n.trigger || strings.HasPrefix(content, n.trigger+", ") {
			return content
		}

		out := n.trigger + ", " + content
		// Collapse artifacts of concatenating around empty content
		out = strings.ReplaceAll(out, ", ,", ",")
		out = strings.ReplaceAll(out, ",,", ",")
		out = strings.ReplaceAll(out, "  ", " ")
		out = strings.ReplaceAll(out, "  ", " ")
		return strings.TrimSuffix(strings.TrimSpace(out), ",")
	})
}

// Run executes both passes in order: promotion first, then the trigger
// prefix, so the trigger always ends up at the very front.
func (n *Normalizer) Run(promote bool) error {
	if promote {
		if err := n.PromoteSearchTags(); err != nil {
			return err
		}
	}
	return n.ApplyTrigger()
}

// eachSidecar applies a content rewrite to every sidecar file in the
// output directory, skipping unchanged files.
func (n *Normalizer) eachSidecar(rewrite func(string) string) error {
	entries, err := os.ReadDir(n.dir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), storage.SidecarExt) {
			continue
		}

		path := filepath.Join(n.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read sidecar %s: %w", path, err)
		}

		content := strings.TrimSpace(string(data))
		updated := rewrite(content)
		if updated == content {
			continue
		}

		if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
			return fmt.Errorf("failed to write sidecar %s: %w", path, err)
		}
	}

	return nil
}
