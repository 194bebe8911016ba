// Package tags builds sidecar content and artifact file stems from a
// post's tag metadata.
package tags

import (
	"strconv"
	"strings"

	"boorufetch/pkg/booru"
)

const (
	// maxStemTags caps how many tags a tag-embedding file stem may carry.
	maxStemTags = 50
	// maxStemLen is the file-stem length budget, kept well under common
	// filesystem filename limits once an extension is appended.
	maxStemLen = 220
)

// sidecarCategories are the tag categories written to the sidecar, in
// order. Artist and meta tags are excluded by policy.
var sidecarCategories = []string{
	booru.CategoryCopyright,
	booru.CategoryCharacter,
	booru.CategoryGeneral,
}

// stemCategories are the tag categories embedded in file names, in order.
var stemCategories = []string{
	booru.CategoryCharacter,
	booru.CategoryCopyright,
	booru.CategoryGeneral,
}

// SidecarBody renders a post's sidecar content: copyright, character, and
// general tags joined with ", ", underscores rendered as spaces.
func SidecarBody(post *booru.Post) string {
	var all []string
	for _, category := range sidecarCategories {
		all = append(all, post.Tags(category)...)
	}
	return strings.ReplaceAll(strings.Join(all, ", "), "_", " ")
}

// FileStem builds the deterministic artifact name stem for a post (without
// extension). The numeric id is always the leading token so dedup by
// prefix stays correct even if tag truncation differs across runs. In
// tag-embedding mode up to 50 sanitized tags follow, within a fixed
// length budget.
func FileStem(post *booru.Post, embedTags bool) string {
	stem := strconv.FormatInt(post.ID, 10)
	if !embedTags {
		return stem
	}

	count := 0
	for _, category := range stemCategories {
		for _, tag := range post.Tags(category) {
			if count >= maxStemTags {
				break
			}
			candidate := stem + "_" + Sanitize(tag)
			if len(candidate) > maxStemLen {
				return strings.TrimRight(stem, "_")
			}
			stem = candidate
			count++
		}
	}
	return strings.TrimRight(stem, "_")
}

// Sanitize replaces filesystem-special characters in a tag with
// underscores.
func Sanitize(tag string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, tag)
}
