package booru

import (
	"strings"
	"time"
)

// Tag category names as the API reports them.
const (
	CategoryGeneral   = "general"
	CategoryCharacter = "character"
	CategoryCopyright = "copyright"
	CategoryArtist    = "artist"
	CategoryMeta      = "meta"
)

// Post is one search result from the metadata endpoint.
type Post struct {
	ID        int64  `json:"id"`
	FileURL   string `json:"file_url"`
	Width     int    `json:"image_width"`
	Height    int    `json:"image_height"`
	CreatedAt string `json:"created_at"`
	Score     int    `json:"score"`
	Rating    string `json:"rating"`

	// Space-separated tag strings, one per category plus the full set
	TagString          string `json:"tag_string"`
	TagStringGeneral   string `json:"tag_string_general"`
	TagStringCharacter string `json:"tag_string_character"`
	TagStringCopyright string `json:"tag_string_copyright"`
	TagStringArtist    string `json:"tag_string_artist"`
	TagStringMeta      string `json:"tag_string_meta"`
}

// HasMedia reports whether the post carries a downloadable file.
// Posts without a file URL (e.g. takedowns, restricted posts) are skipped.
func (p *Post) HasMedia() bool {
	return p.FileURL != ""
}

// Tags returns the ordered tag list for one category.
func (p *Post) Tags(category string) []string {
	switch category {
	case CategoryGeneral:
		return strings.Fields(p.TagStringGeneral)
	case CategoryCharacter:
		return strings.Fields(p.TagStringCharacter)
	case CategoryCopyright:
		return strings.Fields(p.TagStringCopyright)
	case CategoryArtist:
		return strings.Fields(p.TagStringArtist)
	case CategoryMeta:
		return strings.Fields(p.TagStringMeta)
	default:
		return nil
	}
}

// FlatTags returns every tag across all categories. Used only for
// blacklist matching.
func (p *Post) FlatTags() []string {
	return strings.Fields(p.TagString)
}

// CreatedTime parses the post's creation timestamp. The API reports
// RFC3339 with a numeric offset.
func (p *Post) CreatedTime() (time.Time, error) {
	return time.Parse(time.RFC3339, p.CreatedAt)
}
