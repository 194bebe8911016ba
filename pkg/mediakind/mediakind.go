// Package mediakind classifies downloaded media bytes and resolves the
// extension an artifact is written under.
package mediakind

import (
	"net/url"
	"path"
	"strings"

	"github.com/h2non/filetype"

	errs "boorufetch/pkg/errors"
)

// passthrough holds video-like formats whose bytes are written unchanged
// under the URL's extension, without decoding.
var passthrough = map[string]bool{
	"mp4":  true,
	"webm": true,
	"swf":  true,
	"zip":  true,
	"avif": true,
}

// ExtFromURL returns the lowercase extension of a media URL, without the
// leading dot.
func ExtFromURL(mediaURL string) string {
	p := mediaURL
	if u, err := url.Parse(mediaURL); err == nil {
		p = u.Path
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}

// IsPassthrough reports whether an extension is written without decoding.
func IsPassthrough(ext string) bool {
	return passthrough[ext]
}

// Resolve determines the extension to save media bytes under. Video-like
// URLs pass through on their URL extension; everything else must sniff as
// a known image format, and the sniffed extension wins over the URL's.
func Resolve(mediaURL string, data []byte) (string, error) {
	if ext := ExtFromURL(mediaURL); passthrough[ext] {
		return ext, nil
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", errs.New(errs.ErrorTypeDecode, "failed to sniff media type: %v", err)
	}
	if kind == filetype.Unknown {
		return "", errs.New(errs.ErrorTypeDecode, "media bytes are not a recognized format")
	}
	if kind.MIME.Type != "image" {
		return "", errs.New(errs.ErrorTypeDecode,
			"expected an image, got %s/%s", kind.MIME.Type, kind.MIME.Subtype)
	}
	return kind.Extension, nil
}
