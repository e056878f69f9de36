// Package extract derives display metadata and raw media links for a post.
// Each extractor is an isolated adapter around one source's markup.
package extract

import (
	"context"
	"regexp"
	"strings"

	"tiktokzone/internal/media"
)

// Extractor produces a metadata bundle for a post or fails.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, src media.Source) (*media.ExtractionResult, error)
}

var (
	titleHashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)
	urlHandlePattern    = regexp.MustCompile(`@([^/?#\s]+)`)
)

// hashtagsFromText collects #word tokens in order of first appearance.
func hashtagsFromText(text string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range titleHashtagPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			tags = append(tags, m[1])
		}
	}
	return tags
}

// usernameFromURL returns the @handle path segment of a post URL.
func usernameFromURL(rawURL string) string {
	if m := urlHandlePattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// fallbackUsername fills the profile handle from the page URL or the
// normalized reference when the source did not name the author.
func fallbackUsername(res *media.ExtractionResult, src media.Source) {
	if res.Profile.Username != "" {
		return
	}
	if u := usernameFromURL(src.URL); u != "" && u != media.UnknownUsername {
		res.Profile.Username = u
		return
	}
	if src.Ref.KnownUsername() {
		res.Profile.Username = src.Ref.Username
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
