// Package respond maps an extraction result onto the public JSON contract,
// filling defaults so every field is populated even after a partial
// extraction.
package respond

import (
	"fmt"
	"net/url"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

const (
	// DownloadRoute is the path prefix of the download proxy.
	DownloadRoute = "/api/tiktok-video-download"

	PlaceholderThumbnail = "https://placehold.co/600x800/fe2c55/ffffff?text=TikTok+Content"
	unknownUsername      = "N/A"
	avatarService        = "https://ui-avatars.com/api/"
)

// Response is the body of a successful lookup.
type Response struct {
	Thumbnail           string          `json:"thumbnail"`
	AlternateThumbnails []string        `json:"alternateThumbnails,omitempty"`
	Title               string          `json:"title"`
	Hashtags            []string        `json:"hashtags"`
	Duration            int             `json:"duration"`
	Profile             Profile         `json:"profile"`
	Stats               Stats           `json:"stats"`
	DownloadOptions     DownloadOptions `json:"downloadOptions"`
}

type Profile struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

type Stats struct {
	Likes     int64 `json:"likes"`
	Comments  int64 `json:"comments"`
	Bookmarks int64 `json:"bookmarks"`
	Views     int64 `json:"views"`
}

// DownloadOptions holds proxy links into this service plus the raw upstream
// links, when known.
type DownloadOptions struct {
	ProxyURL    string `json:"proxyUrl,omitempty"`
	AltProxyURL string `json:"altProxyUrl,omitempty"`
	AudioURL    string `json:"audioUrl,omitempty"`
	VideoURL    string `json:"videoUrl,omitempty"`
	HDVideoURL  string `json:"hdVideoUrl,omitempty"`
}

// ErrorBody is the body of every failed request.
type ErrorBody struct {
	Error string `json:"error"`
}

// Build produces the response for res. ref supplies the content ID and the
// username when the extractor found none; prefix starts generated filenames.
func Build(res *media.ExtractionResult, ref media.ContentReference, prefix string) Response {
	if res == nil {
		res = &media.ExtractionResult{}
	}

	username := res.Profile.Username
	if username == "" && ref.KnownUsername() {
		username = ref.Username
	}
	display := username
	if display == "" {
		display = unknownUsername
	}

	out := Response{
		Thumbnail:           res.Thumbnail,
		AlternateThumbnails: res.AlternateThumbnails,
		Title:               res.Title,
		Hashtags:            res.Hashtags,
		Duration:            res.Duration,
		Profile:             Profile{Username: display, Avatar: res.Profile.Avatar},
		DownloadOptions:     downloadOptions(res.Refs, ref.ContentID, username, prefix),
	}
	if out.Thumbnail == "" {
		out.Thumbnail = PlaceholderThumbnail
	}
	if out.Title == "" {
		out.Title = fmt.Sprintf("Video by @%s", display)
	}
	if out.Hashtags == nil {
		out.Hashtags = []string{}
	}
	if out.Profile.Avatar == "" {
		out.Profile.Avatar = Avatar(display)
	}
	if res.Stats != nil {
		out.Stats = Stats(*res.Stats)
	}
	return out
}

// Avatar returns a generated avatar image URL for name.
func Avatar(name string) string {
	q := url.Values{"name": {name}, "background": {"random"}, "size": {"128"}}
	return avatarService + "?" + q.Encode()
}

func downloadOptions(refs media.DownloadRefs, id, username, prefix string) DownloadOptions {
	opts := DownloadOptions{
		VideoURL:   refs.Secondary,
		HDVideoURL: refs.Primary,
	}
	if !media.ValidContentID(id) {
		return opts
	}

	user := url.Values{}
	if username != "" {
		user.Set("username", username)
	}

	opts.ProxyURL = proxyURL(id, prefix+"_HD.mp4", user, nil)
	opts.AltProxyURL = proxyURL(id, prefix+"_SD.mp4", user, url.Values{"pref_source": {"alt1"}, "watermark": {"true"}})
	if refs.Audio != "" {
		opts.AudioURL = proxyURL(id, prefix+"_audio.mp3", user, url.Values{"quality": {"audio"}})
	}
	return opts
}

func proxyURL(id, filename string, base, extra url.Values) string {
	q := url.Values{}
	for k, v := range base {
		q[k] = v
	}
	for k, v := range extra {
		q[k] = v
	}
	u := httputil.BuildURL(DownloadRoute, id, filename)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
