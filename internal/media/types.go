// Package media defines shared types for the tiktokzone application.
package media

import (
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Kind represents whether a post is a video or a photo carousel.
type Kind int

const (
	Video Kind = iota
	Photo
)

func (k Kind) String() string {
	switch k {
	case Video:
		return "video"
	case Photo:
		return "photo"
	default:
		return "unknown"
	}
}

// ParseKind maps a URL path segment onto a Kind. Anything but "photo" is a video.
func ParseKind(s string) Kind {
	if strings.EqualFold(s, "photo") {
		return Photo
	}
	return Video
}

// UnknownUsername is used when only a bare content ID could be recovered.
const UnknownUsername = "unknown"

var contentIDPattern = regexp.MustCompile(`^\d{15,}$`)

// ValidContentID reports whether id is a numeric post ID of at least 15 digits.
func ValidContentID(id string) bool {
	return contentIDPattern.MatchString(id)
}

// ContentReference identifies a single post.
type ContentReference struct {
	Username  string
	ContentID string
	Kind      Kind
}

// Valid reports whether the reference carries a usable content ID.
func (r ContentReference) Valid() bool {
	return ValidContentID(r.ContentID)
}

// KnownUsername reports whether Username came from the input rather than a placeholder.
func (r ContentReference) KnownUsername() bool {
	return r.Username != "" && r.Username != UnknownUsername
}

// CanonicalURL renders the reference as a www.tiktok.com post URL.
func (r ContentReference) CanonicalURL() string {
	return fmt.Sprintf("https://www.tiktok.com/@%s/%s/%s", r.Username, r.Kind, r.ContentID)
}

// Profile is the post author.
type Profile struct {
	Username string
	Avatar   string
}

// Stats holds engagement counters.
type Stats struct {
	Likes     int64
	Comments  int64
	Bookmarks int64
	Views     int64
}

// DownloadRefs are raw upstream media locators found during extraction.
type DownloadRefs struct {
	Primary   string // best available, usually HD without watermark
	Secondary string // alternate video link, may carry a watermark
	Audio     string
}

// ExtractionResult is the metadata bundle produced by exactly one extractor.
type ExtractionResult struct {
	Extractor           string
	Title               string
	Hashtags            []string
	Thumbnail           string
	AlternateThumbnails []string
	Duration            int // seconds
	Profile             Profile
	Stats               *Stats // nil when the extractor found none
	Refs                DownloadRefs
}

// Source is the input handed to an extractor.
type Source struct {
	Ref   ContentReference
	URL   string    // page to scrape
	Prior []Attempt // extractors that already failed for this request
}

// Attempt records the outcome of one strategy within a fallback chain.
type Attempt struct {
	Name string
	Err  error
}

// Succeeded reports whether the attempt produced a result.
func (a Attempt) Succeeded() bool { return a.Err == nil }

// Quality is the requested rendition of a download.
type Quality string

const (
	QualityHD    Quality = "hd"
	QualitySD    Quality = "sd"
	QualityAudio Quality = "audio"
)

// ParseQuality accepts hd, sd or audio (case-insensitive).
func ParseQuality(s string) (Quality, bool) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityHD, QualitySD, QualityAudio:
		return q, true
	}
	return "", false
}

// ContentType is the fallback MIME type for streams of this quality.
func (q Quality) ContentType() string {
	if q == QualityAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// Extension is the file extension used for generated filenames.
func (q Quality) Extension() string {
	if q == QualityAudio {
		return "mp3"
	}
	return "mp4"
}

// DownloadRequest carries everything a provider needs to locate a media stream.
type DownloadRequest struct {
	Ref       ContentReference
	Filename  string
	Quality   Quality
	Provider  string // preferred provider, empty for the default
	Watermark bool
}

// Stream is an open upstream media body. The caller must Close it.
type Stream struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64 // -1 when unknown
	Provider      string
}

// Close releases the upstream connection.
func (s *Stream) Close() error {
	if s == nil || s.Body == nil {
		return nil
	}
	return s.Body.Close()
}
