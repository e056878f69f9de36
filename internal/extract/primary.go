package extract

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/httputil"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
)

const (
	// PrimaryMaxRedirects bounds redirects while fetching a post page.
	PrimaryMaxRedirects = 5

	rehydrationScriptID = "__UNIVERSAL_DATA_FOR_REHYDRATION__"
	itemPath            = `__DEFAULT_SCOPE__.webapp\.video-detail.itemInfo.itemStruct`
)

var (
	metaDescriptionPattern = regexp.MustCompile(`<meta[^>]+name="description"[^>]+content="([^"]*)"`)
	metaOGTitlePattern     = regexp.MustCompile(`<meta[^>]+property="og:title"[^>]+content="([^"]*)"`)
	metaOGImagePattern     = regexp.MustCompile(`<meta[^>]+property="og:image"[^>]+content="([^"]*)"`)
)

// Primary scrapes the post page on www.tiktok.com itself.
type Primary struct {
	client  *http.Client
	timeout time.Duration
}

// NewPrimary creates a Primary extractor. client should cap redirects at
// PrimaryMaxRedirects.
func NewPrimary(client *http.Client, timeout time.Duration) *Primary {
	return &Primary{client: client, timeout: timeout}
}

func (p *Primary) Name() string { return "primary-site" }

// Extract fetches the post page and parses it.
func (p *Primary) Extract(ctx context.Context, src media.Source) (*media.ExtractionResult, error) {
	page, err := FetchPage(ctx, p.client, src.URL, p.timeout)
	if err != nil {
		return nil, err
	}

	res, err := ParsePage(page, src.URL)
	if err != nil {
		return nil, err
	}
	fallbackUsername(res, src)

	logging.FromContext(ctx).Debug("parsed content page",
		zap.Bool("has_stats", res.Stats != nil),
		zap.Int("hashtags", len(res.Hashtags)))
	return res, nil
}

// FetchPage GETs a post page with browser-like headers.
func FetchPage(ctx context.Context, client *http.Client, pageURL string, timeout time.Duration) ([]byte, error) {
	req, err := httputil.NewRequest(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	httputil.SetBrowserHeaders(req)

	body, _, err := httputil.Fetch(ctx, client, req, timeout)
	if err != nil {
		return nil, fmt.Errorf("fetching content page: %w", err)
	}
	return body, nil
}

// ParsePage extracts a result from post page HTML. The embedded JSON payload
// wins; meta tags are the fallback. It fails when neither yields a title or
// a thumbnail.
func ParsePage(page []byte, pageURL string) (*media.ExtractionResult, error) {
	if payload, ok := findScript(page, rehydrationScriptID); ok {
		if res, ok := parseItem(payload); ok {
			return res, nil
		}
	}

	res := parseMeta(page)
	if res.Title == "" && res.Thumbnail == "" {
		return nil, apperr.New(apperr.ExtractionFailed, "page has neither the embedded payload nor usable meta tags")
	}
	res.Profile.Username = usernameFromURL(pageURL)
	res.Hashtags = hashtagsFromText(res.Title)
	return res, nil
}

// findScript returns the text of the <script> element with the given id.
func findScript(page []byte, id string) ([]byte, bool) {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil, false
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "id" && string(val) == id {
					if z.Next() != html.TextToken {
						return nil, false
					}
					return bytes.Clone(z.Text()), true
				}
				if !more {
					break
				}
			}
		}
	}
}

// parseItem walks the rehydration payload down to the post item.
func parseItem(payload []byte) (*media.ExtractionResult, bool) {
	if !gjson.ValidBytes(payload) {
		return nil, false
	}
	item := gjson.GetBytes(payload, itemPath)
	if !item.IsObject() {
		return nil, false
	}

	res := &media.ExtractionResult{
		Title:     item.Get("desc").String(),
		Thumbnail: firstNonEmpty(item.Get("video.cover").String(), item.Get("video.originCover").String()),
		Duration:  int(item.Get("video.duration").Int()),
		Profile: media.Profile{
			Username: item.Get("author.uniqueId").String(),
			Avatar:   firstNonEmpty(item.Get("author.avatarLarger").String(), item.Get("author.avatarMedium").String()),
		},
	}

	// statsV2 carries the same counters as strings on newer pages
	stats := item.Get("stats")
	if !stats.Exists() {
		stats = item.Get("statsV2")
	}
	if stats.Exists() {
		res.Stats = &media.Stats{
			Likes:     stats.Get("diggCount").Int(),
			Comments:  stats.Get("commentCount").Int(),
			Bookmarks: stats.Get("collectCount").Int(),
			Views:     stats.Get("playCount").Int(),
		}
	}

	item.Get("textExtra").ForEach(func(_, tag gjson.Result) bool {
		if name := strings.TrimSpace(tag.Get("hashtagName").String()); name != "" {
			res.Hashtags = append(res.Hashtags, name)
		}
		return true
	})
	if len(res.Hashtags) == 0 {
		res.Hashtags = hashtagsFromText(res.Title)
	}

	play := item.Get("video.playAddr").String()
	res.Refs = media.DownloadRefs{
		Primary:   firstNonEmpty(item.Get("video.downloadAddr").String(), play),
		Secondary: play,
		Audio:     item.Get("music.playUrl").String(),
	}

	item.Get("imagePost.images").ForEach(func(_, img gjson.Result) bool {
		if u := img.Get("imageURL.urlList.0").String(); u != "" {
			res.AlternateThumbnails = append(res.AlternateThumbnails, u)
		}
		return true
	})
	if res.Thumbnail == "" {
		res.Thumbnail = item.Get("imagePost.cover.imageURL.urlList.0").String()
	}
	if res.Thumbnail == "" && len(res.AlternateThumbnails) > 0 {
		res.Thumbnail = res.AlternateThumbnails[0]
	}

	return res, true
}

// parseMeta reads description, title and image meta tags.
func parseMeta(page []byte) *media.ExtractionResult {
	res := &media.ExtractionResult{}
	if m := metaDescriptionPattern.FindSubmatch(page); m != nil {
		res.Title = html.UnescapeString(string(m[1]))
	}
	if res.Title == "" {
		if m := metaOGTitlePattern.FindSubmatch(page); m != nil {
			res.Title = html.UnescapeString(string(m[1]))
		}
	}
	if m := metaOGImagePattern.FindSubmatch(page); m != nil {
		res.Thumbnail = html.UnescapeString(string(m[1]))
		if strings.HasPrefix(res.Thumbnail, "//") {
			res.Thumbnail = "https:" + res.Thumbnail
		}
	}
	return res
}
