// Package normalize turns user-supplied input into a media.ContentReference,
// resolving short links when needed.
package normalize

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/httputil"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
)

var (
	directPattern       = regexp.MustCompile(`@([^/?#\s]+)/(video|photo)/(\d{15,})`)
	bareIDPattern       = regexp.MustCompile(`(?:^|\D)(\d{15,})(?:\D|$)`)
	scriptIDPattern     = regexp.MustCompile(`"(?:id|itemId|aweme_id|videoId)"\s*:\s*"(\d{15,})"`)
	scriptHandlePattern = regexp.MustCompile(`"(?:uniqueId|unique_id)"\s*:\s*"([^"\\]+)"`)
)

// shortHosts are the redirecting short-link domains.
var shortHosts = map[string]bool{
	"vm.tiktok.com": true,
	"vt.tiktok.com": true,
}

// Normalizer resolves inputs into content references.
type Normalizer struct {
	client  *http.Client
	timeout time.Duration
}

// New creates a Normalizer. client is only used for short links and should
// cap redirects (httputil.NewClient does).
func New(client *http.Client, timeout time.Duration) *Normalizer {
	return &Normalizer{client: client, timeout: timeout}
}

// Normalize derives a content reference from input. Direct post URLs never
// touch the network.
func (n *Normalizer) Normalize(ctx context.Context, input string) (media.ContentReference, error) {
	log := logging.FromContext(ctx)
	cleaned := Clean(input)

	if ref, ok := MatchDirect(cleaned); ok {
		return ref, nil
	}

	if IsShortLink(cleaned) {
		ref, err := n.resolveShort(ctx, cleaned)
		if err == nil {
			log.Debug("resolved short link", zap.String("content_id", ref.ContentID), zap.String("username", ref.Username))
			return ref, nil
		}
		log.Warn("short link resolution failed", zap.String("input", cleaned), zap.Error(err))
	}

	if m := bareIDPattern.FindStringSubmatch(cleaned); m != nil {
		return media.ContentReference{Username: media.UnknownUsername, ContentID: m[1], Kind: media.Video}, nil
	}

	return media.ContentReference{}, apperr.New(apperr.InvalidURL,
		"invalid TikTok URL: expected https://www.tiktok.com/@user/video/ID or a vm.tiktok.com short link")
}

// Clean trims input, strips a stray "@" pasted before the scheme and assumes
// https for scheme-less tiktok.com links.
func Clean(input string) string {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "@http") {
		s = s[1:]
	}
	lower := strings.ToLower(s)
	if !strings.Contains(lower, "://") && strings.Contains(lower, "tiktok.com") && !strings.HasPrefix(s, "@") {
		s = "https://" + s
	}
	return s
}

// MatchDirect recognises @user/(video|photo)/id anywhere in s.
func MatchDirect(s string) (media.ContentReference, bool) {
	m := directPattern.FindStringSubmatch(s)
	if m == nil {
		return media.ContentReference{}, false
	}
	username, err := url.PathUnescape(m[1])
	if err != nil {
		username = m[1]
	}
	return media.ContentReference{Username: username, ContentID: m[3], Kind: media.ParseKind(m[2])}, true
}

// IsShortLink reports whether s points at one of the short-link domains.
func IsShortLink(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return shortHosts[strings.ToLower(u.Hostname())]
}

func (n *Normalizer) resolveShort(ctx context.Context, shortURL string) (media.ContentReference, error) {
	req, err := httputil.NewRequest(ctx, http.MethodGet, shortURL, nil)
	if err != nil {
		return media.ContentReference{}, apperr.Wrap(apperr.InvalidURL, "short link", err)
	}
	httputil.SetBrowserHeaders(req)

	// Step 1: the first redirect location that is a post URL. The landing
	// page behind it is never requested.
	var target media.ContentReference
	found := false
	client := *n.client
	next := client.CheckRedirect
	if next == nil {
		next = httputil.LimitRedirects(httputil.DefaultMaxRedirects)
	}
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if ref, ok := MatchDirect(r.URL.String()); ok {
			target, found = ref, true
			return http.ErrUseLastResponse
		}
		return next(r, via)
	}

	body, resp, err := httputil.Fetch(ctx, &client, req, n.timeout)
	if found {
		return target, nil
	}
	if err != nil {
		return media.ContentReference{}, err
	}

	// Step 2: whatever the landing page says about itself
	if ref, ok := fromDocument(body); ok {
		return ref, nil
	}

	return media.ContentReference{}, apperr.Newf(apperr.InvalidURL,
		"short link resolved to %s without a recognizable post", resp.Request.URL.Host)
}

// fromDocument searches the canonical link, then og:url, then inline
// scripts for an id-like and a handle-like token.
func fromDocument(body []byte) (media.ContentReference, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return media.ContentReference{}, false
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if ref, ok := MatchDirect(href); ok {
			return ref, true
		}
	}

	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		if ref, ok := MatchDirect(content); ok {
			return ref, true
		}
	}

	var ref media.ContentReference
	found := false
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		id := scriptIDPattern.FindStringSubmatch(text)
		if id == nil {
			return true
		}
		ref = media.ContentReference{Username: media.UnknownUsername, ContentID: id[1], Kind: media.Video}
		if handle := scriptHandlePattern.FindStringSubmatch(text); handle != nil {
			ref.Username = handle[1]
		}
		found = true
		return false
	})
	return ref, found
}
