package provider

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

const snaptikBase = "https://snaptik.app"

var snaptikLinkPattern = regexp.MustCompile(`href="(https?://[^"\s]+\.mp4[^"\s]*)"`)

// SnapTik posts to snaptik.app, which answers with either an HTML fragment
// or a JSON list of links.
type SnapTik struct {
	base          string
	client        *http.Client
	submitTimeout time.Duration
	streamTimeout time.Duration
}

// NewSnapTik creates a SnapTik provider.
func NewSnapTik(client *http.Client, submitTimeout, streamTimeout time.Duration) *SnapTik {
	return &SnapTik{base: snaptikBase, client: client, submitTimeout: submitTimeout, streamTimeout: streamTimeout}
}

func (s *SnapTik) Name() string { return NameSnapTik }

func (s *SnapTik) Fetch(ctx context.Context, req media.DownloadRequest) (*media.Stream, error) {
	if req.Quality == media.QualityAudio {
		return nil, failedf(s.Name(), "audio downloads are not offered")
	}

	// Step 1: submit
	postReq, err := httputil.NewFormRequest(ctx, s.base+"/abc.php", url.Values{"url": {req.Ref.CanonicalURL()}})
	if err != nil {
		return nil, failed(s.Name(), err)
	}
	httputil.SetHeaders(postReq, map[string]string{
		"Accept":           "text/html",
		"Origin":           s.base,
		"Referer":          s.base + "/",
		"X-Requested-With": "XMLHttpRequest",
	})

	body, _, err := httputil.Fetch(ctx, s.client, postReq, s.submitTimeout)
	if err != nil {
		return nil, failed(s.Name(), fmt.Errorf("submitting url: %w", err))
	}

	// Step 2: extract the link
	link := parseSnapTikLink(body)
	if link == "" {
		return nil, failedf(s.Name(), "failed to extract an mp4 link")
	}

	// Step 3: stream it
	return openStream(ctx, s.client, link, s.base+"/", s.streamTimeout, s.Name(), req.Quality)
}

func parseSnapTikLink(body []byte) string {
	if m := snaptikLinkPattern.FindSubmatch(body); m != nil {
		return html.UnescapeString(string(m[1]))
	}
	if !gjson.ValidBytes(body) {
		return ""
	}
	var link string
	gjson.GetBytes(body, "links").ForEach(func(_, l gjson.Result) bool {
		u := l.Get("url").String()
		if strings.HasPrefix(u, "http") && (strings.Contains(u, ".mp4") || strings.Contains(u, "v_download")) {
			link = u
			return false
		}
		return true
	})
	return link
}
