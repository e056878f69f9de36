package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"tiktokzone/internal/extract"
	"tiktokzone/internal/media"
)

const tiktokReferer = "https://www.tiktok.com/"

// Template builds a direct media URL from a configured pattern. The pattern
// may contain {id} and {username}.
type Template struct {
	pattern       string
	client        *http.Client
	streamTimeout time.Duration
}

// NewTemplate creates a Template provider.
func NewTemplate(pattern string, client *http.Client, streamTimeout time.Duration) *Template {
	return &Template{pattern: pattern, client: client, streamTimeout: streamTimeout}
}

func (t *Template) Name() string { return NameWatermarkTemplate }

func (t *Template) Fetch(ctx context.Context, req media.DownloadRequest) (*media.Stream, error) {
	if t.pattern == "" {
		return nil, failedf(t.Name(), "no template configured")
	}
	link := strings.NewReplacer("{id}", req.Ref.ContentID, "{username}", req.Ref.Username).Replace(t.pattern)
	return openStream(ctx, t.client, link, tiktokReferer, t.streamTimeout, t.Name(), req.Quality)
}

// Original re-reads the post page and streams the watermarked address the
// page itself carries. It keeps cookies between the page and media requests
// since the CDN checks them.
type Original struct {
	client        *http.Client
	pageTimeout   time.Duration
	streamTimeout time.Duration
}

// NewOriginal creates an Original provider. Transport and redirect policy
// are taken from client; each Fetch gets a fresh cookie jar.
func NewOriginal(client *http.Client, pageTimeout, streamTimeout time.Duration) *Original {
	return &Original{client: client, pageTimeout: pageTimeout, streamTimeout: streamTimeout}
}

func (o *Original) Name() string { return NameOriginalSource }

func (o *Original) Fetch(ctx context.Context, req media.DownloadRequest) (*media.Stream, error) {
	if !req.Ref.KnownUsername() {
		return nil, failedf(o.Name(), "post page needs a known username")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, failed(o.Name(), err)
	}
	client := &http.Client{
		Transport:     o.client.Transport,
		CheckRedirect: o.client.CheckRedirect,
		Jar:           jar,
	}

	// Step 1: post page
	pageURL := req.Ref.CanonicalURL()
	page, err := extract.FetchPage(ctx, client, pageURL, o.pageTimeout)
	if err != nil {
		return nil, failed(o.Name(), err)
	}
	res, err := extract.ParsePage(page, pageURL)
	if err != nil {
		return nil, failed(o.Name(), err)
	}

	// Step 2: pick the address
	link := res.Refs.Secondary
	if req.Quality == media.QualityAudio {
		link = res.Refs.Audio
	}
	if link == "" {
		return nil, failed(o.Name(), fmt.Errorf("page carries no %s address", req.Quality))
	}

	// Step 3: stream it
	return openStream(ctx, client, link, tiktokReferer, o.streamTimeout, o.Name(), req.Quality)
}
