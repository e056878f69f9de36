package provider

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

const savettBase = "https://savett.cc"

var savettTokenPattern = regexp.MustCompile(`name="_token".*?value="(.*?)"`)

// SaveTT drives the savett.cc form: fetch a CSRF token, submit the post URL,
// then scrape the result page for a media link.
type SaveTT struct {
	base          string
	client        *http.Client
	formTimeout   time.Duration
	submitTimeout time.Duration
	streamTimeout time.Duration
}

// NewSaveTT creates a SaveTT provider.
func NewSaveTT(client *http.Client, formTimeout, submitTimeout, streamTimeout time.Duration) *SaveTT {
	return &SaveTT{
		base:          savettBase,
		client:        client,
		formTimeout:   formTimeout,
		submitTimeout: submitTimeout,
		streamTimeout: streamTimeout,
	}
}

func (s *SaveTT) Name() string { return NameSaveTT }

func (s *SaveTT) Fetch(ctx context.Context, req media.DownloadRequest) (*media.Stream, error) {
	// Step 1: CSRF token
	token, err := s.fetchToken(ctx)
	if err != nil {
		return nil, failed(s.Name(), fmt.Errorf("fetching token: %w", err))
	}

	// Step 2: submit
	doc, err := s.submit(ctx, req.Ref.CanonicalURL(), token)
	if err != nil {
		return nil, failed(s.Name(), fmt.Errorf("submitting url: %w", err))
	}

	// Step 3: pick the link
	link := parseSaveTTLink(doc, req.Quality)
	if link == "" {
		return nil, failedf(s.Name(), "no %s link on result page", req.Quality.Extension())
	}

	// Step 4: stream it
	return openStream(ctx, s.client, link, s.base+"/", s.streamTimeout, s.Name(), req.Quality)
}

func (s *SaveTT) fetchToken(ctx context.Context) (string, error) {
	req, err := httputil.NewRequest(ctx, http.MethodGet, s.base+"/en", nil)
	if err != nil {
		return "", err
	}
	httputil.SetBrowserHeaders(req)

	body, _, err := httputil.Fetch(ctx, s.client, req, s.formTimeout)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if v := doc.Find(`input[name="_token"]`).First().AttrOr("value", ""); v != "" {
			return v, nil
		}
	}
	if m := savettTokenPattern.FindSubmatch(body); m != nil && len(m[1]) > 0 {
		return string(m[1]), nil
	}
	return "", fmt.Errorf("token not found")
}

func (s *SaveTT) submit(ctx context.Context, postURL, token string) (*goquery.Document, error) {
	req, err := httputil.NewFormRequest(ctx, s.base+"/en/download", url.Values{"url": {postURL}, "_token": {token}})
	if err != nil {
		return nil, err
	}
	httputil.SetHeaders(req, map[string]string{
		"Accept":  "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Origin":  s.base,
		"Referer": s.base + "/en",
	})

	body, _, err := httputil.Fetch(ctx, s.client, req, s.submitTimeout)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}

// parseSaveTTLink picks an absolute https media link. Audio wants .mp3;
// HD prefers an anchor labelled HD, SD prefers one that is not.
func parseSaveTTLink(doc *goquery.Document, q media.Quality) string {
	ext := "." + q.Extension()

	var links, labels []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !strings.HasPrefix(href, "https://") || !strings.Contains(strings.ToLower(href), ext) {
			return
		}
		links = append(links, href)
		labels = append(labels, strings.ToUpper(a.Text()))
	})
	if len(links) == 0 {
		return ""
	}

	for i, label := range labels {
		isHD := strings.Contains(label, "HD")
		if (q == media.QualityHD && isHD) || (q == media.QualitySD && !isHD) {
			return links[i]
		}
	}
	return links[0]
}
