package extract

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
	"go.uber.org/zap"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/httputil"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
)

// mirrorEndpoints are the submission paths the mirror has used over time.
var mirrorEndpoints = []string{"/abc?url=dl", "/api/1/fetch", "/download"}

var mirrorTokenPattern = regexp.MustCompile(`s_tt\s*=\s*['"]([^'"]+)['"]`)

// Mirror submits the post URL to a third-party download site and scrapes
// its result page.
type Mirror struct {
	base          string // e.g. "https://ssstik.io"
	client        *http.Client
	formTimeout   time.Duration
	submitTimeout time.Duration
}

// NewMirror creates a Mirror extractor against base.
func NewMirror(base string, client *http.Client, formTimeout, submitTimeout time.Duration) *Mirror {
	return &Mirror{
		base:          strings.TrimRight(base, "/"),
		client:        client,
		formTimeout:   formTimeout,
		submitTimeout: submitTimeout,
	}
}

func (m *Mirror) Name() string { return "mirror" }

// Extract tries each endpoint until one answers with a download page.
func (m *Mirror) Extract(ctx context.Context, src media.Source) (*media.ExtractionResult, error) {
	log := logging.FromContext(ctx)

	// Step 1: the form token is optional; some endpoints accept submissions without it
	token, err := m.fetchToken(ctx)
	if err != nil {
		log.Debug("mirror token unavailable", zap.Error(err))
	}

	// Step 2: submit to each guessed endpoint
	var lastErr error
	for _, endpoint := range mirrorEndpoints {
		doc, err := m.submit(ctx, endpoint, src.URL, token)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", endpoint, err)
			log.Debug("mirror endpoint failed", zap.String("endpoint", endpoint), zap.Error(err))
			continue
		}
		if !looksLikeDownloadPage(doc) {
			lastErr = fmt.Errorf("%s: response carried no download links", endpoint)
			continue
		}

		// Step 3: scrape the result page
		res := parseMirrorResult(doc, m.base)
		fallbackUsername(res, src)
		return res, nil
	}

	return nil, apperr.Wrap(apperr.ExtractionFailed, "", fmt.Errorf("no mirror endpoint answered: %w", lastErr))
}

func (m *Mirror) fetchToken(ctx context.Context) (string, error) {
	req, err := httputil.NewRequest(ctx, http.MethodGet, m.base+"/en", nil)
	if err != nil {
		return "", err
	}
	httputil.SetBrowserHeaders(req)

	body, _, err := httputil.Fetch(ctx, m.client, req, m.formTimeout)
	if err != nil {
		return "", err
	}

	if match := mirrorTokenPattern.FindSubmatch(body); match != nil {
		return string(match[1]), nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if v, ok := doc.Find(`input[name="tt"]`).Attr("value"); ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("token not found on form page")
}

func (m *Mirror) submit(ctx context.Context, endpoint, postURL, token string) (*goquery.Document, error) {
	form := url.Values{"id": {postURL}, "locale": {"en"}}
	if token != "" {
		form.Set("tt", token)
	}
	req, err := httputil.NewFormRequest(ctx, m.base+endpoint, form)
	if err != nil {
		return nil, err
	}
	httputil.SetHeaders(req, map[string]string{
		"Accept":     "text/html, */*",
		"Origin":     m.base,
		"Referer":    m.base + "/en",
		"HX-Request": "true",
	})

	body, _, err := httputil.Fetch(ctx, m.client, req, m.submitTimeout)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing result page: %w", err)
	}
	return doc, nil
}
