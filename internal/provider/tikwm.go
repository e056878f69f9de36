package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

const tikwmBase = "https://www.tikwm.com"

// TikWM talks to the tikwm.com JSON API. With watermark set it serves the
// watermarked rendition instead.
type TikWM struct {
	base          string
	client        *http.Client
	apiTimeout    time.Duration
	streamTimeout time.Duration
	watermark     bool
}

// NewTikWM creates the plain TikWM provider.
func NewTikWM(client *http.Client, apiTimeout, streamTimeout time.Duration) *TikWM {
	return &TikWM{base: tikwmBase, client: client, apiTimeout: apiTimeout, streamTimeout: streamTimeout}
}

// NewTikWMWatermark creates the TikWM provider that returns the wmplay link.
func NewTikWMWatermark(client *http.Client, apiTimeout, streamTimeout time.Duration) *TikWM {
	t := NewTikWM(client, apiTimeout, streamTimeout)
	t.watermark = true
	return t
}

func (t *TikWM) Name() string {
	if t.watermark {
		return NameTikWMWatermark
	}
	return NameTikWM
}

// Fetch asks the API for the post and streams the matching link.
func (t *TikWM) Fetch(ctx context.Context, req media.DownloadRequest) (*media.Stream, error) {
	hd := "1"
	if req.Quality == media.QualitySD {
		hd = "0"
	}

	// Step 1: API lookup
	form := url.Values{"url": {req.Ref.CanonicalURL()}, "hd": {hd}}
	apiReq, err := httputil.NewFormRequest(ctx, t.base+"/api/", form)
	if err != nil {
		return nil, failed(t.Name(), err)
	}
	httputil.SetHeaders(apiReq, map[string]string{
		"Accept":           "application/json, text/javascript, */*; q=0.01",
		"Origin":           t.base,
		"Referer":          t.base + "/",
		"X-Requested-With": "XMLHttpRequest",
	})

	body, _, err := httputil.Fetch(ctx, t.client, apiReq, t.apiTimeout)
	if err != nil {
		return nil, failed(t.Name(), fmt.Errorf("api request: %w", err))
	}

	// Step 2: pick the link field for the requested rendition
	link, err := t.pickLink(body, req.Quality)
	if err != nil {
		return nil, failed(t.Name(), err)
	}

	// Step 3: stream it
	return openStream(ctx, t.client, link, t.base+"/", t.streamTimeout, t.Name(), req.Quality)
}

// linkFields lists the API fields to try, in order, for a rendition.
func (t *TikWM) linkFields(q media.Quality) []string {
	switch {
	case q == media.QualityAudio:
		return []string{"music"}
	case t.watermark:
		return []string{"wmplay"}
	case q == media.QualitySD:
		return []string{"play"}
	default:
		return []string{"hdplay", "play"}
	}
}

func (t *TikWM) pickLink(body []byte, q media.Quality) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("api returned a non-JSON body")
	}
	r := gjson.ParseBytes(body)
	if code := r.Get("code").Int(); code != 0 || !r.Get("data").IsObject() {
		msg := r.Get("msg").String()
		if msg == "" {
			msg = fmt.Sprintf("code %d", code)
		}
		return "", fmt.Errorf("api error: %s", msg)
	}

	fields := t.linkFields(q)
	data := r.Get("data")
	for _, f := range fields {
		if link := strings.TrimSpace(data.Get(f).String()); link != "" {
			return httputil.AbsoluteURL(t.base, link), nil
		}
	}
	return "", fmt.Errorf("api response has no %s link", strings.Join(fields, "/"))
}
