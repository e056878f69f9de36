package resolve

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/extract"
	"tiktokzone/internal/media"
	"tiktokzone/internal/provider"
)

type fakeNormalizer struct {
	ref media.ContentReference
	err error
}

func (f fakeNormalizer) Normalize(context.Context, string) (media.ContentReference, error) {
	return f.ref, f.err
}

type fakeExtractor struct {
	name  string
	err   error
	calls *[]string
	prior *[]media.Attempt
}

func (f fakeExtractor) Name() string { return f.name }

func (f fakeExtractor) Extract(_ context.Context, src media.Source) (*media.ExtractionResult, error) {
	*f.calls = append(*f.calls, f.name)
	if f.prior != nil {
		*f.prior = append([]media.Attempt(nil), src.Prior...)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &media.ExtractionResult{Title: "from " + f.name}, nil
}

type fakeProvider struct {
	name  string
	err   error
	calls *[]string
}

func (f fakeProvider) Name() string { return f.name }

func (f fakeProvider) Fetch(context.Context, media.DownloadRequest) (*media.Stream, error) {
	*f.calls = append(*f.calls, f.name)
	if f.err != nil {
		return nil, f.err
	}
	return &media.Stream{Body: io.NopCloser(strings.NewReader(f.name)), ContentType: "video/mp4", Provider: f.name}, nil
}

var ref = media.ContentReference{Username: "alice", ContentID: "7123456789012345678", Kind: media.Video}

func TestExtractStopsAtFirstSuccess(t *testing.T) {
	var calls []string
	var seen []media.Attempt
	r := New(fakeNormalizer{ref: ref}, []extract.Extractor{
		fakeExtractor{name: "a", err: errors.New("a down"), calls: &calls},
		fakeExtractor{name: "b", err: errors.New("b down"), calls: &calls},
		fakeExtractor{name: "c", calls: &calls, prior: &seen},
		fakeExtractor{name: "d", calls: &calls},
	}, nil, nil, "")

	res, err := r.Extract(context.Background(), ref)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if res.Title != "from c" || res.Extractor != "c" {
		t.Errorf("result = %+v, want c's result", res)
	}
	if strings.Join(calls, ",") != "a,b,c" {
		t.Errorf("calls = %v, want a,b,c", calls)
	}
	if len(seen) != 2 || seen[0].Name != "a" || seen[1].Name != "b" {
		t.Errorf("c saw prior attempts %+v", seen)
	}
}

func TestExtractAllFail(t *testing.T) {
	var calls []string
	r := New(fakeNormalizer{ref: ref}, []extract.Extractor{
		fakeExtractor{name: "primary-site", err: errors.New("status 403"), calls: &calls},
		fakeExtractor{name: "mirror", err: errors.New("no token"), calls: &calls},
		fakeExtractor{name: "cdn-pattern", err: errors.New("not eligible"), calls: &calls},
	}, nil, nil, "")

	_, err := r.Extract(context.Background(), ref)
	if err == nil {
		t.Fatal("expected error")
	}
	if apperr.KindOf(err) != apperr.ExtractionFailed {
		t.Errorf("kind = %v, want extraction_failed", apperr.KindOf(err))
	}
	for _, name := range []string{"primary-site", "mirror", "cdn-pattern"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not mention %s", err, name)
		}
	}
}

func TestResolveInvalidInput(t *testing.T) {
	var calls []string
	r := New(fakeNormalizer{err: apperr.New(apperr.InvalidURL, "bad")},
		[]extract.Extractor{fakeExtractor{name: "a", calls: &calls}}, nil, nil, "")

	_, _, err := r.Resolve(context.Background(), "nonsense")
	if apperr.KindOf(err) != apperr.InvalidURL {
		t.Errorf("kind = %v, want invalid_url", apperr.KindOf(err))
	}
	if len(calls) != 0 {
		t.Errorf("extractors ran on invalid input: %v", calls)
	}
}

func TestResolveDownloadOrder(t *testing.T) {
	fail := errors.New("down")
	tests := []struct {
		name      string
		req       media.DownloadRequest
		failing   map[string]bool
		def       string
		wantCalls string
		wantFrom  string
	}{
		{
			name:      "default first",
			req:       media.DownloadRequest{Quality: media.QualityHD},
			def:       provider.NameTikWM,
			wantCalls: "tikwm",
			wantFrom:  "tikwm",
		},
		{
			name:      "preference via alias",
			req:       media.DownloadRequest{Quality: media.QualityHD, Provider: "alt2"},
			def:       provider.NameTikWM,
			failing:   map[string]bool{"snaptik": true},
			wantCalls: "snaptik,tikwm",
			wantFrom:  "tikwm",
		},
		{
			name:      "unknown preference falls back to default",
			req:       media.DownloadRequest{Quality: media.QualityHD, Provider: "nope"},
			def:       provider.NameSaveTT,
			failing:   map[string]bool{"savett": true, "tikwm": true},
			wantCalls: "savett,tikwm,snaptik",
			wantFrom:  "snaptik",
		},
		{
			name:      "watermark chain third strategy wins",
			req:       media.DownloadRequest{Quality: media.QualityHD, Watermark: true},
			def:       provider.NameTikWM,
			failing:   map[string]bool{"watermark-template": true, "original-source": true},
			wantCalls: "watermark-template,original-source,tikwm-watermark",
			wantFrom:  "tikwm-watermark",
		},
		{
			name:      "watermark chain exhausted falls through",
			req:       media.DownloadRequest{Quality: media.QualityHD, Watermark: true, Provider: "alt1"},
			def:       provider.NameTikWM,
			failing:   map[string]bool{"watermark-template": true, "original-source": true, "tikwm-watermark": true},
			wantCalls: "watermark-template,original-source,tikwm-watermark,savett",
			wantFrom:  "savett",
		},
		{
			name:      "audio skips watermark chain",
			req:       media.DownloadRequest{Quality: media.QualityAudio, Watermark: true},
			def:       provider.NameTikWM,
			wantCalls: "tikwm",
			wantFrom:  "tikwm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []string
			mk := func(names ...string) []provider.Provider {
				var out []provider.Provider
				for _, n := range names {
					p := fakeProvider{name: n, calls: &calls}
					if tt.failing[n] {
						p.err = fail
					}
					out = append(out, p)
				}
				return out
			}
			r := New(nil, nil,
				mk("watermark-template", "original-source", "tikwm-watermark"),
				mk("tikwm", "savett", "snaptik"),
				tt.def)

			s, err := r.ResolveDownload(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("ResolveDownload() error: %v", err)
			}
			defer s.Close()
			if s.Provider != tt.wantFrom {
				t.Errorf("stream from %q, want %q", s.Provider, tt.wantFrom)
			}
			if got := strings.Join(calls, ","); got != tt.wantCalls {
				t.Errorf("calls = %s, want %s", got, tt.wantCalls)
			}
		})
	}
}

func TestResolveDownloadAllFail(t *testing.T) {
	var calls []string
	down := func(n string) provider.Provider {
		return fakeProvider{name: n, err: apperr.New(apperr.ProviderFailed, n+" down"), calls: &calls}
	}
	r := New(nil, nil, nil, []provider.Provider{down("tikwm"), down("savett"), down("snaptik")}, "tikwm")

	_, err := r.ResolveDownload(context.Background(), media.DownloadRequest{Ref: ref, Quality: media.QualityHD})
	if apperr.KindOf(err) != apperr.AllProvidersFailed {
		t.Fatalf("kind = %v, want all_providers_failed", apperr.KindOf(err))
	}
	if len(calls) != 3 {
		t.Errorf("calls = %v, want every provider once", calls)
	}
	if !apperr.Has(err, apperr.ProviderFailed) {
		t.Error("aggregated error should keep the individual provider failures")
	}
}

func TestResolveDownloadCanceled(t *testing.T) {
	var calls []string
	r := New(nil, nil, nil, []provider.Provider{fakeProvider{name: "tikwm", calls: &calls}}, "tikwm")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.ResolveDownload(ctx, media.DownloadRequest{Quality: media.QualityHD}); err == nil {
		t.Fatal("expected error for canceled context")
	}
	if len(calls) != 0 {
		t.Errorf("providers ran after cancellation: %v", calls)
	}
}

// rewriteTransport sends every request to target, keeping the original Host.
type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	out.Host = req.URL.Host
	resp, err := rt.base.RoundTrip(out)
	if resp != nil {
		resp.Request = req
	}
	return resp, err
}

func TestExtractDegradesToCDNAfterReset(t *testing.T) {
	var (
		mu    sync.Mutex
		hosts []string
	)
	ts := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hosts = append(hosts, r.Host)
		mu.Unlock()

		if r.Host == "www.tiktok.com" {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Errorf("hijack: %v", err)
				return
			}
			conn.Close()
			return
		}
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	target, _ := url.Parse(ts.URL)
	client := &http.Client{Transport: &rewriteTransport{target: target, base: ts.Client().Transport}}
	r := New(fakeNormalizer{ref: ref}, []extract.Extractor{
		extract.NewPrimary(client, 2*time.Second),
		extract.NewMirror("https://ssstik.io", client, 2*time.Second, 2*time.Second),
		extract.NewCDN(),
	}, nil, nil, "")

	res, _, err := r.Resolve(context.Background(), ref.CanonicalURL())
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if res.Extractor != "cdn-pattern" {
		t.Errorf("extractor = %q, want cdn-pattern", res.Extractor)
	}
	if !strings.Contains(res.Thumbnail, ref.ContentID) {
		t.Errorf("thumbnail %q should embed the content ID", res.Thumbnail)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(hosts) < 2 || hosts[0] != "www.tiktok.com" || hosts[len(hosts)-1] != "ssstik.io" {
		t.Errorf("hosts = %v, want the primary site first and the mirror before the CDN fallback", hosts)
	}
}
