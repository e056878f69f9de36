// Package provider defines the interface for download providers and their
// implementations. Each provider runs its own multi-step protocol against
// one third-party site and never retries internally.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

// Provider names, as accepted by pref_source and default_provider.
const (
	NameTikWM   = "tikwm"
	NameSaveTT  = "savett"
	NameSnapTik = "snaptik"

	NameWatermarkTemplate = "watermark-template"
	NameOriginalSource    = "original-source"
	NameTikWMWatermark    = "tikwm-watermark"
)

// Provider is the interface that download providers must implement.
type Provider interface {
	Name() string

	// Fetch locates the requested rendition and opens it for streaming.
	Fetch(ctx context.Context, req media.DownloadRequest) (*media.Stream, error)
}

// Names lists the plain download providers in their fixed fallback order.
func Names() []string {
	return []string{NameTikWM, NameSaveTT, NameSnapTik}
}

var aliases = map[string]string{
	"alt1": NameSaveTT,
	"alt2": NameSnapTik,
}

// Canonical resolves a user-supplied preference to a provider name.
// Unknown values yield "".
func Canonical(pref string) string {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if name, ok := aliases[pref]; ok {
		return name
	}
	if slices.Contains(Names(), pref) {
		return pref
	}
	return ""
}

func failed(name string, err error) error {
	return &apperr.Error{Kind: apperr.ProviderFailed, Op: name, Err: err}
}

func failedf(name, format string, args ...any) error {
	return &apperr.Error{Kind: apperr.ProviderFailed, Op: name, Msg: fmt.Sprintf(format, args...)}
}

// openStream performs the final streaming GET every provider ends with.
func openStream(ctx context.Context, client *http.Client, link, referer string, timeout time.Duration, name string, q media.Quality) (*media.Stream, error) {
	req, err := httputil.NewRequest(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, failed(name, fmt.Errorf("media link: %w", err))
	}
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := httputil.Send(ctx, client, req, timeout)
	if err != nil {
		return nil, failed(name, fmt.Errorf("streaming media: %w", err))
	}

	ct := resp.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "text/html") {
		resp.Body.Close()
		return nil, failedf(name, "media link returned an HTML page")
	}
	if ct == "" {
		ct = q.ContentType()
	}

	return &media.Stream{
		Body:          resp.Body,
		ContentType:   ct,
		ContentLength: resp.ContentLength,
		Provider:      name,
	}, nil
}
