// Package httputil provides a security-hardened HTTP client, browser-like
// request helpers and input sanitization utilities.
package httputil

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tiktokzone/internal/apperr"
)

const (
	// DefaultMaxRedirects bounds redirect chains, short links included.
	DefaultMaxRedirects = 10

	// UserAgent mimics a current desktop Chrome.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	maxBodySize = 10 * 1024 * 1024 // 10MB
)

// NewClient creates a hardened HTTP client with secure defaults.
// It has no overall timeout: media bodies stream for as long as the caller
// reads them, so every call site bounds its own wait via Fetch or Send.
func NewClient() *http.Client {
	return NewClientWithRedirects(DefaultMaxRedirects)
}

// NewClientWithRedirects is NewClient with a custom redirect limit.
func NewClientWithRedirects(max int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			DisableCompression:  false,
			MaxIdleConnsPerHost: 5,
		},
		CheckRedirect: LimitRedirects(max),
	}
}

// LimitRedirects returns a CheckRedirect func that stops after max hops.
func LimitRedirects(max int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return fmt.Errorf("stopped after %d redirects", max)
		}
		return nil
	}
}

// NewRequest validates rawURL and builds a request carrying the default
// User-Agent.
func NewRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// NewFormRequest builds a urlencoded POST.
func NewFormRequest(ctx context.Context, rawURL string, form url.Values) (*http.Request, error) {
	req, err := NewRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	return req, nil
}

// SetBrowserHeaders makes req look like a top-level navigation from a search
// engine result.
func SetBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://www.google.com/")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// SetHeaders copies headers onto req.
func SetHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

// Fetch performs req and reads the whole body, all within timeout.
// Non-2xx responses yield an *apperr.StatusError. The returned response has
// its body already consumed and closed; it is useful for the final URL
// (resp.Request.URL) and headers.
func Fetch(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration) ([]byte, *http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, apperr.Transport(req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp, &apperr.StatusError{Code: resp.StatusCode, URL: redact(req.URL)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp, apperr.Transport("reading "+req.URL.Host, err)
	}
	return body, resp, nil
}

// Send performs req and returns as soon as response headers arrive. timeout
// bounds only the wait for headers; the body stays readable until closed,
// and closing it releases the request's context.
func Send(ctx context.Context, client *http.Client, req *http.Request, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(timeout, cancel)

	resp, err := client.Do(req.WithContext(ctx))
	fired := !timer.Stop()

	if fired {
		if resp != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, &apperr.Error{
			Kind: apperr.UpstreamTimeout,
			Op:   req.URL.Host,
			Msg:  fmt.Sprintf("no response within %s", timeout),
			Err:  err,
		}
	}
	if err != nil {
		cancel()
		return nil, apperr.Transport(req.URL.Host, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, &apperr.StatusError{Code: resp.StatusCode, URL: redact(req.URL)}
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// redact drops the query string, which often carries signed tokens.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	c.Fragment = ""
	return c.String()
}
