// Package resolve runs the fallback chains: extractors for metadata and
// providers for downloads, each tried strictly in order until one succeeds.
package resolve

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/config"
	"tiktokzone/internal/extract"
	"tiktokzone/internal/httputil"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
	"tiktokzone/internal/normalize"
	"tiktokzone/internal/provider"
)

// Normalizer turns raw input into a content reference.
type Normalizer interface {
	Normalize(ctx context.Context, input string) (media.ContentReference, error)
}

// Resolver holds the ordered strategy lists. It keeps no per-request state
// and is safe for concurrent use.
type Resolver struct {
	normalizer      Normalizer
	extractors      []extract.Extractor
	watermark       []provider.Provider
	providers       []provider.Provider
	defaultProvider string
}

// New creates a Resolver. providers is the plain download chain in its fixed
// fallback order; watermark is tried first when a request asks for it.
func New(n Normalizer, extractors []extract.Extractor, watermark, providers []provider.Provider, defaultProvider string) *Resolver {
	return &Resolver{
		normalizer:      n,
		extractors:      extractors,
		watermark:       watermark,
		providers:       providers,
		defaultProvider: provider.Canonical(defaultProvider),
	}
}

// FromConfig wires the production chains.
func FromConfig(cfg *config.Config) *Resolver {
	t := cfg.Timeouts
	client := httputil.NewClient()
	pageClient := httputil.NewClientWithRedirects(extract.PrimaryMaxRedirects)

	// The CDN fallback only answers after a connection reset, and only once
	// the mirror has also failed; a blocked primary site therefore costs the
	// mirror's form and submit timeouts before it degrades.
	extractors := []extract.Extractor{
		extract.NewPrimary(pageClient, t.Page),
		extract.NewMirror(cfg.MirrorBase, client, t.Form, t.Submit),
		extract.NewCDN(),
	}
	watermark := []provider.Provider{
		provider.NewTemplate(cfg.WatermarkTemplate, client, t.Stream),
		provider.NewOriginal(pageClient, t.Page, t.Stream),
		provider.NewTikWMWatermark(client, t.API, t.Stream),
	}
	providers := []provider.Provider{
		provider.NewTikWM(client, t.API, t.Stream),
		provider.NewSaveTT(client, t.Form, t.Submit, t.Stream),
		provider.NewSnapTik(client, t.Submit, t.Stream),
	}
	return New(normalize.New(client, t.ShortLink), extractors, watermark, providers, cfg.DefaultProvider)
}

// Normalize delegates to the configured normalizer.
func (r *Resolver) Normalize(ctx context.Context, input string) (media.ContentReference, error) {
	return r.normalizer.Normalize(ctx, input)
}

// Resolve normalizes input and extracts metadata for it.
func (r *Resolver) Resolve(ctx context.Context, input string) (*media.ExtractionResult, media.ContentReference, error) {
	ref, err := r.normalizer.Normalize(ctx, input)
	if err != nil {
		return nil, ref, err
	}
	res, err := r.Extract(ctx, ref)
	return res, ref, err
}

// Extract tries each extractor in order and returns the first result.
// Later extractors are never consulted once one succeeds.
func (r *Resolver) Extract(ctx context.Context, ref media.ContentReference) (*media.ExtractionResult, error) {
	log := logging.FromContext(ctx).With(zap.String("content_id", ref.ContentID))
	src := media.Source{Ref: ref, URL: ref.CanonicalURL()}

	var errs []error
	for _, e := range r.extractors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := e.Extract(ctx, src)
		if err == nil {
			res.Extractor = e.Name()
			log.Info("extraction succeeded", zap.String("strategy", e.Name()), zap.Int("attempt", len(src.Prior)+1))
			return res, nil
		}

		log.Warn("extraction failed", zap.String("strategy", e.Name()), zap.Error(err))
		src.Prior = append(src.Prior, media.Attempt{Name: e.Name(), Err: err})
		errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
	}

	return nil, apperr.Join(apperr.ExtractionFailed,
		fmt.Sprintf("all %d extractors failed", len(r.extractors)), errs...)
}

// ResolveDownload walks the provider chain for req and returns the first
// stream that opens. The caller owns the returned stream.
func (r *Resolver) ResolveDownload(ctx context.Context, req media.DownloadRequest) (*media.Stream, error) {
	log := logging.FromContext(ctx).With(
		zap.String("content_id", req.Ref.ContentID),
		zap.String("quality", string(req.Quality)),
		zap.Bool("watermark", req.Watermark))

	var errs []error
	for _, p := range r.chain(req) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		s, err := p.Fetch(ctx, req)
		if err == nil {
			log.Info("provider succeeded", zap.String("strategy", p.Name()), zap.Int("attempt", len(errs)+1))
			return s, nil
		}
		log.Warn("provider failed", zap.String("strategy", p.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	return nil, apperr.Join(apperr.AllProvidersFailed, "all download providers failed", errs...)
}

// chain orders the providers for one request: the watermark strategies when
// asked for, then the preferred (or default) provider, then the rest.
func (r *Resolver) chain(req media.DownloadRequest) []provider.Provider {
	var out []provider.Provider
	if req.Watermark && req.Quality != media.QualityAudio {
		out = append(out, r.watermark...)
	}

	first := provider.Canonical(req.Provider)
	if first == "" {
		first = r.defaultProvider
	}

	tried := make(map[string]bool, len(r.providers))
	for _, p := range r.providers {
		if p.Name() == first {
			out = append(out, p)
			tried[p.Name()] = true
			break
		}
	}
	for _, p := range r.providers {
		if !tried[p.Name()] {
			out = append(out, p)
		}
	}
	return out
}
