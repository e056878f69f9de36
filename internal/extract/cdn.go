package extract

import (
	"context"
	"fmt"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/media"
)

// cdnThumbnailTemplates are thumbnail URL shapes served by the regional
// image CDNs, keyed only by the post ID.
var cdnThumbnailTemplates = []string{
	"https://p16-sign.tiktokcdn-us.com/tos-useast5-p-0068-tx/videos/tos/useast5/tos-useast5-pve-0068-tx/o0koLsADzQHxkQjNAMrPy/%s~tplv-tx-video.jpeg",
	"https://p19-sign.tiktokcdn-us.com/obj/tos-useast5-p-0068-tx/%s~c5_720x720.jpeg",
	"https://p16-sign.tiktokcdn-us.com/obj/tos-maliva-p-0068/%s~c5_720x720.jpeg",
	"https://p16-sign-va.tiktokcdn.com/tos-maliva-p-0068/%s~c5_720x720.jpeg",
}

// CDN synthesizes a minimal result without any network call. It only
// applies after an earlier extractor hit a connection reset, which is how
// the primary site signals that it is blocking this host.
type CDN struct{}

// NewCDN creates a CDN extractor.
func NewCDN() *CDN { return &CDN{} }

func (c *CDN) Name() string { return "cdn-pattern" }

func (c *CDN) Extract(_ context.Context, src media.Source) (*media.ExtractionResult, error) {
	if !connectionResetSeen(src.Prior) {
		return nil, apperr.New(apperr.ExtractionFailed, "not applicable without an earlier connection reset")
	}
	if !src.Ref.Valid() {
		return nil, apperr.Newf(apperr.ExtractionFailed, "content ID %q is not usable for CDN templates", src.Ref.ContentID)
	}

	thumbs := make([]string, 0, len(cdnThumbnailTemplates))
	for _, tmpl := range cdnThumbnailTemplates {
		thumbs = append(thumbs, fmt.Sprintf(tmpl, src.Ref.ContentID))
	}

	username := "user"
	if src.Ref.KnownUsername() {
		username = src.Ref.Username
	}

	return &media.ExtractionResult{
		Title:               "TikTok by @" + username,
		Thumbnail:           thumbs[0],
		AlternateThumbnails: thumbs,
		Profile:             media.Profile{Username: username},
	}, nil
}

func connectionResetSeen(prior []media.Attempt) bool {
	for _, a := range prior {
		if apperr.Has(a.Err, apperr.ConnectionReset) {
			return true
		}
	}
	return false
}
