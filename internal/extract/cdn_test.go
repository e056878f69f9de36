package extract

import (
	"context"
	"errors"
	"strings"
	"syscall"
	"testing"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/media"
)

func TestCDNRequiresConnectionReset(t *testing.T) {
	src := media.Source{
		Ref:   media.ContentReference{Username: "alice", ContentID: "7123456789012345678"},
		Prior: []media.Attempt{{Name: "primary-site", Err: errors.New("unexpected status 500")}},
	}
	if _, err := NewCDN().Extract(context.Background(), src); err == nil {
		t.Error("CDN fallback ran without a connection reset")
	}
}

func TestCDNAfterConnectionReset(t *testing.T) {
	reset := apperr.Transport("www.tiktok.com", syscall.ECONNRESET)
	src := media.Source{
		Ref:   media.ContentReference{Username: "alice", ContentID: "7123456789012345678"},
		Prior: []media.Attempt{{Name: "primary-site", Err: reset}},
	}

	res, err := NewCDN().Extract(context.Background(), src)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(res.AlternateThumbnails) != 4 {
		t.Fatalf("alternate thumbnails = %d, want 4", len(res.AlternateThumbnails))
	}
	for _, u := range res.AlternateThumbnails {
		if !strings.Contains(u, "7123456789012345678") {
			t.Errorf("thumbnail %q lacks the content ID", u)
		}
	}
	if res.Thumbnail != res.AlternateThumbnails[0] {
		t.Errorf("thumbnail = %q, want first template", res.Thumbnail)
	}
	if res.Title != "TikTok by @alice" {
		t.Errorf("title = %q", res.Title)
	}
	if res.Stats != nil {
		t.Error("CDN fallback should not invent stats")
	}
}

func TestCDNUnknownUsername(t *testing.T) {
	src := media.Source{
		Ref:   media.ContentReference{Username: media.UnknownUsername, ContentID: "7123456789012345678"},
		Prior: []media.Attempt{{Name: "primary-site", Err: apperr.New(apperr.ConnectionReset, "reset")}},
	}
	res, err := NewCDN().Extract(context.Background(), src)
	if err != nil {
		t.Fatal(err)
	}
	if res.Profile.Username != "user" {
		t.Errorf("username = %q, want user", res.Profile.Username)
	}
}
