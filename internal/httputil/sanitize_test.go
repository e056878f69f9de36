package httputil

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid HTTPS", "https://www.tiktok.com/@alice/video/7123456789012345678", false},
		{"HTTP rejected", "http://www.tiktok.com/", true},
		{"javascript scheme rejected", "javascript:alert(1)", true},
		{"data scheme rejected", "data:text/html,<h1>Hi</h1>", true},
		{"file scheme rejected", "file:///etc/passwd", true},
		{"empty string", "", true},
		{"no host", "https://", true},
		{"valid with port", "https://127.0.0.1:8443/path", false},
		{"valid with query", "https://p16-sign.tiktokcdn-us.com/obj/x.jpeg?x-expires=1&sig=a", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal filename", "Freetiktokzone_HD.mp4", "Freetiktokzone_HD.mp4"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"directory components", "/home/user/secret.txt", "secret.txt"},
		{"null bytes", "clip\x00.mp4", "clip.mp4"},
		{"header injection", "clip.mp4\r\nSet-Cookie: a=b", "clip.mp4Set-Cookie_ a=b"},
		{"quotes", `clip".mp4`, "clip_.mp4"},
		{"Windows special chars", "clip<>:\"|?*.mp4", "clip_______.mp4"},
		{"double dots", "clip..mp4", "clip_mp4"},
		{"empty string", "", "untitled"},
		{"just dots", "..", "_"},
		{"just dot", ".", "untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSafeDownloadPath(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		filename string
		wantErr  bool
	}{
		{"normal", "/tmp/downloads", "Freetiktokzone_7123456789012345678_hd.mp4", false},
		{"path traversal attempt", "/tmp/downloads", "../../etc/passwd", false}, // sanitized to "passwd"
		{"shell injection", "/tmp/downloads", "$(whoami).mp4", false},          // sanitized
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := SafeDownloadPath(tt.dir, tt.filename)
			if (err != nil) != tt.wantErr {
				t.Errorf("SafeDownloadPath(%q, %q) error = %v, wantErr %v", tt.dir, tt.filename, err, tt.wantErr)
			}
			if err == nil && path == "" {
				t.Error("SafeDownloadPath returned empty path without error")
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []struct {
		filename string
		expected string
	}{
		{"Freetiktokzone_HD.mp4", `attachment; filename="Freetiktokzone_HD.mp4"`},
		{`evil".mp4`, `attachment; filename="evil_.mp4"`},
		{"../x.jpg", `attachment; filename="x.jpg"`},
	}

	for _, tt := range tests {
		if got := ContentDisposition(tt.filename); got != tt.expected {
			t.Errorf("ContentDisposition(%q) = %q, want %q", tt.filename, got, tt.expected)
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		declared string
		expected string
	}{
		{"cover.jpg", "", "image/jpeg"},
		{"cover.JPEG", "", "image/jpeg"},
		{"cover.png", "", "image/png"},
		{"cover.gif", "", "image/gif"},
		{"cover.webp", "", "image/webp"},
		{"cover.bin", "", "application/octet-stream"},
		{"cover", "", "application/octet-stream"},
		{"cover.jpg", "image/heic", "image/heic"},
		{"clip.mp4", "", "video/mp4"},
	}

	for _, tt := range tests {
		if got := ContentTypeFor(tt.filename, tt.declared); got != tt.expected {
			t.Errorf("ContentTypeFor(%q, %q) = %q, want %q", tt.filename, tt.declared, got, tt.expected)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	tests := []struct {
		base     string
		href     string
		expected string
	}{
		{"https://www.tikwm.com", "/video/media/play/1.mp4", "https://www.tikwm.com/video/media/play/1.mp4"},
		{"https://ssstik.io/en", "//cdn.example.com/a.mp4", "https://cdn.example.com/a.mp4"},
		{"https://ssstik.io", "https://other.example.com/b.mp4", "https://other.example.com/b.mp4"},
	}

	for _, tt := range tests {
		if got := AbsoluteURL(tt.base, tt.href); got != tt.expected {
			t.Errorf("AbsoluteURL(%q, %q) = %q, want %q", tt.base, tt.href, got, tt.expected)
		}
	}
}

func TestBuildURL(t *testing.T) {
	got := BuildURL("/api/tiktok-video-download/", "7123456789012345678", "Freetiktokzone HD.mp4")
	want := "/api/tiktok-video-download/7123456789012345678/Freetiktokzone%20HD.mp4"
	if got != want {
		t.Errorf("BuildURL() = %q, want %q", got, want)
	}
}
