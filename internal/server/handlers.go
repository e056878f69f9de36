package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tiktokzone/internal/apperr"
	"tiktokzone/internal/httputil"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
	"tiktokzone/internal/respond"
)

const (
	msgURLRequired     = "URL is required"
	msgDownloadsFailed = "All video download services failed. Please try again later."
)

type lookupRequest struct {
	URL string `json:"url"`
}

func errorBody(msg string) respond.ErrorBody {
	return respond.ErrorBody{Error: msg}
}

// publicMessage is the client-facing text for err.
func publicMessage(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.InvalidURL && e.Msg != "" {
		return e.Msg
	}
	return "Failed to fetch TikTok content: " + err.Error()
}

func (s *Server) handleLookup(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, errorBody("Method not allowed"))
		return
	}

	var req lookupRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, errorBody(msgURLRequired))
		return
	}

	ctx := c.Request.Context()
	res, ref, err := s.resolver.Resolve(ctx, req.URL)
	if err != nil {
		logging.FromContext(ctx).Warn("lookup failed",
			zap.String("kind", apperr.KindOf(err).String()), zap.Error(err))
		c.JSON(apperr.HTTPStatus(err), errorBody(publicMessage(err)))
		return
	}

	c.JSON(http.StatusOK, respond.Build(res, ref, s.opts.FilenamePrefix))
}

func (s *Server) handleDownload(c *gin.Context) {
	req, err := parseDownloadRequest(c.Param("videoId"), c.Param("filename"), c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ctx := c.Request.Context()
	stream, err := s.resolver.ResolveDownload(ctx, req)
	if err != nil {
		logging.FromContext(ctx).Error("download failed", zap.Error(err))
		c.JSON(apperr.HTTPStatus(err), errorBody(msgDownloadsFailed))
		return
	}
	defer stream.Close()

	logging.FromContext(ctx).Debug("streaming download",
		zap.String("provider", stream.Provider), zap.Int64("content_length", stream.ContentLength))
	c.DataFromReader(http.StatusOK, stream.ContentLength,
		httputil.ContentTypeFor(req.Filename, stream.ContentType),
		stream.Body,
		map[string]string{"Content-Disposition": httputil.ContentDisposition(req.Filename)})
}

// parseDownloadRequest reads the route parameters and query hints of a
// download. Missing hints are inferred from the filename.
func parseDownloadRequest(videoID, filename string, q url.Values) (media.DownloadRequest, error) {
	if !media.ValidContentID(videoID) {
		return media.DownloadRequest{}, errors.New("invalid video ID")
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return media.DownloadRequest{}, errors.New("filename is required")
	}

	username := strings.TrimSpace(q.Get("username"))
	if username == "" {
		if i := strings.Index(filename, "_"); i > 0 {
			username = filename[:i]
		}
	}
	if username == "" {
		username = "user"
	}

	quality, ok := media.ParseQuality(q.Get("quality"))
	if !ok {
		switch lower := strings.ToLower(filename); {
		case strings.HasSuffix(lower, ".mp3"):
			quality = media.QualityAudio
		case strings.Contains(filename, "_SD"):
			quality = media.QualitySD
		default:
			quality = media.QualityHD
		}
	}

	wm := q.Get("watermark")
	return media.DownloadRequest{
		Ref:       media.ContentReference{Username: username, ContentID: videoID, Kind: media.Video},
		Filename:  filename,
		Quality:   quality,
		Provider:  q.Get("pref_source"),
		Watermark: wm == "true" || wm == "1",
	}, nil
}

func (s *Server) handleImage(c *gin.Context) {
	imageURL := c.Query("url")
	filename := c.Query("filename")
	if imageURL == "" || filename == "" {
		c.JSON(http.StatusBadRequest, errorBody("Missing url or filename parameter"))
		return
	}
	if err := httputil.ValidateURL(imageURL); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid image URL: "+err.Error()))
		return
	}

	ctx := c.Request.Context()
	req, err := httputil.NewRequest(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody("Invalid image URL: "+err.Error()))
		return
	}
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")
	req.Header.Set("Referer", "https://www.tiktok.com/")

	resp, err := httputil.Send(ctx, s.opts.ImageClient, req, s.opts.ImageTimeout)
	if err != nil {
		logging.FromContext(ctx).Warn("image fetch failed", zap.Error(err))
		c.JSON(apperr.HTTPStatus(err), errorBody("Failed to download image"))
		return
	}
	defer resp.Body.Close()

	c.DataFromReader(http.StatusOK, resp.ContentLength,
		httputil.ContentTypeFor(filename, resp.Header.Get("Content-Type")),
		resp.Body,
		map[string]string{"Content-Disposition": httputil.ContentDisposition(filename)})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.opts.Version,
	})
}
