package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

// Selector guesses per field, most specific first. The mirror's markup
// drifts, so each list covers the layouts seen so far.
var (
	authorSelectors    = []string{"#avatarAndTextUsage h2", ".result .author-name", "h2"}
	titleSelectors     = []string{"#avatarAndTextUsage p.maintext", "p.maintext", ".video-title"}
	thumbnailSelectors = []string{".result_overlay img", "img.result_overlay", ".video-thumbnail img"}
	avatarSelectors    = []string{"img.result_author", ".author-avatar img"}

	hdSelectors          = []string{"a.without_watermark_hd", "a[data-quality='hd']"}
	noWatermarkSelectors = []string{"a.without_watermark", "a[data-quality='nowm']"}
	audioSelectors       = []string{"a.music", "a[data-quality='audio']"}
)

// looksLikeDownloadPage reports whether doc contains at least one absolute
// download link.
func looksLikeDownloadPage(doc *goquery.Document) bool {
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !strings.HasPrefix(href, "http") && !strings.HasPrefix(href, "//") {
			return true
		}
		class := strings.ToLower(s.AttrOr("class", ""))
		text := strings.ToLower(s.Text())
		if strings.Contains(class, "download") || strings.Contains(class, "watermark") ||
			strings.Contains(text, "download") || strings.Contains(class, "music") {
			found = true
			return false
		}
		return true
	})
	return found
}

// parseMirrorResult extracts metadata and links from a mirror result page.
func parseMirrorResult(doc *goquery.Document, base string) *media.ExtractionResult {
	res := &media.ExtractionResult{
		Title:     firstText(doc, titleSelectors),
		Thumbnail: absolute(base, firstAttr(doc, thumbnailSelectors, "src")),
		Profile: media.Profile{
			Username: strings.TrimPrefix(firstText(doc, authorSelectors), "@"),
			Avatar:   absolute(base, firstAttr(doc, avatarSelectors, "src")),
		},
	}
	res.Hashtags = hashtagsFromText(res.Title)

	hd := firstAttr(doc, hdSelectors, "href")
	noWM := firstAttr(doc, noWatermarkSelectors, "href")
	audio := firstAttr(doc, audioSelectors, "href")

	if hd == "" && noWM == "" && audio == "" {
		hd, noWM, audio = scanAnchors(doc)
	}

	hd, noWM, audio = absolute(base, hd), absolute(base, noWM), absolute(base, audio)

	// The HD and no-watermark buttons frequently point at the same file
	primary := firstNonEmpty(hd, noWM)
	secondary := noWM
	if secondary == primary {
		secondary = ""
	}
	res.Refs = media.DownloadRefs{Primary: primary, Secondary: secondary, Audio: audio}
	return res
}

// scanAnchors classifies every anchor by its visible text when none of the
// specific selectors matched.
func scanAnchors(doc *goquery.Document) (hd, noWM, audio string) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		text := strings.ToLower(strings.Join(strings.Fields(s.Text()), " "))
		switch {
		case strings.Contains(text, "mp3") || strings.Contains(text, "audio") || strings.Contains(text, "music"):
			if audio == "" {
				audio = href
			}
		case strings.Contains(text, "hd"):
			if hd == "" {
				hd = href
			}
		case strings.Contains(text, "without watermark") || strings.Contains(text, "no watermark"):
			if noWM == "" {
				noWM = href
			}
		}
	})
	return hd, noWM, audio
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, selectors []string, attr string) string {
	for _, sel := range selectors {
		if v := strings.TrimSpace(doc.Find(sel).First().AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

func absolute(base, href string) string {
	if href == "" {
		return ""
	}
	return httputil.AbsoluteURL(base, href)
}
