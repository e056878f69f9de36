// Package download writes a media stream to a local file. Output paths are
// validated against directory traversal and partial files are removed on
// failure.
package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

const barTemplate = `{{string . "prefix"}}{{counters . }} {{bar . }} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`

// Save copies stream into outputDir/filename. When progress is non-nil a
// progress bar is drawn on it. It returns the written path.
func Save(stream *media.Stream, outputDir, filename string, progress io.Writer) (string, error) {
	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}

	outputPath, err := httputil.SafeDownloadPath(absDir, filename)
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("creating output file: %w", err)
	}

	var src io.Reader = stream.Body
	var bar *pb.ProgressBar
	if progress != nil {
		total := stream.ContentLength
		if total < 0 {
			total = 0
		}
		bar = pb.ProgressBarTemplate(barTemplate).New(0).SetTotal(total)
		bar.Set(pb.Bytes, true)
		bar.Set(pb.SIBytesPrefix, true)
		bar.Set("prefix", filepath.Base(outputPath)+" ")
		bar.SetWriter(progress)
		bar.Start()
		src = bar.NewProxyReader(stream.Body)
	}

	_, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if bar != nil {
		bar.Finish()
	}

	if copyErr != nil || closeErr != nil {
		os.Remove(outputPath)
		if copyErr != nil {
			return "", fmt.Errorf("writing %s: %w", outputPath, copyErr)
		}
		return "", fmt.Errorf("closing %s: %w", outputPath, closeErr)
	}
	return outputPath, nil
}

// Filename builds the default name for a downloaded post.
func Filename(prefix string, ref media.ContentReference, q media.Quality) string {
	return fmt.Sprintf("%s_%s_%s.%s", prefix, ref.ContentID, q, q.Extension())
}
