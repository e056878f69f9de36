package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tiktokzone/internal/download"
	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
	"tiktokzone/internal/resolve"
	"tiktokzone/internal/ui"
)

var (
	flagOutput    string
	flagQuality   string
	flagWatermark bool
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a post's video or audio",
	Args:  cobra.ExactArgs(1),
	RunE:  downloadRun,
}

func init() {
	downloadCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "Output directory (default from config)")
	downloadCmd.Flags().StringVarP(&flagQuality, "quality", "q", "hd", "Rendition: hd | sd | audio")
	downloadCmd.Flags().BoolVarP(&flagWatermark, "watermark", "w", false, "Download the watermarked rendition")
}

func downloadRun(cmd *cobra.Command, args []string) error {
	quality, ok := media.ParseQuality(flagQuality)
	if !ok {
		return fmt.Errorf("unknown quality %q (valid: hd, sd, audio)", flagQuality)
	}

	dir := flagOutput
	if dir == "" {
		var err error
		dir, err = cfg.ExpandDownloadDir()
		if err != nil {
			return err
		}
	}

	ctx := logging.WithContext(cmd.Context(), logger)
	r := resolve.FromConfig(cfg)

	ref, err := r.Normalize(ctx, args[0])
	if err != nil {
		return err
	}

	req := media.DownloadRequest{
		Ref:       ref,
		Filename:  download.Filename(cfg.FilenamePrefix, ref, quality),
		Quality:   quality,
		Provider:  cfg.DefaultProvider,
		Watermark: flagWatermark,
	}
	stream, err := r.ResolveDownload(ctx, req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer stream.Close()
	logger.Debug("stream opened", zap.String("provider", stream.Provider))

	var progress io.Writer
	if !flagJSON && ui.IsTerminal(os.Stderr) {
		progress = os.Stderr
	}
	path, err := download.Save(stream, dir, req.Filename, progress)
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"path":       path,
			"provider":   stream.Provider,
			"content_id": ref.ContentID,
			"quality":    string(quality),
		})
	}
	fmt.Fprintf(os.Stderr, "Saved to: %s\n", path)
	return nil
}
