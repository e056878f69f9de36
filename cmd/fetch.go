package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tiktokzone/internal/logging"
	"tiktokzone/internal/media"
	"tiktokzone/internal/resolve"
	"tiktokzone/internal/respond"
	"tiktokzone/internal/ui"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Look up a post and print its metadata",
	Args:  cobra.ExactArgs(1),
	RunE:  fetchRun,
}

func fetchRun(cmd *cobra.Command, args []string) error {
	ctx := logging.WithContext(cmd.Context(), logger)
	r := resolve.FromConfig(cfg)

	var (
		res *media.ExtractionResult
		ref media.ContentReference
	)
	lookup := func(ctx context.Context) error {
		var err error
		res, ref, err = r.Resolve(ctx, args[0])
		return err
	}

	interactive := !flagJSON && ui.IsTerminal(os.Stdout) && ui.IsTerminal(os.Stderr)
	var err error
	if interactive {
		err = ui.Spin(ctx, os.Stderr, "Resolving "+args[0], lookup)
	} else {
		err = lookup(ctx)
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	out := respond.Build(res, ref, cfg.FilenamePrefix)
	if !interactive {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println(ui.RenderCard(out))
	return nil
}
