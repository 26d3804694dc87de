// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AliSaadatV/AcmGENTIC/internal/container"
	"github.com/AliSaadatV/AcmGENTIC/internal/convert"
	"github.com/AliSaadatV/AcmGENTIC/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert downloaded paper PDFs to Markdown",
	Long: `Convert runs every {pmid}.pdf in the PDF directory through the markitdown
container image and caches the text under markdown/. Analyze with
--convert-pdfs reads the cached text in place of the PubMed record.

Requires docker or podman and a local markitdown image.`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("pdf-path")
	if dir == "" {
		dir = viper.GetString("pdf_dir")
	}
	image, _ := cmd.Flags().GetString("image")
	if image == "" {
		image = viper.GetString("conversion.image")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conv, err := newConverter(ctx, types.ConversionConfig{Enabled: true, Image: image})
	if err != nil {
		return err
	}
	result, err := convert.NewCache(conv).ConvertDir(ctx, dir, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d of %d papers failed conversion", result.Failed, result.Total())
	}
	return nil
}

// newConverter detects a container runtime and checks the markitdown image.
func newConverter(ctx context.Context, cfg types.ConversionConfig) (*convert.MarkitdownConverter, error) {
	rt, err := container.DetectRuntime(ctx)
	if err != nil {
		return nil, fmt.Errorf("configuring PDF conversion: %w", err)
	}
	conv, err := convert.NewMarkitdownConverter(ctx, rt, cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("configuring PDF conversion: %w", err)
	}
	return conv, nil
}

func init() {
	convertCmd.Flags().String("pdf-path", "", "directory of downloaded papers named {pmid}.pdf (default from config)")
	convertCmd.Flags().String("image", "", "markitdown container image (default from config)")

	rootCmd.AddCommand(convertCmd)
}
