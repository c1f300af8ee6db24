// Package render produces per-slide raster previews from an uploaded deck.
package render

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/deckvoice/deckvoice/internal/observability"
)

// Renderer converts a deck into per-slide JPEG previews via a PDF
// intermediate. Rendering is best-effort: a failed page yields an empty path
// for that slide and the run proceeds without a preview.
type Renderer struct {
	sofficePath string
	quality     int
	logger      *observability.Logger
}

// NewRenderer creates a renderer. sofficePath may be empty to resolve from
// PATH and well-known install locations.
func NewRenderer(sofficePath string, quality int, logger *observability.Logger) *Renderer {
	if quality < 1 || quality > 100 {
		quality = 80
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Renderer{
		sofficePath: sofficePath,
		quality:     quality,
		logger:      logger.WithComponent("render"),
	}
}

// RenderPreviews renders slideCount preview images for the deck at pptxPath
// into workDir. The returned slice always has slideCount entries; an entry is
// "" when that page could not be rendered. A nil error with empty entries is
// a partial result, not a failure.
func (r *Renderer) RenderPreviews(ctx context.Context, pptxPath, workDir string, slideCount int) ([]string, error) {
	paths := make([]string, slideCount)

	soffice, err := resolveSoffice(r.sofficePath)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Slide previews unavailable, continuing without images")
		return paths, nil
	}

	pdfDir := filepath.Join(workDir, "rendered_pdf")
	if err := os.MkdirAll(pdfDir, 0o755); err != nil {
		return paths, fmt.Errorf("create render directory: %w", err)
	}

	pdfPath, err := convertToPDF(ctx, soffice, pptxPath, pdfDir)
	if err != nil {
		r.logger.Warn().Err(err).Msg("PDF conversion failed, continuing without images")
		return paths, nil
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Cannot open rendered PDF, continuing without images")
		return paths, nil
	}
	defer doc.Close()

	imgDir := filepath.Join(workDir, "rendered_jpg")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return paths, fmt.Errorf("create image directory: %w", err)
	}

	pageCount := doc.NumPage()
	if pageCount > slideCount {
		pageCount = slideCount
	}

	for page := 0; page < pageCount; page++ {
		select {
		case <-ctx.Done():
			return paths, ctx.Err()
		default:
		}

		img, err := doc.Image(page)
		if err != nil {
			r.logger.Warn().Int("page", page+1).Err(err).Msg("Page render failed, slide proceeds without preview")
			continue
		}

		outPath := filepath.Join(imgDir, fmt.Sprintf("slide_%03d.jpg", page+1))
		outFile, err := os.Create(outPath)
		if err != nil {
			r.logger.Warn().Int("page", page+1).Err(err).Msg("Cannot write preview file")
			continue
		}

		err = jpeg.Encode(outFile, img, &jpeg.Options{Quality: r.quality})
		outFile.Close()
		if err != nil {
			r.logger.Warn().Int("page", page+1).Err(err).Msg("JPEG encode failed")
			continue
		}

		paths[page] = outPath
	}

	r.logger.Info().
		Int("slides", slideCount).
		Int("rendered", pageCount).
		Msg("Rendered slide previews")

	return paths, nil
}
