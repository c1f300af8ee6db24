package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// LibreOffice converts the deck to a PDF intermediate before rasterization.
// soffice is frequently installed outside PATH, so resolution checks the
// usual install locations too.

var sofficeCandidates = []string{
	"/usr/bin/soffice",
	"/usr/local/bin/soffice",
	"/usr/lib/libreoffice/program/soffice",
	"/usr/lib64/libreoffice/program/soffice",
	"/opt/libreoffice/program/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
}

// resolveSoffice locates the LibreOffice executable.
func resolveSoffice(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
		return "", fmt.Errorf("configured soffice path %s not found", configured)
	}

	for _, name := range []string{"soffice", "libreoffice", "soffice.bin"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	for _, c := range sofficeCandidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}

	return "", fmt.Errorf("LibreOffice executable not found; install LibreOffice or set SOFFICE_PATH")
}

// convertToPDF runs soffice headless to produce a PDF next to outDir and
// returns the generated file path.
func convertToPDF(ctx context.Context, soffice, pptxPath, outDir string) (string, error) {
	cmd := exec.CommandContext(ctx, soffice,
		"--headless",
		"--nologo",
		"--nolockcheck",
		"--nodefault",
		"--norestore",
		"--convert-to", "pdf:impress_pdf_Export",
		"--outdir", outDir,
		pptxPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("soffice convert failed: %w: %s", err, string(out))
	}

	matches, err := filepath.Glob(filepath.Join(outDir, "*.pdf"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("soffice did not produce a PDF")
	}
	return matches[0], nil
}
