// Package main provides the DeckVoice CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deckvoice/deckvoice/cmd/deckvoice-cli/ui"
	"github.com/deckvoice/deckvoice/internal/config"
	"github.com/deckvoice/deckvoice/internal/deck"
	"github.com/deckvoice/deckvoice/internal/domain"
	"github.com/deckvoice/deckvoice/internal/export"
	"github.com/deckvoice/deckvoice/internal/llm"
	"github.com/deckvoice/deckvoice/internal/narrate"
	"github.com/deckvoice/deckvoice/internal/observability"
	"github.com/deckvoice/deckvoice/internal/pipeline"
	"github.com/deckvoice/deckvoice/internal/render"
	"github.com/deckvoice/deckvoice/internal/session"
	"github.com/deckvoice/deckvoice/internal/storage"
)

var (
	// Global flags
	cfgFile string
	verbose bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "deckvoice",
	Short: "DeckVoice CLI for turning slide decks into narration scripts",
	Long: `DeckVoice processes a PowerPoint deck through AI rewriting and narration
generation, then exports the result as a script, structured JSON, Word
document, or a copy of the deck with narration in the speaker notes.

Processing is local to the invocation: the deck is extracted, each slide is
rewritten, narration is generated slide by slide, and the chosen export
formats are written to the output directory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if !verbose {
			level = "warn"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			ServiceName: "deckvoice-cli",
		})

		return nil
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	// Add subcommands
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newProcessCmd creates the process subcommand.
func newProcessCmd() *cobra.Command {
	var (
		tone         string
		audience     string
		lengthMode   string
		minWords     int
		maxWords     int
		useNotes     bool
		polish       bool
		instructions string
		formats      []string
		outputDir    string
		timeout      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "process <deck.pptx>",
		Short: "Process a deck and export narration",
		Long: `Process extracts a .pptx deck, rewrites each slide's content, generates a
narration paragraph per slide, and writes the requested export formats.

Formats: text, structured, document, source-with-notes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			inputPath := args[0]

			configuration, err := buildConfiguration(tone, audience, lengthMode, minWords, maxWords, useNotes, polish, instructions)
			if err != nil {
				return err
			}

			exportFormats, err := parseFormats(formats)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(inputPath)
			if err != nil {
				return fmt.Errorf("read deck: %w", err)
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			service, exporter, cleanup, err := buildLocalPipeline(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ui.Info("Processing %s (%d slides max, %s tone, %s audience)",
				filepath.Base(inputPath), cfg.Limits.MaxSlides, configuration.Tone, configuration.AudienceLevel)

			bar := ui.NewProgressBar(100, "starting")
			service.ProgressObserver(func(stage string, percent int, detail string) {
				label := stage
				if detail != "" {
					label = fmt.Sprintf("%s (%s)", stage, detail)
				}
				bar.Describe(label)
				bar.Set(int64(percent))
			})

			run, err := service.Process(ctx, data, filepath.Base(inputPath), configuration)
			bar.Finish()
			if err != nil {
				ui.Error("Processing failed: %v", err)
				return err
			}

			failed := 0
			for _, slide := range run.Slides {
				if slide.RewriteFailed {
					failed++
				}
			}

			ui.Success("Processed %d slides", len(run.Slides))
			if failed > 0 {
				ui.Warning("%d slide(s) fell back to original text after rewrite failures", failed)
			}

			for _, format := range exportFormats {
				artifact, err := exporter.Export(ctx, run, format)
				if err != nil {
					ui.Error("Export %s failed: %v", format, err)
					return err
				}

				outPath := filepath.Join(outputDir, artifact.Filename)
				if err := os.WriteFile(outPath, artifact.Data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				ui.KeyValue(string(format), outPath)
			}

			ui.Newline()
			ui.Success("Done")
			return nil
		},
	}

	cmd.Flags().StringVar(&tone, "tone", string(domain.ToneProfessional), "narration tone (professional, friendly, sales, technical, conversational, bold, academic, persuasive)")
	cmd.Flags().StringVar(&audience, "audience", string(domain.AudienceGeneral), "audience level (general, executive, technical, junior, expert)")
	cmd.Flags().StringVar(&lengthMode, "length-mode", string(domain.LengthDynamic), "length mode (dynamic, fixed)")
	cmd.Flags().IntVar(&minWords, "min-words", 0, "minimum words per narration (fixed mode)")
	cmd.Flags().IntVar(&maxWords, "max-words", 0, "maximum words per narration (fixed mode)")
	cmd.Flags().BoolVar(&useNotes, "use-notes", true, "feed existing speaker notes into narration generation")
	cmd.Flags().BoolVar(&polish, "polish", false, "run the whole-deck polishing pass after narration")
	cmd.Flags().StringVar(&instructions, "instructions", "", "custom instructions applied to every slide")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"text"}, "export formats (text, structured, document, source-with-notes)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory for exported files")
	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Minute, "overall processing timeout")

	return cmd
}

// newExportCmd creates the export subcommand. It regenerates artifacts from a
// structured export produced by a previous process run, without calling the
// AI provider again.
func newExportCmd() *cobra.Command {
	var (
		formats   []string
		deckPath  string
		outputDir string
	)

	cmd := &cobra.Command{
		Use:   "export <narration.json>",
		Short: "Re-export narration from a structured export file",
		Long: `Export reads a structured JSON export written by a previous process run and
regenerates it in other formats. The source-with-notes format additionally
needs the original deck, supplied with --deck.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			exportFormats, err := parseFormats(formats)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read export: %w", err)
			}

			run, err := export.DecodeStructured(data)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			var blobs storage.Blob
			if deckPath != "" {
				deckData, err := os.ReadFile(deckPath)
				if err != nil {
					return fmt.Errorf("read deck: %w", err)
				}

				blobDir, err := os.MkdirTemp("", "deckvoice-export-*")
				if err != nil {
					return fmt.Errorf("create blob dir: %w", err)
				}
				defer os.RemoveAll(blobDir)

				local, err := storage.NewLocalBlob(blobDir)
				if err != nil {
					return err
				}

				run.SourceRef = fmt.Sprintf("decks/%s.pptx", run.ID)
				if err := local.Put(ctx, run.SourceRef, deckData); err != nil {
					return err
				}
				blobs = local
			}

			exporter := export.NewExporter(blobs, logger)

			ui.Info("Exporting %d slides", len(run.Slides))

			spin := ui.NewSpinner("generating artifacts")
			spin.Start()

			written := make(map[export.Format]string, len(exportFormats))
			for _, format := range exportFormats {
				spin.UpdateMessage(fmt.Sprintf("generating %s", format))

				artifact, err := exporter.Export(ctx, run, format)
				if err != nil {
					spin.Stop()
					ui.Error("Export %s failed: %v", format, err)
					return err
				}

				outPath := filepath.Join(outputDir, artifact.Filename)
				if err := os.WriteFile(outPath, artifact.Data, 0o644); err != nil {
					spin.Stop()
					return fmt.Errorf("write %s: %w", outPath, err)
				}
				written[format] = outPath
			}
			spin.Stop()

			for _, format := range exportFormats {
				ui.KeyValue(string(format), written[format])
			}

			ui.Newline()
			ui.Success("Done")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&formats, "format", []string{"text"}, "export formats (text, structured, document, source-with-notes)")
	cmd.Flags().StringVar(&deckPath, "deck", "", "original .pptx deck, required for source-with-notes")
	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory for exported files")

	return cmd
}

// buildConfiguration assembles and validates the run configuration from flags.
func buildConfiguration(tone, audience, lengthMode string, minWords, maxWords int, useNotes, polish bool, instructions string) (domain.Configuration, error) {
	configuration := domain.DefaultConfiguration()

	parsedTone, err := domain.ParseTone(tone)
	if err != nil {
		return configuration, err
	}
	configuration.Tone = parsedTone

	parsedAudience, err := domain.ParseAudienceLevel(audience)
	if err != nil {
		return configuration, err
	}
	configuration.AudienceLevel = parsedAudience

	configuration.Length = domain.LengthPolicy{
		Mode:     domain.LengthMode(lengthMode),
		MinWords: minWords,
		MaxWords: maxWords,
	}
	configuration.UseContextualNotes = useNotes
	configuration.EnableAIPolishing = polish
	configuration.CustomInstructions = instructions

	if err := configuration.Validate(); err != nil {
		return configuration, err
	}
	return configuration, nil
}

func parseFormats(names []string) ([]export.Format, error) {
	formats := make([]export.Format, 0, len(names))
	for _, name := range names {
		format, err := export.ParseFormat(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		formats = append(formats, format)
	}
	return formats, nil
}

// buildLocalPipeline wires an in-process pipeline: memory sessions, local
// blob storage under a temp dir, and the configured LLM client.
func buildLocalPipeline(ctx context.Context) (*pipeline.Service, *export.Exporter, func(), error) {
	generator, err := llm.NewClient(llm.Config{
		Model:          cfg.LLM.Model,
		BaseURL:        cfg.LLM.BaseURL,
		RequestTimeout: cfg.LLM.RequestTimeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	extractor := deck.NewExtractor(cfg.Limits.MaxSlides, cfg.Limits.MaxFileSizeBytes(), logger)

	var renderer *render.Renderer
	if cfg.Render.Enabled {
		renderer = render.NewRenderer(cfg.Render.SofficePath, cfg.Render.JPEGQuality, logger)
	}

	engine := narrate.NewEngine(generator, cfg.LLM.Concurrency, cfg.Limits.NotesContextRunes, logger)

	store := session.NewMemoryStore(0)

	blobDir, err := os.MkdirTemp("", "deckvoice-cli-*")
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("create blob dir: %w", err)
	}

	blobs, err := storage.NewLocalBlob(blobDir)
	if err != nil {
		store.Close()
		os.RemoveAll(blobDir)
		return nil, nil, nil, err
	}

	progress := domain.NewProgressStore()
	service := pipeline.NewService(extractor, renderer, engine, store, blobs, progress, logger)
	exporter := export.NewExporter(blobs, logger)

	cleanup := func() {
		store.Close()
		os.RemoveAll(blobDir)
	}

	return service, exporter, cleanup, nil
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the DeckVoice CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			ui.Message("deckvoice version 1.0.0")
		},
	}
}
