package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"

	"github.com/spf13/cobra"

	// Decode formats for source photographs.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fjzll/stringart/internal/art"
	"github.com/fjzll/stringart/internal/render"
)

var (
	imagePath    string
	planPath     string
	previewPath  string
	pinCount     int
	lineCount    int
	lineWeight   int
	minDistance  int
	imgSize      int
	hoopDiameter float64
	cpuProfile   string
	memProfile   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run single-shot plan generation",
	Long:  `Generates a thread plan from a photograph and writes it as JSON, optionally with a rendered preview PNG.`,
	RunE:  runGeneration,
}

func init() {
	runCmd.Flags().StringVar(&imagePath, "image", "", "Source image path (required)")
	runCmd.Flags().StringVar(&planPath, "out", "plan.json", "Output plan path")
	runCmd.Flags().StringVar(&previewPath, "preview", "", "Optional preview PNG path")
	runCmd.Flags().IntVar(&pinCount, "pins", 300, "Number of pins on the hoop")
	runCmd.Flags().IntVar(&lineCount, "lines", 4000, "Number of thread segments")
	runCmd.Flags().IntVar(&lineWeight, "weight", 20, "Darkness removed per line pixel (1-255)")
	runCmd.Flags().IntVar(&minDistance, "min-distance", 20, "Minimum ring distance between consecutive pins")
	runCmd.Flags().IntVar(&imgSize, "size", 500, "Canonical square side in pixels")
	runCmd.Flags().Float64Var(&hoopDiameter, "hoop", 0.6, "Physical hoop diameter (thread length unit)")

	// Profiling flags
	runCmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	runCmd.Flags().StringVar(&memProfile, "memprofile", "", "Write memory profile to file")

	runCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(runCmd)
}

func runGeneration(cmd *cobra.Command, args []string) error {
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "output", cpuProfile)
	}

	input := art.ParamInput{
		Pins:         float64(pinCount),
		Lines:        float64(lineCount),
		LineWeight:   float64(lineWeight),
		MinDistance:  float64(minDistance),
		ImgSize:      float64(imgSize),
		HoopDiameter: hoopDiameter,
	}

	if v := input.Validate(); !v.IsValid {
		for _, msg := range v.Errors {
			fmt.Fprintln(os.Stderr, msg)
		}
		return fmt.Errorf("invalid parameters")
	}
	params, err := input.Params()
	if err != nil {
		return err
	}

	f, err := os.Open(imagePath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	slog.Info("Loaded source image", "width", bounds.Dx(), "height", bounds.Dy())

	// Ctrl+C turns into cancellation: the partial plan is still written.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	onProgress := func(p art.Progress, sequence []int, pins []art.Pin) {
		slog.Debug("Progress",
			"lines_drawn", p.LinesDrawn,
			"total_lines", p.TotalLines,
			"percent", fmt.Sprintf("%.1f", p.PercentComplete),
			"thread_length", p.ThreadLength,
		)
	}

	result, err := art.Generate(ctx, src, params, onProgress)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}
	if err := os.WriteFile(planPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}

	if previewPath != "" {
		img := render.Preview(result.PinCoordinates, result.LineSequence, params.ImgSize, params.LineWeight)
		pf, err := os.Create(previewPath)
		if err != nil {
			return fmt.Errorf("failed to create preview: %w", err)
		}
		defer pf.Close()
		if err := png.Encode(pf, img); err != nil {
			return fmt.Errorf("failed to encode preview: %w", err)
		}
	}

	linesDrawn := len(result.LineSequence) - 1
	if linesDrawn < params.Lines {
		fmt.Printf("Wrote %s (%d/%d lines, thread length %.2f, %.0f ms) - stopped early\n",
			planPath, linesDrawn, params.Lines, result.TotalThreadLength, result.ProcessingTimeMS)
	} else {
		fmt.Printf("Wrote %s (%d lines, thread length %.2f, %.0f ms)\n",
			planPath, linesDrawn, result.TotalThreadLength, result.ProcessingTimeMS)
	}

	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return fmt.Errorf("failed to create memory profile: %w", err)
		}
		defer f.Close()
		runtime.GC() // Run GC to get accurate heap stats
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
		slog.Info("Memory profile written", "output", memProfile)
	}

	return nil
}
