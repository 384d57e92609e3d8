package server

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	// Extra decode formats for source photographs.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/fjzll/stringart/internal/art"
	"github.com/fjzll/stringart/internal/render"
	"github.com/fjzll/stringart/internal/store"
)

// loadSourceImage decodes the source photograph from disk.
func loadSourceImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// persistPlan saves the plan record and its rendered preview into the job's
// store directory. The plan is saved first, so when the preview fails the
// plan stays on disk; the preview error is still returned.
func persistPlan(planStore *store.FSStore, jobID string, result *art.Result, config store.JobConfig, partial bool) error {
	plan := store.NewPlanRecord(jobID, result, config, partial)
	if err := planStore.SavePlan(jobID, plan); err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}

	previewPath := filepath.Join(planStore.JobDir(jobID), "preview.png")
	if err := writePreview(previewPath, result); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}

	return nil
}

// writePreview renders the sequence and writes it as a PNG.
func writePreview(path string, result *art.Result) error {
	img := render.Preview(result.PinCoordinates, result.LineSequence, result.Parameters.ImgSize, result.Parameters.LineWeight)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create preview file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}

	return nil
}
