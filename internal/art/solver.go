package art

import (
	"context"
	"image"
	"log/slog"
	"time"
)

const (
	// recentWindow is the number of most recent pins excluded from
	// candidacy, preventing short A-B-A-B oscillations.
	recentWindow = 20

	// progressInterval is how many applied lines pass between progress
	// ticks. Independent of the total line count so progress stays visible
	// for both small and large runs.
	progressInterval = 10
)

// Progress is the record published on every progress tick.
type Progress struct {
	LinesDrawn      int     `json:"linesDrawn"`
	TotalLines      int     `json:"totalLines"`
	PercentComplete float64 `json:"percentComplete"`
	CurrentPin      int     `json:"currentPin"`
	NextPin         int     `json:"nextPin"`
	ThreadLength    float64 `json:"threadLength"`
}

// ProgressFunc receives a progress record, a snapshot of the sequence so
// far, and the pin coordinate table. Callbacks must not mutate the slices.
type ProgressFunc func(p Progress, sequence []int, pins []Pin)

// Result is the complete output of a run.
type Result struct {
	Parameters        Params  `json:"parameters"`
	PinCoordinates    []Pin   `json:"pinCoordinates"`
	LineSequence      []int   `json:"lineSequence"`
	TotalThreadLength float64 `json:"totalThreadLength"`
	ProcessingTimeMS  float64 `json:"processingTimeMs"`
}

// pinWindow is a fixed ring buffer of the last recentWindow pins.
type pinWindow struct {
	slots [recentWindow]int
	head  int
	count int
}

func (w *pinWindow) push(pin int) {
	w.slots[w.head] = pin
	w.head = (w.head + 1) % len(w.slots)
	if w.count < len(w.slots) {
		w.count++
	}
}

func (w *pinWindow) contains(pin int) bool {
	for i := 0; i < w.count; i++ {
		if w.slots[i] == pin {
			return true
		}
	}
	return false
}

// Solve runs the greedy loop over a prepared canvas, pin table and line
// cache. It returns the pin sequence (length at most p.Lines+1) and the
// cumulative thread length in hoop units. The residual field is owned by
// the call; nothing outlives it.
//
// Cancellation is observed at progress ticks only; a cancelled run returns
// the partial sequence as a normal outcome.
func Solve(ctx context.Context, cv *Canvas, pins []Pin, cache *LineCache, p Params, onProgress ProgressFunc) ([]int, float64) {
	f := cv.residualField()
	n := p.Pins
	weight := float32(p.LineWeight)
	scale := p.HoopDiameter / float64(p.ImgSize)

	current := 0
	seq := make([]int, 1, p.Lines+1)
	seq[0] = current
	var recent pinWindow
	threadLen := 0.0

	for line := 1; line <= p.Lines; line++ {
		best := -1
		var bestScore float32 = -1

		// Walk ring offsets in increasing order; strict > keeps the
		// earliest candidate on ties.
		for o := p.MinDistance; o <= n-p.MinDistance-1; o++ {
			cand := (current + o) % n
			if recent.contains(cand) {
				continue
			}
			seg := cache.Segment(current, cand)
			if seg == nil {
				continue
			}
			var score float32
			for _, px := range seg {
				score += f[px]
			}
			if score > bestScore {
				bestScore = score
				best = cand
			}
		}

		if best < 0 {
			slog.Warn("No admissible candidate, stopping early",
				"lines_drawn", line-1,
				"total_lines", p.Lines,
				"current_pin", current,
			)
			break
		}

		for _, px := range cache.Segment(current, best) {
			v := f[px] - weight
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			f[px] = v
		}

		seq = append(seq, best)
		recent.push(best)
		threadLen += scale * euclid(pins[current], pins[best])
		prev := current
		current = best

		if line%progressInterval == 0 || line == p.Lines {
			publishProgress(onProgress, Progress{
				LinesDrawn:      line,
				TotalLines:      p.Lines,
				PercentComplete: 100 * float64(line) / float64(p.Lines),
				CurrentPin:      prev,
				NextPin:         best,
				ThreadLength:    threadLen,
			}, seq, pins)

			if ctx.Err() != nil {
				slog.Info("Run cancelled",
					"lines_drawn", line,
					"total_lines", p.Lines,
				)
				break
			}
		}
	}

	return seq, threadLen
}

// publishProgress hands a snapshot to the callback. The callback is never a
// failure path: panics from host code are logged and swallowed.
func publishProgress(onProgress ProgressFunc, p Progress, seq []int, pins []Pin) {
	if onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Progress callback panicked", "panic", r, "lines_drawn", p.LinesDrawn)
		}
	}()
	snapshot := append([]int(nil), seq...)
	onProgress(p, snapshot, pins)
}

// Generate runs the full pipeline: validation, canonicalisation, pin
// placement, cache construction and the greedy solve.
func Generate(ctx context.Context, src image.Image, p Params, onProgress ProgressFunc) (*Result, error) {
	return GenerateWithCache(ctx, src, p, nil, onProgress)
}

// GenerateWithCache is Generate with a pre-built line cache. The cache must
// have been built for the same pin count, image size and minimum distance;
// pass nil to build one for this run. Hosts that serve repeat jobs with
// identical geometry share caches this way.
func GenerateWithCache(ctx context.Context, src image.Image, p Params, cache *LineCache, onProgress ProgressFunc) (*Result, error) {
	if v := p.Input().Validate(); !v.IsValid {
		return nil, &ValidationError{Messages: v.Errors}
	}

	b := src.Bounds()
	if err := CheckSourceShape(b.Dx(), b.Dy()); err != nil {
		return nil, err
	}

	start := time.Now()

	cv, err := Canonicalize(src, p.ImgSize)
	if err != nil {
		return nil, err
	}

	pins, err := PlacePins(p.Pins, p.ImgSize)
	if err != nil {
		return nil, err
	}

	if cache == nil {
		cache, err = BuildLineCache(pins, p.ImgSize, p.MinDistance)
		if err != nil {
			return nil, err
		}
	}

	slog.Info("Starting solve",
		"pins", p.Pins,
		"lines", p.Lines,
		"img_size", p.ImgSize,
		"min_distance", p.MinDistance,
	)

	seq, threadLen := Solve(ctx, cv, pins, cache, p, onProgress)

	elapsed := time.Since(start)
	slog.Info("Solve complete",
		"lines_drawn", len(seq)-1,
		"lines_requested", p.Lines,
		"thread_length", threadLen,
		"elapsed", elapsed,
	)

	return &Result{
		Parameters:        p,
		PinCoordinates:    pins,
		LineSequence:      seq,
		TotalThreadLength: threadLen,
		ProcessingTimeMS:  float64(elapsed.Nanoseconds()) / 1e6,
	}, nil
}
