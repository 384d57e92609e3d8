package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjzll/stringart/internal/art"
	"github.com/fjzll/stringart/internal/store"
)

// runJob executes a generation job in the background. If planStore is not
// nil, the finished (or partial) plan, its preview and a progress trace are
// persisted under the job's directory.
func runJob(ctx context.Context, jm *JobManager, planStore *store.FSStore, cache *art.LineCache, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	slog.Info("Starting job", "job_id", jobID, "image", job.Config.ImagePath)

	src, err := loadSourceImage(job.Config.ImagePath)
	if err != nil {
		markJobFailed(jm, jobID, fmt.Errorf("failed to load source image: %w", err))
		return err
	}

	// Per-job context so the cancel endpoint reaches the solver's yield
	// point.
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jm.RegisterCancel(jobID, cancel)
	defer jm.ReleaseCancel(jobID)

	var traceWriter *store.TraceWriter
	if planStore != nil {
		tw, err := store.NewTraceWriter(planStore.BaseDir(), jobID)
		if err != nil {
			slog.Warn("Failed to create trace writer", "job_id", jobID, "error", err)
		} else {
			traceWriter = tw
			defer func() {
				if err := traceWriter.Close(); err != nil {
					slog.Warn("Failed to close trace writer", "job_id", jobID, "error", err)
				}
			}()
		}
	}

	// The solver calls this at every progress tick; it mirrors the tick
	// into the job record so status, preview and shutdown persistence see a
	// consistent partial sequence.
	onProgress := func(p art.Progress, sequence []int, pins []art.Pin) {
		jm.UpdateJob(jobID, func(j *Job) {
			j.Progress = p
			j.Sequence = sequence
			j.Pins = pins
			j.ThreadLength = p.ThreadLength
		})

		if traceWriter != nil {
			if err := traceWriter.Write(store.TraceEntry{
				LinesDrawn:   p.LinesDrawn,
				TotalLines:   p.TotalLines,
				CurrentPin:   p.NextPin,
				ThreadLength: p.ThreadLength,
				Timestamp:    time.Now(),
			}); err != nil {
				slog.Error("Failed to write trace entry", "job_id", jobID, "error", err)
			}
		}
	}

	// Broadcast cadence is decoupled from solver ticks; the monitor
	// goroutine throttles SSE traffic to 2 events per second.
	start := time.Now()
	progressDone := make(chan struct{})
	monitorExited := make(chan struct{})
	go func() {
		defer close(monitorExited)
		monitorProgress(jobCtx, jm, jobID, start, progressDone)
	}()

	result, genErr := art.GenerateWithCache(jobCtx, src, job.Params, cache, onProgress)

	close(progressDone)
	<-monitorExited
	elapsed := time.Since(start)

	if genErr != nil {
		markJobFailed(jm, jobID, genErr)
		return genErr
	}

	cancelled := jobCtx.Err() != nil
	truncated := len(result.LineSequence) < job.Params.Lines+1

	endTime := time.Now()
	finalState := StateCompleted
	if cancelled {
		finalState = StateCancelled
	}

	jm.UpdateJob(jobID, func(j *Job) {
		j.State = finalState
		j.Sequence = result.LineSequence
		j.Pins = result.PinCoordinates
		j.ThreadLength = result.TotalThreadLength
		j.EndTime = &endTime
	})

	if planStore != nil {
		partial := cancelled || truncated
		if err := persistPlan(planStore, jobID, result, job.Config, partial); err != nil {
			slog.Error("Failed to persist plan", "job_id", jobID, "error", err)
		}
	}

	linesDrawn := len(result.LineSequence) - 1
	lps := float64(linesDrawn) / elapsed.Seconds()

	slog.Info("Job finished",
		"job_id", jobID,
		"state", finalState,
		"elapsed", elapsed,
		"lines_drawn", linesDrawn,
		"lines_requested", job.Params.Lines,
		"thread_length", result.TotalThreadLength,
		"lines_per_second", lps,
	)

	// Broadcast final event
	jm.broadcaster.Broadcast(ProgressEvent{
		JobID:        jobID,
		State:        finalState,
		LinesDrawn:   linesDrawn,
		TotalLines:   job.Params.Lines,
		Percent:      100 * float64(linesDrawn) / float64(job.Params.Lines),
		ThreadLength: result.TotalThreadLength,
		LPS:          lps,
		Timestamp:    time.Now(),
	})

	return nil
}

// monitorProgress periodically broadcasts progress events during a run
func monitorProgress(ctx context.Context, jm *JobManager, jobID string, startTime time.Time, done chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond) // Throttle to 2 updates per second
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, exists := jm.GetJob(jobID)
			if !exists {
				return
			}

			elapsed := time.Since(startTime).Seconds()
			var lps float64
			if elapsed > 0 {
				lps = float64(job.Progress.LinesDrawn) / elapsed
			}

			jm.broadcaster.Broadcast(ProgressEvent{
				JobID:        jobID,
				State:        job.State,
				LinesDrawn:   job.Progress.LinesDrawn,
				TotalLines:   job.Params.Lines,
				Percent:      job.Progress.PercentComplete,
				CurrentPin:   job.Progress.CurrentPin,
				NextPin:      job.Progress.NextPin,
				ThreadLength: job.Progress.ThreadLength,
				LPS:          lps,
				Timestamp:    time.Now(),
			})
		}
	}
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
}
