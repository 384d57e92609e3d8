package store

import (
	"time"

	"github.com/fjzll/stringart/internal/art"
)

// JobConfig holds the persisted configuration of a generation job.
type JobConfig struct {
	ImagePath string         `json:"imagePath"`
	Params    art.ParamInput `json:"params"`
}

// PlanRecord is a persisted thread plan. Completed jobs store their full
// result; jobs interrupted by shutdown or cancellation, and runs that
// stopped early for lack of candidates, store the sequence built so far,
// marked Partial.
type PlanRecord struct {
	// JobID is the unique identifier of the job that produced this plan.
	JobID string `json:"jobId"`

	// Parameters echoes the validated solver parameters.
	Parameters art.Params `json:"parameters"`

	// PinCoordinates is the full pin table, length Parameters.Pins.
	PinCoordinates []art.Pin `json:"pinCoordinates"`

	// LineSequence is the ordered pin walk, length at most
	// Parameters.Lines+1.
	LineSequence []int `json:"lineSequence"`

	// TotalThreadLength is the cumulative thread length in hoop units.
	TotalThreadLength float64 `json:"totalThreadLength"`

	// ProcessingTimeMS is the solver wall time. Zero for partial plans
	// persisted mid-run.
	ProcessingTimeMS float64 `json:"processingTimeMs"`

	// Partial marks plans with fewer lines than requested: persisted before
	// the run finished, cancelled, or stopped early for lack of candidates.
	Partial bool `json:"partial,omitempty"`

	// Timestamp records when this plan was persisted.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the originating job configuration, kept so plans can be
	// regenerated or compared against their source settings.
	Config JobConfig `json:"config"`
}

// PlanInfo is listing metadata without the sequence payload.
type PlanInfo struct {
	JobID        string    `json:"jobId"`
	Pins         int       `json:"pins"`
	Lines        int       `json:"lines"`
	LinesDrawn   int       `json:"linesDrawn"`
	ThreadLength float64   `json:"threadLength"`
	Partial      bool      `json:"partial"`
	Timestamp    time.Time `json:"timestamp"`
	ImagePath    string    `json:"imagePath"`
}

// NewPlanRecord converts a solver result into a persistable plan.
func NewPlanRecord(jobID string, result *art.Result, config JobConfig, partial bool) *PlanRecord {
	return &PlanRecord{
		JobID:             jobID,
		Parameters:        result.Parameters,
		PinCoordinates:    result.PinCoordinates,
		LineSequence:      result.LineSequence,
		TotalThreadLength: result.TotalThreadLength,
		ProcessingTimeMS:  result.ProcessingTimeMS,
		Partial:           partial,
		Timestamp:         time.Now(),
		Config:            config,
	}
}

// Info reduces a record to its listing metadata.
func (p *PlanRecord) Info() PlanInfo {
	return PlanInfo{
		JobID:        p.JobID,
		Pins:         p.Parameters.Pins,
		Lines:        p.Parameters.Lines,
		LinesDrawn:   max(len(p.LineSequence)-1, 0),
		ThreadLength: p.TotalThreadLength,
		Partial:      p.Partial,
		Timestamp:    p.Timestamp,
		ImagePath:    p.Config.ImagePath,
	}
}
