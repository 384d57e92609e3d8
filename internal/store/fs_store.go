package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// tempSeq gives every save its own temp file, so concurrent saves of the
// same job never write into one another's temp file.
var tempSeq atomic.Uint64

// FSStore implements the Store interface using filesystem persistence.
// Plans are stored under <baseDir>/jobs/<jobID>/.
//
// Thread-safety: atomic file operations (rename) only, no locks required.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-based store, creating baseDir if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the store's root directory.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

// JobDir returns the directory holding a job's plan and artifacts.
func (fs *FSStore) JobDir(jobID string) string {
	return filepath.Join(fs.baseDir, "jobs", jobID)
}

func (fs *FSStore) planPath(jobID string) string {
	return filepath.Join(fs.JobDir(jobID), "plan.json")
}

// SavePlan atomically saves a plan using the temp file + rename pattern.
func (fs *FSStore) SavePlan(jobID string, plan *PlanRecord) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if plan == nil {
		return fmt.Errorf("plan cannot be nil")
	}

	jobDir := fs.JobDir(jobID)
	if err := os.MkdirAll(jobDir, 0755); err != nil {
		return fmt.Errorf("failed to create job directory: %w", err)
	}

	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize plan: %w", err)
	}

	tempPath := fmt.Sprintf("%s.%d.tmp", fs.planPath(jobID), tempSeq.Add(1))
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp plan file: %w", err)
	}

	finalPath := fs.planPath(jobID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename plan file: %w", err)
	}

	slog.Debug("Plan saved", "jobID", jobID, "path", finalPath)
	return nil
}

// LoadPlan retrieves the plan for the given job.
func (fs *FSStore) LoadPlan(jobID string) (*PlanRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	path := fs.planPath(jobID)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat plan file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var plan PlanRecord
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to deserialize plan: %w", err)
	}

	return &plan, nil
}

// ListPlans scans the jobs directory for persisted plans.
func (fs *FSStore) ListPlans() ([]PlanInfo, error) {
	jobsDir := filepath.Join(fs.baseDir, "jobs")

	if _, err := os.Stat(jobsDir); os.IsNotExist(err) {
		return []PlanInfo{}, nil
	}

	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan jobs directory: %w", err)
	}

	infos := make([]PlanInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		plan, err := fs.LoadPlan(entry.Name())
		if err != nil {
			// Directories without a plan.json (e.g. trace-only) are skipped.
			slog.Debug("Skipping job directory without readable plan", "jobID", entry.Name(), "error", err)
			continue
		}
		infos = append(infos, plan.Info())
	}

	return infos, nil
}

// DeletePlan removes the plan and all artifacts for the given job.
func (fs *FSStore) DeletePlan(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	jobDir := fs.JobDir(jobID)
	if _, err := os.Stat(jobDir); os.IsNotExist(err) {
		return &NotFoundError{JobID: jobID}
	}

	if err := os.RemoveAll(jobDir); err != nil {
		return fmt.Errorf("failed to delete job directory: %w", err)
	}

	slog.Debug("Plan deleted", "jobID", jobID)
	return nil
}
