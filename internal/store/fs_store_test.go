package store

import (
	"errors"
	"testing"
	"time"

	"github.com/fjzll/stringart/internal/art"
)

func testPlan(jobID string) *PlanRecord {
	return &PlanRecord{
		JobID:             jobID,
		Parameters:        art.Params{Pins: 30, Lines: 50, LineWeight: 20, MinDistance: 3, ImgSize: 100, HoopDiameter: 0.6},
		PinCoordinates:    []art.Pin{{99, 50}, {50, 99}, {0, 50}, {50, 0}},
		LineSequence:      []int{0, 2, 1, 3},
		TotalThreadLength: 1.234,
		ProcessingTimeMS:  42,
		Timestamp:         time.Now(),
		Config:            JobConfig{ImagePath: "/tmp/photo.jpg"},
	}
}

func TestFSStoreSaveLoadRoundTrip(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	plan := testPlan("job-1")
	if err := fs.SavePlan("job-1", plan); err != nil {
		t.Fatalf("SavePlan failed: %v", err)
	}

	loaded, err := fs.LoadPlan("job-1")
	if err != nil {
		t.Fatalf("LoadPlan failed: %v", err)
	}

	if loaded.JobID != plan.JobID {
		t.Errorf("job ID %q, want %q", loaded.JobID, plan.JobID)
	}
	if loaded.Parameters != plan.Parameters {
		t.Errorf("parameters %+v, want %+v", loaded.Parameters, plan.Parameters)
	}
	if len(loaded.LineSequence) != len(plan.LineSequence) {
		t.Fatalf("sequence length %d, want %d", len(loaded.LineSequence), len(plan.LineSequence))
	}
	for i := range plan.LineSequence {
		if loaded.LineSequence[i] != plan.LineSequence[i] {
			t.Errorf("sequence[%d] = %d, want %d", i, loaded.LineSequence[i], plan.LineSequence[i])
		}
	}
	if loaded.TotalThreadLength != plan.TotalThreadLength {
		t.Errorf("thread length %f, want %f", loaded.TotalThreadLength, plan.TotalThreadLength)
	}
}

func TestFSStoreOverwrite(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	first := testPlan("job-1")
	if err := fs.SavePlan("job-1", first); err != nil {
		t.Fatalf("SavePlan failed: %v", err)
	}

	second := testPlan("job-1")
	second.TotalThreadLength = 9.99
	if err := fs.SavePlan("job-1", second); err != nil {
		t.Fatalf("second SavePlan failed: %v", err)
	}

	loaded, err := fs.LoadPlan("job-1")
	if err != nil {
		t.Fatalf("LoadPlan failed: %v", err)
	}
	if loaded.TotalThreadLength != 9.99 {
		t.Errorf("overwrite not visible, thread length %f", loaded.TotalThreadLength)
	}
}

func TestFSStoreLoadMissing(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	_, err = fs.LoadPlan("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFSStoreListPlans(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	infos, err := fs.ListPlans()
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("empty store should list nothing, got %d", len(infos))
	}

	for _, id := range []string{"a", "b", "c"} {
		if err := fs.SavePlan(id, testPlan(id)); err != nil {
			t.Fatalf("SavePlan(%s) failed: %v", id, err)
		}
	}

	infos, err = fs.ListPlans()
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("listed %d plans, want 3", len(infos))
	}
	for _, info := range infos {
		if info.LinesDrawn != 3 {
			t.Errorf("plan %s lines drawn %d, want 3", info.JobID, info.LinesDrawn)
		}
	}
}

func TestFSStoreDeletePlan(t *testing.T) {
	fs, err := NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}

	if err := fs.SavePlan("job-1", testPlan("job-1")); err != nil {
		t.Fatalf("SavePlan failed: %v", err)
	}
	if err := fs.DeletePlan("job-1"); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}
	if _, err := fs.LoadPlan("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := fs.DeletePlan("job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete should return ErrNotFound, got %v", err)
	}
}
