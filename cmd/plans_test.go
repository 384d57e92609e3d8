package main

import (
	"testing"
	"time"

	"github.com/fjzll/stringart/internal/store"
)

func TestSelectPlansForDeletionByAge(t *testing.T) {
	now := time.Now()
	infos := []store.PlanInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectPlansForDeletion(infos, 0, 7)

	if len(toDelete) != 2 {
		t.Fatalf("expected 2 plans to delete, got %d", len(toDelete))
	}

	found10, found30 := false, false
	for _, info := range toDelete {
		if info.JobID == "job1" {
			found10 = true
		}
		if info.JobID == "job4" {
			found30 = true
		}
	}
	if !found10 || !found30 {
		t.Error("expected job1 and job4 to be selected for deletion")
	}
}

func TestSelectPlansForDeletionByCount(t *testing.T) {
	now := time.Now()
	infos := []store.PlanInfo{
		{JobID: "job1", Timestamp: now.AddDate(0, 0, -10)},
		{JobID: "job2", Timestamp: now.AddDate(0, 0, -5)},
		{JobID: "job3", Timestamp: now.AddDate(0, 0, -1)},
		{JobID: "job4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectPlansForDeletion(infos, 2, 0)

	if len(toDelete) != 2 {
		t.Fatalf("expected 2 plans to delete, got %d", len(toDelete))
	}
	for _, info := range toDelete {
		if info.JobID == "job2" || info.JobID == "job3" {
			t.Errorf("plan %s is among the newest and must be kept", info.JobID)
		}
	}
}

func TestSelectPlansForDeletionDisabled(t *testing.T) {
	infos := []store.PlanInfo{
		{JobID: "job1", Timestamp: time.Now()},
	}
	if toDelete := selectPlansForDeletion(infos, 0, 0); len(toDelete) != 0 {
		t.Errorf("both criteria disabled should delete nothing, got %v", toDelete)
	}
}
