package store

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestTraceWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}

	for i := 1; i <= 5; i++ {
		entry := TraceEntry{
			LinesDrawn:   i * 10,
			TotalLines:   50,
			CurrentPin:   i,
			ThreadLength: float64(i) * 1.5,
			Timestamp:    time.Now(),
		}
		if err := tw.Write(entry); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(tw.Path())
	if err != nil {
		t.Fatalf("failed to open trace: %v", err)
	}
	defer f.Close()

	var entries []TraceEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry TraceEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("failed to parse trace line: %v", err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 5 {
		t.Fatalf("trace has %d entries, want 5", len(entries))
	}
	for i, entry := range entries {
		if entry.LinesDrawn != (i+1)*10 {
			t.Errorf("entry %d lines drawn %d, want %d", i, entry.LinesDrawn, (i+1)*10)
		}
	}
}

func TestTraceWriterTruncatesExisting(t *testing.T) {
	dir := t.TempDir()

	tw, err := NewTraceWriter(dir, "job-1")
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Write(TraceEntry{LinesDrawn: 10, TotalLines: 10, Timestamp: time.Now()})
	tw.Close()

	tw2, err := NewTraceWriter(dir, "job-1")
	if err != nil {
		t.Fatalf("second NewTraceWriter failed: %v", err)
	}
	tw2.Close()

	data, err := os.ReadFile(tw2.Path())
	if err != nil {
		t.Fatalf("failed to read trace: %v", err)
	}
	if len(data) != 0 {
		t.Errorf("new trace should start empty, got %d bytes", len(data))
	}
}
