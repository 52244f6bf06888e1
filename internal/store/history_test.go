package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()
	s, err := NewRunStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunStore_SaveAndListRuns(t *testing.T) {
	s := openTestStore(t)

	if err := s.SaveRun("run-1", "first query", "running", ""); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if err := s.SaveRun("run-2", "second query", "completed", "the answer"); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	// Upsert: finishing a run updates status and answer in place.
	if err := s.SaveRun("run-1", "first query", "failed", ""); err != nil {
		t.Fatalf("SaveRun upsert: %v", err)
	}

	runs, err := s.RecentRuns(10)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	byID := make(map[string]RunSummary)
	for _, r := range runs {
		byID[r.ID] = r
	}
	if byID["run-1"].Status != "failed" {
		t.Errorf("run-1 status = %q", byID["run-1"].Status)
	}
	if byID["run-2"].FinalAnswer != "the answer" {
		t.Errorf("run-2 answer = %q", byID["run-2"].FinalAnswer)
	}
}

func TestRunStore_RecentRunsLimit(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.SaveRun(id, "q", "completed", ""); err != nil {
			t.Fatal(err)
		}
	}
	runs, err := s.RecentRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("got %d runs, want 2", len(runs))
	}
}

func TestRunStore_Steps(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveRun("run-1", "q", "running", ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveStep("run-1", 1, "second", "done", "out2"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveStep("run-1", 0, "first", "done", "out1"); err != nil {
		t.Fatal(err)
	}
	// Upsert on retry of the same step index.
	if err := s.SaveStep("run-1", 1, "second (fixed)", "error", "out2b"); err != nil {
		t.Fatal(err)
	}

	steps, err := s.RunSteps("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if steps[0].Description != "first" || steps[1].Description != "second (fixed)" {
		t.Errorf("steps out of order or not upserted: %+v", steps)
	}
	if steps[1].Status != "error" || steps[1].Result != "out2b" {
		t.Errorf("step 1 = %+v", steps[1])
	}

	if other, err := s.RunSteps("run-x"); err != nil || len(other) != 0 {
		t.Errorf("unknown run: steps=%v err=%v", other, err)
	}
}
