package detections

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"safety-monitor/distress"
)

func TestJournalMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	j := NewJournal(filepath.Join(t.TempDir(), "detections.json"))
	entries, err := j.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("got %d entries, want 0", len(entries))
	}
}

func TestJournalAppendAndRecent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "data", "detections.json")
	j := NewJournal(path)

	levels := []distress.DistressLevel{distress.LevelNone, distress.LevelLow, distress.LevelHigh}
	for _, level := range levels {
		if _, err := j.Append(distress.DetectionResult{DistressLevel: level}, "user-1"); err != nil {
			t.Fatalf("Append(%s): %v", level, err)
		}
	}

	recent, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
	if recent[0].DistressLevel != distress.LevelHigh || recent[1].DistressLevel != distress.LevelLow {
		t.Errorf("Recent order = %s, %s", recent[0].DistressLevel, recent[1].DistressLevel)
	}
	if recent[0].ID == "" || recent[0].ID == recent[1].ID {
		t.Errorf("entries need distinct ids, got %q and %q", recent[0].ID, recent[1].ID)
	}

	// A fresh journal over the same file sees what was written.
	all, err := NewJournal(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(all) != len(levels) || all[0].UserID != "user-1" {
		t.Errorf("reloaded %d entries: %+v", len(all), all)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestJournalConcurrentAppends(t *testing.T) {
	t.Parallel()

	j := NewJournal(filepath.Join(t.TempDir(), "detections.json"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := j.Append(distress.DetectionResult{DistressLevel: distress.LevelMedium}, ""); err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	all, err := j.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(all) != 20 {
		t.Fatalf("got %d entries, want 20", len(all))
	}
}

func TestJournalCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "detections.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewJournal(path).Load(); err == nil {
		t.Fatal("expected error for corrupt journal")
	}
}
