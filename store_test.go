package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme ENT & Sinus", "acme-ent-sinus"},
		{"  Dr. O'Brien's Clinic  ", "dr-o-brien-s-clinic"},
		{"already-a-slug", "already-a-slug"},
		{"UPPER case 42", "upper-case-42"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestProfileRoundtrip(t *testing.T) {
	store := testStore(t)
	profile := testProfile()
	if err := store.SaveProfile(profile); err != nil {
		t.Fatalf("SaveProfile() error: %v", err)
	}

	loaded, err := store.LoadProfile("Acme ENT")
	if err != nil {
		t.Fatalf("LoadProfile() error: %v", err)
	}
	if loaded.BusinessName != profile.BusinessName || loaded.Domain != profile.Domain {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.URLInventory) != 1 {
		t.Errorf("url inventory = %d", len(loaded.URLInventory))
	}

	clients, err := store.ListClients()
	if err != nil {
		t.Fatalf("ListClients() error: %v", err)
	}
	if len(clients) != 1 || clients[0] != "acme-ent" {
		t.Errorf("clients = %v", clients)
	}
}

func TestLoadProfileMissing(t *testing.T) {
	store := testStore(t)
	if _, err := store.LoadProfile("nobody"); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestSaveResultsAssignsSequences(t *testing.T) {
	store := testStore(t)

	first := testResultSet(3, "clean")
	if err := store.SaveResults("acme", first); err != nil {
		t.Fatalf("SaveResults() error: %v", err)
	}
	if first.Seq != 1 {
		t.Errorf("first seq = %d", first.Seq)
	}

	second := testResultSet(5, "clean")
	if err := store.SaveResults("acme", second); err != nil {
		t.Fatalf("SaveResults() error: %v", err)
	}
	if second.Seq != 2 {
		t.Errorf("second seq = %d", second.Seq)
	}

	latest, err := store.LoadLatestResults("acme", "clean")
	if err != nil {
		t.Fatalf("LoadLatestResults() error: %v", err)
	}
	if latest.Seq != 2 || len(latest.Rows) != 5 {
		t.Errorf("latest = seq %d with %d rows", latest.Seq, len(latest.Rows))
	}

	// Loading twice returns the same set; reading never advances state.
	again, err := store.LoadLatestResults("acme", "clean")
	if err != nil {
		t.Fatalf("LoadLatestResults() error: %v", err)
	}
	if again.Seq != latest.Seq {
		t.Errorf("repeat load seq = %d", again.Seq)
	}
}

func TestSaveResultsCheckpointOverwrites(t *testing.T) {
	store := testStore(t)

	rs := testResultSet(4, "clean")
	if err := store.SaveResults("acme", rs); err != nil {
		t.Fatal(err)
	}
	rs.Rows[0].Classification = ClassKeep
	if err := store.SaveResults("acme", rs); err != nil {
		t.Fatal(err)
	}
	if rs.Seq != 1 {
		t.Errorf("checkpoint must not allocate a new seq, got %d", rs.Seq)
	}

	latest, err := store.LoadLatestResults("acme", "clean")
	if err != nil {
		t.Fatal(err)
	}
	if latest.Rows[0].Classification != ClassKeep {
		t.Error("checkpoint content was not persisted")
	}

	// Only one result file plus the index exists.
	dir := filepath.Join(store.Root(), "clients", "acme")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	files := 0
	for _, e := range entries {
		if !e.IsDir() {
			files++
		}
	}
	if files != 2 {
		t.Errorf("client dir has %d files, want result + index", files)
	}
}

func TestStagesAreIndexedSeparately(t *testing.T) {
	store := testStore(t)

	clean := testResultSet(2, "clean")
	if err := store.SaveResults("acme", clean); err != nil {
		t.Fatal(err)
	}
	mapped := testResultSet(9, "map")
	if err := store.SaveResults("acme", mapped); err != nil {
		t.Fatal(err)
	}
	if mapped.Seq != 1 {
		t.Errorf("map stage seq = %d, want its own sequence", mapped.Seq)
	}

	latest, err := store.LoadLatestResults("acme", "map")
	if err != nil {
		t.Fatal(err)
	}
	if len(latest.Rows) != 9 {
		t.Errorf("map rows = %d", len(latest.Rows))
	}
}

func TestLoadLatestResultsMissingStage(t *testing.T) {
	store := testStore(t)
	if _, err := store.LoadLatestResults("acme", "map"); err == nil {
		t.Fatal("expected error when stage has no results")
	}
}

func TestSaveResultsRequiresStage(t *testing.T) {
	store := testStore(t)
	rs := testResultSet(1, "")
	if err := store.SaveResults("acme", rs); err == nil {
		t.Fatal("expected error for result set without a stage")
	}
}

func TestSaveBriefsAndCostLog(t *testing.T) {
	store := testStore(t)

	set := &BriefSet{Client: "acme", Briefs: []ContentBrief{{Title: "Sinus Surgery Guide"}}}
	path, err := store.SaveBriefs("acme", set)
	if err != nil {
		t.Fatalf("SaveBriefs() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("briefs file missing: %v", err)
	}

	if err := store.SaveCostLog("acme", "clean", CostLog{CostSummary: CostSummary{TotalCalls: 3}}); err != nil {
		t.Fatalf("SaveCostLog() error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(store.Root(), "clients", "acme", "cost_logs"))
	if err != nil || len(entries) != 1 {
		t.Errorf("cost_logs entries = %v err = %v", entries, err)
	}
}
