package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

// fakeModel scripts per-batch behavior for pipeline tests.
type fakeModel struct {
	classifyBatches [][]KeywordInput
	anchorsSeen     [][]ClassifyResult
	mapBatches      [][]KeywordInput

	failClassifyBatch int // 1-based, 0 = never
	failMapBatch      int
	shortClassifyBy   int // return this many fewer results than rows
}

func (f *fakeModel) ClassifyKeywords(profile *ClientProfile, batch []KeywordInput, examples []ClassifyResult) ([]ClassifyResult, error) {
	f.classifyBatches = append(f.classifyBatches, batch)
	f.anchorsSeen = append(f.anchorsSeen, append([]ClassifyResult(nil), examples...))
	if len(f.classifyBatches) == f.failClassifyBatch {
		return nil, errors.New("provider unavailable")
	}
	n := len(batch) - f.shortClassifyBy
	if n < 0 {
		n = 0
	}
	out := make([]ClassifyResult, n)
	for i := 0; i < n; i++ {
		out[i] = ClassifyResult{
			Keyword:        batch[i].Keyword,
			Classification: ClassKeep,
			Confidence:     90,
			Reason:         "relevant",
		}
	}
	return out, nil
}

func (f *fakeModel) MapKeywords(profile *ClientProfile, batch []KeywordInput, urls []URLInfo) ([]MapResult, error) {
	f.mapBatches = append(f.mapBatches, batch)
	if len(f.mapBatches) == f.failMapBatch {
		return nil, errors.New("provider unavailable")
	}
	out := make([]MapResult, len(batch))
	for i, kw := range batch {
		url := "https://example.com/services"
		if strings.HasPrefix(kw.Keyword, "gap-") {
			url = SentinelNewPage
		}
		if strings.HasPrefix(kw.Keyword, "blog-") {
			url = SentinelBlogPost
		}
		out[i] = MapResult{Keyword: kw.Keyword, URL: url, Confidence: 85, Intent: "transactional"}
	}
	return out, nil
}

func testResultSet(n int, stage string) *ResultSet {
	rs := &ResultSet{Stage: stage, KeywordCol: "keyword", Headers: []string{"keyword", "volume"}}
	for i := 0; i < n; i++ {
		rs.Rows = append(rs.Rows, KeywordRow{Columns: map[string]string{
			"keyword": fmt.Sprintf("keyword %d", i),
			"volume":  "100",
		}})
	}
	return rs
}

func testStore(t *testing.T) *ClientStore {
	t.Helper()
	store, err := NewClientStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func testProfile() *ClientProfile {
	return &ClientProfile{
		BusinessName:     "Acme ENT",
		Domain:           "acme-ent.com",
		NegativeKeywords: []string{"free", "jobs"},
		URLInventory:     []URLInfo{{URL: "https://example.com/services", Title: "Services"}},
	}
}

func TestClassifyBatchSlicing(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 100, 0)

	rs := testResultSet(250, "clean")
	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	sizes := []int{}
	for _, b := range model.classifyBatches {
		sizes = append(sizes, len(b))
	}
	if len(sizes) != 3 || sizes[0] != 100 || sizes[1] != 100 || sizes[2] != 50 {
		t.Errorf("batch sizes = %v, want [100 100 50]", sizes)
	}
	for i, row := range rs.Rows {
		if row.Classification == "" {
			t.Fatalf("row %d has no classification", i)
		}
	}
}

func TestClassifyNegativePrefilter(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 100, 0)

	rs := testResultSet(5, "clean")
	rs.Rows[1].Columns["keyword"] = "free consultation"
	rs.Rows[3].Columns["keyword"] = "ENT Jobs near me"

	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if len(model.classifyBatches) != 1 || len(model.classifyBatches[0]) != 3 {
		t.Fatalf("model should only see the 3 non-negative rows, got %v", model.classifyBatches)
	}
	for _, i := range []int{1, 3} {
		row := rs.Rows[i]
		if row.Classification != ClassRemove || row.Confidence != 100 {
			t.Errorf("row %d = %s/%v, want prefiltered REMOVE", i, row.Classification, row.Confidence)
		}
		if !strings.HasPrefix(row.Reason, "matched negative keyword: ") {
			t.Errorf("row %d reason = %q", i, row.Reason)
		}
	}
}

func TestClassifyFailedBatchDegrades(t *testing.T) {
	model := &fakeModel{failClassifyBatch: 2}
	p := NewPipeline(model, testStore(t), 10, 0)

	rs := testResultSet(30, "clean")
	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if len(model.classifyBatches) != 3 {
		t.Fatalf("run must continue past a failed batch, saw %d batches", len(model.classifyBatches))
	}
	// Second batch rows degraded to UNSURE, first and third classified.
	for i := 10; i < 20; i++ {
		row := rs.Rows[i]
		if row.Classification != ClassUnsure || row.Confidence != 0 {
			t.Errorf("row %d = %s/%v, want degraded UNSURE", i, row.Classification, row.Confidence)
		}
		if !strings.Contains(row.Reason, "batch failed") {
			t.Errorf("row %d reason = %q", i, row.Reason)
		}
	}
	if rs.Rows[0].Classification != ClassKeep || rs.Rows[25].Classification != ClassKeep {
		t.Error("rows outside the failed batch must keep their real results")
	}
}

func TestClassifyShortResultDegradesTail(t *testing.T) {
	model := &fakeModel{shortClassifyBy: 2}
	p := NewPipeline(model, testStore(t), 10, 0)

	rs := testResultSet(10, "clean")
	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	for i := 0; i < 8; i++ {
		if rs.Rows[i].Classification != ClassKeep {
			t.Errorf("row %d = %s, want KEEP", i, rs.Rows[i].Classification)
		}
	}
	for i := 8; i < 10; i++ {
		if rs.Rows[i].Classification != ClassUnsure {
			t.Errorf("tail row %d = %s, want UNSURE", i, rs.Rows[i].Classification)
		}
	}
}

func TestClassifyAnchorsCarryForward(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 10, 0)

	rs := testResultSet(25, "clean")
	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}

	if len(model.anchorsSeen) != 3 {
		t.Fatalf("anchorsSeen = %d batches", len(model.anchorsSeen))
	}
	if len(model.anchorsSeen[0]) != 0 {
		t.Error("first batch must run without anchors")
	}
	for i, anchors := range model.anchorsSeen[1:] {
		if len(anchors) == 0 {
			t.Errorf("batch %d saw no anchors", i+2)
		}
		if len(anchors) > maxAnchorExamples {
			t.Errorf("batch %d saw %d anchors, cap is %d", i+2, len(anchors), maxAnchorExamples)
		}
	}
}

func TestCollectAnchorsOnePerCategory(t *testing.T) {
	results := []ClassifyResult{
		{Keyword: "a", Classification: ClassKeep},
		{Keyword: "b", Classification: ClassKeep},
		{Keyword: "c", Classification: ClassRemove},
		{Keyword: "d", Classification: ClassUnsure},
		{Keyword: "e", Classification: ClassRemove},
	}
	anchors := collectAnchors(nil, results)
	if len(anchors) != 3 {
		t.Fatalf("anchors = %d, want 3", len(anchors))
	}
	if anchors[0].Keyword != "a" || anchors[1].Keyword != "c" || anchors[2].Keyword != "d" {
		t.Errorf("anchors must be the first instance per category, got %+v", anchors)
	}
	// Already full: nothing more is added.
	anchors = collectAnchors(anchors, []ClassifyResult{{Keyword: "f", Classification: ClassKeep}})
	if len(anchors) != 3 {
		t.Errorf("anchors grew past the cap: %d", len(anchors))
	}
}

func TestClassifyCheckpointsEveryBatch(t *testing.T) {
	model := &fakeModel{}
	store := testStore(t)
	p := NewPipeline(model, store, 10, 0)

	var checkpoints []int
	p.Progress = func(done, total int) { checkpoints = append(checkpoints, done) }

	rs := testResultSet(30, "clean")
	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if len(checkpoints) != 3 {
		t.Fatalf("checkpoints = %v", checkpoints)
	}

	saved, err := store.LoadLatestResults("acme", "clean")
	if err != nil {
		t.Fatalf("LoadLatestResults() error: %v", err)
	}
	if len(saved.Rows) != 30 {
		t.Errorf("saved rows = %d", len(saved.Rows))
	}
	if saved.Seq != 1 {
		t.Errorf("checkpoints must reuse one sequence, got seq %d", saved.Seq)
	}
}

func TestClassifyPausesBetweenBatchesOnly(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 10, 1)
	pauses := 0
	p.sleep = func(time.Duration) { pauses++ }

	rs := testResultSet(30, "clean")
	if _, err := p.Classify("acme", testProfile(), rs); err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if pauses != 2 {
		t.Errorf("pauses = %d, want 2 (no pause after the last batch)", pauses)
	}
}

func TestMapSkipsRemovedRows(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 100, 0)

	rs := testResultSet(6, "map")
	rs.Rows[0].Classification = ClassRemove
	rs.Rows[4].Classification = ClassRemove
	for _, i := range []int{1, 2, 3, 5} {
		rs.Rows[i].Classification = ClassKeep
	}

	if _, err := p.Map("acme", testProfile(), rs); err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	if len(model.mapBatches) != 1 || len(model.mapBatches[0]) != 4 {
		t.Fatalf("model should only see surviving rows, got %v", model.mapBatches)
	}
	if rs.Rows[0].Recommendation != "" || rs.Rows[4].Recommendation != "" {
		t.Error("REMOVE rows must not be mapped")
	}
	if rs.Rows[1].Recommendation != RecExisting || rs.Rows[1].MappedURL == "" {
		t.Errorf("row 1 = %q/%q", rs.Rows[1].Recommendation, rs.Rows[1].MappedURL)
	}
}

func TestMapSentinelsBecomeRecommendations(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 100, 0)

	rs := &ResultSet{Stage: "map", KeywordCol: "keyword", Headers: []string{"keyword"}, Rows: []KeywordRow{
		{Columns: map[string]string{"keyword": "gap-sinus surgery"}, Classification: ClassKeep},
		{Columns: map[string]string{"keyword": "blog-what is tinnitus"}, Classification: ClassKeep},
		{Columns: map[string]string{"keyword": "ent services"}, Classification: ClassKeep},
	}}

	if _, err := p.Map("acme", testProfile(), rs); err != nil {
		t.Fatalf("Map() error: %v", err)
	}

	if rs.Rows[0].Recommendation != RecNewPage || rs.Rows[0].MappedURL != "" {
		t.Errorf("NEW_PAGE row = %q/%q", rs.Rows[0].Recommendation, rs.Rows[0].MappedURL)
	}
	if rs.Rows[1].Recommendation != RecBlogPost || rs.Rows[1].MappedURL != "" {
		t.Errorf("BLOG_POST row = %q/%q", rs.Rows[1].Recommendation, rs.Rows[1].MappedURL)
	}
	if rs.Rows[2].Recommendation != RecExisting || rs.Rows[2].MappedURL != "https://example.com/services" {
		t.Errorf("mapped row = %q/%q", rs.Rows[2].Recommendation, rs.Rows[2].MappedURL)
	}
}

func TestMapFailedBatchDegrades(t *testing.T) {
	model := &fakeModel{failMapBatch: 1}
	p := NewPipeline(model, testStore(t), 100, 0)

	rs := testResultSet(4, "map")
	for i := range rs.Rows {
		rs.Rows[i].Classification = ClassKeep
	}
	if _, err := p.Map("acme", testProfile(), rs); err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	for i, row := range rs.Rows {
		if row.Recommendation != RecError || row.MappedURL != "" || row.Confidence != 0 {
			t.Errorf("row %d = %q/%q/%v, want degraded Error", i, row.Recommendation, row.MappedURL, row.Confidence)
		}
	}
}

func TestMatchesNegativeCaseInsensitive(t *testing.T) {
	profile := &ClientProfile{
		NegativeKeywords:   []string{"Miami"},
		NegativeCategories: []string{"insurance"},
	}
	if _, ok := matchesNegative(profile, "best ENT miami"); !ok {
		t.Error("negative keyword match should be case-insensitive")
	}
	if _, ok := matchesNegative(profile, "does INSURANCE cover surgery"); !ok {
		t.Error("negative category match should be case-insensitive")
	}
	if _, ok := matchesNegative(profile, "ent doctor near me"); ok {
		t.Error("clean keyword must not match")
	}
}

func TestRowInputReadsLongDifficultyHeader(t *testing.T) {
	rs, err := ReadTable(strings.NewReader("Keyword,Volume,Keyword Difficulty,Intent\ndental implants,900,45,commercial\n"))
	if err != nil {
		t.Fatalf("ReadTable() error: %v", err)
	}
	in := rowInput(&rs.Rows[0], rs.KeywordCol)
	if in.KD != "45" {
		t.Errorf("KD = %q, want 45 from the keyword difficulty column", in.KD)
	}
	if in.Volume != "900" || in.Intent != "commercial" {
		t.Errorf("volume/intent = %q/%q", in.Volume, in.Intent)
	}
}

func TestRowInputFallsBackToShortDifficultyHeader(t *testing.T) {
	row := KeywordRow{Columns: map[string]string{"keyword": "dental implants", "kd": "30"}}
	if in := rowInput(&row, "keyword"); in.KD != "30" {
		t.Errorf("KD = %q, want 30 from the kd column", in.KD)
	}
}

func TestClassifyCountsOnlyDispatchedBatches(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 10, 0)

	var progress [][2]int
	p.Progress = func(done, total int) { progress = append(progress, [2]int{done, total}) }

	// 5 of 25 rows prefiltered: 20 reach the model, two batches of 10.
	rs := testResultSet(25, "clean")
	for _, i := range []int{0, 5, 10, 15, 20} {
		rs.Rows[i].Columns["keyword"] = "free consultation"
	}

	batches, err := p.Classify("acme", testProfile(), rs)
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if batches != 2 {
		t.Errorf("batches = %d, want 2 (prefiltered rows form no batch)", batches)
	}
	want := [][2]int{{1, 2}, {2, 2}}
	if !reflect.DeepEqual(progress, want) {
		t.Errorf("progress = %v, want %v", progress, want)
	}
}

func TestMapCountsOnlySurvivingBatches(t *testing.T) {
	model := &fakeModel{}
	p := NewPipeline(model, testStore(t), 10, 0)

	rs := testResultSet(30, "map")
	for i := range rs.Rows {
		rs.Rows[i].Classification = ClassRemove
	}
	for _, i := range []int{2, 9, 17, 21, 28} {
		rs.Rows[i].Classification = ClassKeep
	}

	batches, err := p.Map("acme", testProfile(), rs)
	if err != nil {
		t.Fatalf("Map() error: %v", err)
	}
	if batches != 1 {
		t.Errorf("batches = %d, want 1 (REMOVE rows form no batch)", batches)
	}
}
