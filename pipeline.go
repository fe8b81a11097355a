package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

const (
	defaultBatchSize  = 100
	maxAnchorExamples = 3
)

// keywordModel is the slice of Gateway the pipeline needs. Tests substitute
// a scripted implementation.
type keywordModel interface {
	ClassifyKeywords(profile *ClientProfile, batch []KeywordInput, examples []ClassifyResult) ([]ClassifyResult, error)
	MapKeywords(profile *ClientProfile, batch []KeywordInput, urls []URLInfo) ([]MapResult, error)
}

// Pipeline runs the batched keyword stages: classification and mapping. Each
// batch is checkpointed to the store before the next one starts, so an
// interrupted run resumes from the last saved batch.
type Pipeline struct {
	model     keywordModel
	store     *ClientStore
	batchSize int
	pause     time.Duration
	sleep     func(time.Duration)

	// Progress, when set, is called after each checkpoint with
	// (completed, total) batch counts.
	Progress func(done, total int)
}

func NewPipeline(model keywordModel, store *ClientStore, batchSize int, pauseSeconds int) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Pipeline{
		model:     model,
		store:     store,
		batchSize: batchSize,
		pause:     time.Duration(pauseSeconds) * time.Second,
		sleep:     time.Sleep,
	}
}

func (p *Pipeline) report(done, total int) {
	if p.Progress != nil {
		p.Progress(done, total)
	}
}

// matchesNegative reports whether the keyword contains any negative keyword
// or negative category phrase from the profile. Matching is case-insensitive
// substring, same as a human scanning a column.
func matchesNegative(profile *ClientProfile, keyword string) (string, bool) {
	lower := strings.ToLower(keyword)
	for _, neg := range profile.NegativeKeywords {
		if neg != "" && strings.Contains(lower, strings.ToLower(neg)) {
			return neg, true
		}
	}
	for _, neg := range profile.NegativeCategories {
		if neg != "" && strings.Contains(lower, strings.ToLower(neg)) {
			return neg, true
		}
	}
	return "", false
}

// collectAnchors keeps at most one example per classification category,
// taking the first occurrence of each, capped at maxAnchorExamples total.
func collectAnchors(existing []ClassifyResult, results []ClassifyResult) []ClassifyResult {
	seen := make(map[string]bool, len(existing))
	for _, ex := range existing {
		seen[ex.Classification] = true
	}
	for _, r := range results {
		if len(existing) >= maxAnchorExamples {
			break
		}
		if seen[r.Classification] {
			continue
		}
		seen[r.Classification] = true
		existing = append(existing, r)
	}
	return existing
}

// Classify runs the cleaning stage over the full table. Rows matching a
// profile negative are classified REMOVE locally and never sent to the
// model. The remainder is sliced into batches; a failed batch degrades to
// UNSURE rows instead of aborting the run. Returns the number of batches
// dispatched to the model.
func (p *Pipeline) Classify(client string, profile *ClientProfile, rs *ResultSet) (int, error) {
	total := len(rs.Rows)
	var remote []int
	prefiltered := 0
	for i := range rs.Rows {
		kw := rs.Rows[i].Keyword(rs.KeywordCol)
		if neg, ok := matchesNegative(profile, kw); ok {
			rs.Rows[i].Classification = ClassRemove
			rs.Rows[i].Confidence = 100
			rs.Rows[i].Reason = "matched negative keyword: " + neg
			prefiltered++
			continue
		}
		remote = append(remote, i)
	}
	batches := (len(remote) + p.batchSize - 1) / p.batchSize
	log.Printf("classify start client=%s rows=%d prefiltered=%d batches=%d",
		client, total, prefiltered, batches)

	var anchors []ClassifyResult
	done := 0
	for start := 0; start < len(remote); start += p.batchSize {
		end := start + p.batchSize
		if end > len(remote) {
			end = len(remote)
		}
		idx := remote[start:end]

		batch := make([]KeywordInput, len(idx))
		for j, i := range idx {
			batch[j] = rowInput(&rs.Rows[i], rs.KeywordCol)
		}

		results, err := p.model.ClassifyKeywords(profile, batch, anchors)
		if err != nil {
			log.Printf("classify batch failed rows=%d err=%v", len(idx), err)
			for _, i := range idx {
				rs.Rows[i].Classification = ClassUnsure
				rs.Rows[i].Confidence = 0
				rs.Rows[i].Reason = "batch failed: " + err.Error()
			}
		} else {
			if len(results) != len(idx) {
				log.Printf("classify result count mismatch want=%d got=%d", len(idx), len(results))
			}
			for j, i := range idx {
				if j < len(results) {
					rs.Rows[i].Classification = normalizeClass(results[j].Classification)
					rs.Rows[i].Confidence = results[j].Confidence
					rs.Rows[i].Reason = results[j].Reason
				} else {
					rs.Rows[i].Classification = ClassUnsure
					rs.Rows[i].Confidence = 0
					rs.Rows[i].Reason = "no result returned for this row"
				}
			}
			anchors = collectAnchors(anchors, results)
		}

		done++
		if err := p.store.SaveResults(client, rs); err != nil {
			return done, fmt.Errorf("checkpoint after batch: %w", err)
		}
		p.report(done, batches)

		if end < len(remote) && p.pause > 0 {
			p.sleep(p.pause)
		}
	}

	if len(remote) == 0 {
		// Pure-prefilter runs still need a saved result set.
		if err := p.store.SaveResults(client, rs); err != nil {
			return 0, fmt.Errorf("save results: %w", err)
		}
	}
	log.Printf("classify done client=%s rows=%d batches=%d", client, total, batches)
	return batches, nil
}

// Map runs the mapping stage over rows that survived cleaning (KEEP and
// UNSURE). A failed batch degrades to Error recommendations; sentinel URLs
// from the model become recommendations, real URLs become Existing URL.
// Returns the number of batches dispatched to the model.
func (p *Pipeline) Map(client string, profile *ClientProfile, rs *ResultSet) (int, error) {
	var remote []int
	for i := range rs.Rows {
		if rs.Rows[i].Classification == ClassRemove {
			continue
		}
		remote = append(remote, i)
	}
	total := len(remote)
	batches := (total + p.batchSize - 1) / p.batchSize
	log.Printf("map start client=%s rows=%d batches=%d", client, total, batches)

	done := 0
	for start := 0; start < len(remote); start += p.batchSize {
		end := start + p.batchSize
		if end > len(remote) {
			end = len(remote)
		}
		idx := remote[start:end]

		batch := make([]KeywordInput, len(idx))
		for j, i := range idx {
			batch[j] = rowInput(&rs.Rows[i], rs.KeywordCol)
		}

		results, err := p.model.MapKeywords(profile, batch, profile.URLInventory)
		if err != nil {
			log.Printf("map batch failed rows=%d err=%v", len(idx), err)
			for _, i := range idx {
				rs.Rows[i].MappedURL = ""
				rs.Rows[i].Confidence = 0
				rs.Rows[i].Recommendation = RecError
				rs.Rows[i].Notes = "batch failed: " + err.Error()
			}
		} else {
			if len(results) != len(idx) {
				log.Printf("map result count mismatch want=%d got=%d", len(idx), len(results))
			}
			for j, i := range idx {
				if j < len(results) {
					applyMapping(&rs.Rows[i], results[j])
				} else {
					rs.Rows[i].MappedURL = ""
					rs.Rows[i].Confidence = 0
					rs.Rows[i].Recommendation = RecError
					rs.Rows[i].Notes = "no result returned for this row"
				}
			}
		}

		done++
		if err := p.store.SaveResults(client, rs); err != nil {
			return done, fmt.Errorf("checkpoint after batch: %w", err)
		}
		p.report(done, batches)

		if end < len(remote) && p.pause > 0 {
			p.sleep(p.pause)
		}
	}

	if total == 0 {
		if err := p.store.SaveResults(client, rs); err != nil {
			return 0, fmt.Errorf("save results: %w", err)
		}
	}
	log.Printf("map done client=%s rows=%d batches=%d", client, total, batches)
	return batches, nil
}

func rowInput(row *KeywordRow, keywordCol string) KeywordInput {
	kd := row.Columns["keyword difficulty"]
	if kd == "" {
		kd = row.Columns["kd"]
	}
	return KeywordInput{
		Keyword: row.Keyword(keywordCol),
		Volume:  row.Columns["volume"],
		KD:      kd,
		Intent:  row.Columns["intent"],
	}
}

func normalizeClass(c string) string {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case ClassKeep:
		return ClassKeep
	case ClassRemove:
		return ClassRemove
	default:
		return ClassUnsure
	}
}

func applyMapping(row *KeywordRow, r MapResult) {
	row.Confidence = r.Confidence
	row.SearchIntent = r.Intent
	row.Notes = r.Notes
	switch strings.TrimSpace(r.URL) {
	case SentinelNewPage:
		row.MappedURL = ""
		row.Recommendation = RecNewPage
	case SentinelBlogPost:
		row.MappedURL = ""
		row.Recommendation = RecBlogPost
	case "":
		row.MappedURL = ""
		row.Recommendation = RecError
		if row.Notes == "" {
			row.Notes = "model returned empty url"
		}
	default:
		row.MappedURL = r.URL
		row.Recommendation = RecExisting
	}
}
