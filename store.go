package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ClientStore owns the on-disk layout under the data directory:
//
//	clients/<slug>/profile.json
//	clients/<slug>/<stage>_<seq>_<ts>.json
//	clients/<slug>/<stage>_index.json
//	clients/<slug>/briefs_<ts>.json
//	clients/<slug>/cost_logs/<stage>_<ts>.json
//	pulls/
//	history.db
type ClientStore struct {
	root string
}

func NewClientStore(dataDir string) (*ClientStore, error) {
	for _, dir := range []string{dataDir, filepath.Join(dataDir, "clients"), filepath.Join(dataDir, "pulls")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	return &ClientStore{root: dataDir}, nil
}

func (s *ClientStore) Root() string { return s.root }

func (s *ClientStore) PullsDir() string { return filepath.Join(s.root, "pulls") }

func (s *ClientStore) HistoryPath() string { return filepath.Join(s.root, "history.db") }

func (s *ClientStore) clientDir(client string) string {
	return filepath.Join(s.root, "clients", Slugify(client))
}

func (s *ClientStore) ensureClientDir(client string) (string, error) {
	dir := s.clientDir(client)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create client dir: %w", err)
	}
	return dir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// --- Profiles ---

func (s *ClientStore) SaveProfile(profile *ClientProfile) error {
	dir, err := s.ensureClientDir(profile.BusinessName)
	if err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "profile.json"), profile)
}

func (s *ClientStore) LoadProfile(client string) (*ClientProfile, error) {
	var profile ClientProfile
	path := filepath.Join(s.clientDir(client), "profile.json")
	if err := readJSON(path, &profile); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no profile for client %q, run profile generation first", client)
		}
		return nil, err
	}
	return &profile, nil
}

// ListClients returns the slugs of every client with a saved profile.
func (s *ClientStore) ListClients() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "clients"))
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.root, "clients", e.Name(), "profile.json")); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- Result sets ---

type indexEntry struct {
	Seq     int       `json:"seq"`
	File    string    `json:"file"`
	SavedAt time.Time `json:"saved_at"`
}

type stageIndex struct {
	LatestSeq int          `json:"latest_seq"`
	Entries   []indexEntry `json:"entries"`
}

func (s *ClientStore) indexPath(client, stage string) string {
	return filepath.Join(s.clientDir(client), stage+"_index.json")
}

func (s *ClientStore) loadIndex(client, stage string) (*stageIndex, error) {
	var idx stageIndex
	if err := readJSON(s.indexPath(client, stage), &idx); err != nil {
		if os.IsNotExist(err) {
			return &stageIndex{}, nil
		}
		return nil, err
	}
	return &idx, nil
}

// SaveResults persists a result set. First save allocates the next sequence
// number for the stage and registers it in the index; later saves of the
// same set (batch checkpoints) overwrite the same file.
func (s *ClientStore) SaveResults(client string, rs *ResultSet) error {
	dir, err := s.ensureClientDir(client)
	if err != nil {
		return err
	}
	if rs.Stage == "" {
		return fmt.Errorf("result set has no stage")
	}
	if rs.Client == "" {
		rs.Client = Slugify(client)
	}

	idx, err := s.loadIndex(client, rs.Stage)
	if err != nil {
		return err
	}
	if rs.Seq == 0 {
		rs.Seq = idx.LatestSeq + 1
		rs.SavedAt = time.Now().UTC()
	}

	file := fmt.Sprintf("%s_%04d_%s.json", rs.Stage, rs.Seq, rs.SavedAt.Format("20060102T150405"))
	if err := writeJSON(filepath.Join(dir, file), rs); err != nil {
		return err
	}

	found := false
	for i := range idx.Entries {
		if idx.Entries[i].Seq == rs.Seq {
			idx.Entries[i].File = file
			idx.Entries[i].SavedAt = rs.SavedAt
			found = true
			break
		}
	}
	if !found {
		idx.Entries = append(idx.Entries, indexEntry{Seq: rs.Seq, File: file, SavedAt: rs.SavedAt})
	}
	if rs.Seq > idx.LatestSeq {
		idx.LatestSeq = rs.Seq
	}
	return writeJSON(s.indexPath(client, rs.Stage), idx)
}

// LoadLatestResults returns the highest-sequence result set for a stage. The
// sequence number in the index decides, not filename ordering.
func (s *ClientStore) LoadLatestResults(client, stage string) (*ResultSet, error) {
	idx, err := s.loadIndex(client, stage)
	if err != nil {
		return nil, err
	}
	if idx.LatestSeq == 0 {
		return nil, fmt.Errorf("no %s results for client %q", stage, client)
	}
	var latest *indexEntry
	for i := range idx.Entries {
		if idx.Entries[i].Seq == idx.LatestSeq {
			latest = &idx.Entries[i]
			break
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%s index for client %q is missing seq %d", stage, client, idx.LatestSeq)
	}
	var rs ResultSet
	if err := readJSON(filepath.Join(s.clientDir(client), latest.File), &rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// --- Briefs ---

func (s *ClientStore) SaveBriefs(client string, set *BriefSet) (string, error) {
	dir, err := s.ensureClientDir(client)
	if err != nil {
		return "", err
	}
	if set.SavedAt.IsZero() {
		set.SavedAt = time.Now().UTC()
	}
	file := fmt.Sprintf("briefs_%s.json", set.SavedAt.Format("20060102T150405"))
	path := filepath.Join(dir, file)
	return path, writeJSON(path, set)
}

// --- Cost logs ---

func (s *ClientStore) SaveCostLog(client, stage string, costLog CostLog) error {
	dir, err := s.ensureClientDir(client)
	if err != nil {
		return err
	}
	logDir := filepath.Join(dir, "cost_logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create cost log dir: %w", err)
	}
	file := fmt.Sprintf("%s_%s.json", stage, time.Now().UTC().Format("20060102T150405"))
	return writeJSON(filepath.Join(logDir, file), costLog)
}
