package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitHistoryDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		client        TEXT NOT NULL,
		stage         TEXT NOT NULL,
		provider      TEXT DEFAULT '',
		model         TEXT DEFAULT '',
		row_count     INTEGER NOT NULL DEFAULT 0,
		batch_count   INTEGER NOT NULL DEFAULT 0,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		cost_usd      REAL NOT NULL DEFAULT 0,
		started_at    DATETIME NOT NULL,
		finished_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_runs_client ON runs(client);
	CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);

	CREATE TABLE IF NOT EXISTS keyword_history (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id         INTEGER NOT NULL,
		client         TEXT NOT NULL,
		keyword        TEXT NOT NULL,
		classification TEXT DEFAULT '',
		confidence     REAL NOT NULL DEFAULT 0,
		reason         TEXT DEFAULT '',
		mapped_url     TEXT DEFAULT '',
		recommendation TEXT DEFAULT '',
		recorded_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_kh_run ON keyword_history(run_id);
	CREATE INDEX IF NOT EXISTS idx_kh_client ON keyword_history(client);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return db, nil
}

type RunRecord struct {
	ID           int64
	Client       string
	Stage        string
	Provider     string
	Model        string
	RowCount     int
	BatchCount   int
	InputTokens  int64
	OutputTokens int64
	CostUSD      float64
	StartedAt    time.Time
	FinishedAt   time.Time
}

func InsertRun(db *sql.DB, r RunRecord) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO runs (client, stage, provider, model, row_count, batch_count, input_tokens, output_tokens, cost_usd, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Client, r.Stage, r.Provider, r.Model, r.RowCount, r.BatchCount,
		r.InputTokens, r.OutputTokens, r.CostUSD, r.StartedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func InsertKeywordHistory(db *sql.DB, runID int64, client string, rs *ResultSet) error {
	if len(rs.Rows) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO keyword_history (run_id, client, keyword, classification, confidence, reason, mapped_url, recommendation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rs.Rows {
		if _, err := stmt.Exec(
			runID, client, row.Keyword(rs.KeywordCol), row.Classification,
			row.Confidence, row.Reason, row.MappedURL, row.Recommendation,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func GetRunsByClient(db *sql.DB, client string, limit int) ([]RunRecord, error) {
	rows, err := db.Query(
		`SELECT id, client, stage, provider, model, row_count, batch_count, input_tokens, output_tokens, cost_usd, started_at, finished_at
		 FROM runs WHERE client = ? ORDER BY finished_at DESC, id DESC LIMIT ?`,
		client, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.Client, &r.Stage, &r.Provider, &r.Model, &r.RowCount, &r.BatchCount,
			&r.InputTokens, &r.OutputTokens, &r.CostUSD, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type HistoryStats struct {
	TotalRuns     int
	TotalKeywords int
	TotalCostUSD  float64
	AvgConfidence float64
	BucketBelow50 int
	Bucket50to70  int
	Bucket70to90  int
	Bucket90Plus  int
}

func GetHistoryStats(db *sql.DB, client string, since time.Time) (HistoryStats, error) {
	var s HistoryStats
	err := db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(cost_usd), 0)
		 FROM runs WHERE client = ? AND finished_at >= ?`,
		client, since,
	).Scan(&s.TotalRuns, &s.TotalCostUSD)
	if err != nil {
		return s, err
	}

	err = db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(confidence), 0),
		        COALESCE(SUM(CASE WHEN confidence < 50 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 50 AND confidence < 70 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 70 AND confidence < 90 THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN confidence >= 90 THEN 1 ELSE 0 END), 0)
		 FROM keyword_history WHERE client = ? AND recorded_at >= ?`,
		client, since,
	).Scan(&s.TotalKeywords, &s.AvgConfidence,
		&s.BucketBelow50, &s.Bucket50to70, &s.Bucket70to90, &s.Bucket90Plus)
	return s, err
}
