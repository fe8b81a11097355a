package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// keywordColumnPriority is checked in order against normalized headers. The
// first match wins; no match is a hard error because every stage keys on it.
var keywordColumnPriority = []string{"keyword", "keywords", "query", "search query", "term"}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// sniffDelimiter picks ';' over ',' when the header line carries more
// semicolons than commas. SEMRush exports use either depending on locale.
func sniffDelimiter(headerLine string) rune {
	if strings.Count(headerLine, ";") > strings.Count(headerLine, ",") {
		return ';'
	}
	return ','
}

// LoadTable reads a keyword CSV into a ResultSet with normalized headers and
// a resolved keyword column.
func LoadTable(path string) (*ResultSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()
	return ReadTable(f)
}

func ReadTable(r io.Reader) (*ResultSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	firstLine := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		firstLine = text[:i]
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sniffDelimiter(firstLine)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty table")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = normalizeHeader(h)
	}

	keywordCol, err := ResolveKeywordColumn(headers)
	if err != nil {
		return nil, err
	}

	rs := &ResultSet{
		KeywordCol: keywordCol,
		Headers:    headers,
	}
	for _, rec := range records[1:] {
		row := KeywordRow{Columns: make(map[string]string, len(headers))}
		for i, h := range headers {
			if i < len(rec) {
				row.Columns[h] = strings.TrimSpace(rec[i])
			}
		}
		if row.Keyword(keywordCol) == "" {
			continue
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs, nil
}

// ResolveKeywordColumn returns the first header matching the priority list.
func ResolveKeywordColumn(headers []string) (string, error) {
	have := make(map[string]bool, len(headers))
	for _, h := range headers {
		have[h] = true
	}
	for _, cand := range keywordColumnPriority {
		if have[cand] {
			return cand, nil
		}
	}
	return "", fmt.Errorf("no keyword column found (looked for %s) in headers: %s",
		strings.Join(keywordColumnPriority, ", "), strings.Join(headers, ", "))
}

// ReviewRows returns rows needing human review, lowest confidence first:
// everything below the threshold plus all UNSURE rows.
func ReviewRows(rs *ResultSet, threshold float64) []KeywordRow {
	var review []KeywordRow
	for _, row := range rs.Rows {
		if row.Classification == ClassUnsure || row.Confidence < threshold {
			review = append(review, row)
		}
	}
	sort.SliceStable(review, func(i, j int) bool {
		return review[i].Confidence < review[j].Confidence
	})
	return review
}

// resultColumns are appended after the original headers on export, skipping
// any that collide with an input column.
var resultColumns = []string{"classification", "confidence", "reason", "mapped_url", "search_intent", "recommendation", "notes"}

// WriteTable exports the result set as CSV: original columns first, result
// columns appended. keepOnly drops REMOVE rows.
func WriteTable(w io.Writer, rs *ResultSet, keepOnly bool) error {
	cw := csv.NewWriter(w)

	inputCols := make(map[string]bool, len(rs.Headers))
	header := append([]string(nil), rs.Headers...)
	for _, h := range rs.Headers {
		inputCols[h] = true
	}
	var extra []string
	for _, c := range resultColumns {
		if !inputCols[c] {
			extra = append(extra, c)
		}
	}
	header = append(header, extra...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range rs.Rows {
		if keepOnly && row.Classification == ClassRemove {
			continue
		}
		rec := make([]string, 0, len(header))
		for _, h := range rs.Headers {
			rec = append(rec, row.Columns[h])
		}
		for _, c := range extra {
			rec = append(rec, resultValue(row, c))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func resultValue(row KeywordRow, col string) string {
	switch col {
	case "classification":
		return row.Classification
	case "confidence":
		if row.Classification == "" && row.Recommendation == "" {
			return ""
		}
		return strconv.FormatFloat(row.Confidence, 'f', -1, 64)
	case "reason":
		return row.Reason
	case "mapped_url":
		return row.MappedURL
	case "search_intent":
		return row.SearchIntent
	case "recommendation":
		return row.Recommendation
	case "notes":
		return row.Notes
	}
	return ""
}

// ExportTable writes the result set to a CSV file.
func ExportTable(path string, rs *ResultSet, keepOnly bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	defer f.Close()
	return WriteTable(f, rs, keepOnly)
}
