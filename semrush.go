package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	semrushBaseURL      = "https://api.semrush.com/"
	semrushUnitsURL     = "https://www.semrush.com/users/countapiunit"
	semrushUnitsPerLine = 10 // domain_organic pricing

	// Ph keyword, Nq volume, Kd difficulty, Co competition,
	// Nr result count, In intent
	semrushExportColumns = "Ph,Nq,Kd,Co,Nr,In"
)

// semrushColumnMap normalizes SEMRush's column codes and display names to
// the headers the pipeline expects.
var semrushColumnMap = map[string]string{
	"keyword":            "keyword",
	"ph":                 "keyword",
	"search volume":      "volume",
	"nq":                 "volume",
	"keyword difficulty": "kd",
	"kd":                 "kd",
	"competition":        "competition",
	"co":                 "competition",
	"cpc":                "cpc",
	"cp":                 "cpc",
	"number of results":  "number_of_results",
	"nr":                 "number_of_results",
	"intent":             "intent",
	"intents":            "intent",
	"in":                 "intent",
	"position":           "position",
	"po":                 "position",
	"traffic":            "traffic",
	"tr":                 "traffic",
	"traffic cost":       "traffic_cost",
	"td":                 "traffic_cost",
}

// SemrushClient pulls competitor keyword exports from the SEMRush analytics
// API.
type SemrushClient struct {
	apiKey   string
	database string
	baseURL  string
	unitsURL string
	httpc    *http.Client
}

func NewSemrushClient(apiKey, database string) *SemrushClient {
	if database == "" {
		database = "us"
	}
	return &SemrushClient{
		apiKey:   apiKey,
		database: database,
		baseURL:  semrushBaseURL,
		unitsURL: semrushUnitsURL,
		httpc:    externalHTTPClient,
	}
}

// PullCompetitorKeywords fetches the domain_organic report for a competitor
// and returns it as a ResultSet ready for the cleaning stage.
func (c *SemrushClient) PullCompetitorKeywords(domain string, limit int) (*ResultSet, error) {
	params := url.Values{}
	params.Set("type", "domain_organic")
	params.Set("key", c.apiKey)
	params.Set("domain", domain)
	params.Set("database", c.database)
	params.Set("display_limit", strconv.Itoa(limit))
	params.Set("export_columns", semrushExportColumns)

	log.Printf("semrush pull domain=%s database=%s limit=%d", domain, c.database, limit)
	resp, err := c.httpc.Get(c.baseURL + "?" + params.Encode())
	if err != nil {
		return nil, fmt.Errorf("semrush request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("semrush read response: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("semrush status %d: %s", resp.StatusCode, truncateForLog(text, 200))
	}
	// Errors come back as 200 with an ERROR line, not an HTTP status.
	head := text
	if len(head) > 50 {
		head = head[:50]
	}
	if text == "" || strings.Contains(head, "ERROR") {
		if text == "" {
			text = "empty response"
		}
		return nil, fmt.Errorf("semrush api error: %s", truncateForLog(text, 200))
	}

	rs, err := ReadTable(strings.NewReader(normalizeSemrushHeaders(text)))
	if err != nil {
		return nil, fmt.Errorf("parse semrush export: %w", err)
	}
	rs.Stage = "pull"
	return rs, nil
}

// normalizeSemrushHeaders rewrites the header line of the semicolon export
// so downstream code sees the pipeline's canonical column names.
func normalizeSemrushHeaders(text string) string {
	lines := strings.SplitN(text, "\n", 2)
	delim := string(sniffDelimiter(lines[0]))
	cols := strings.Split(lines[0], delim)
	for i, c := range cols {
		key := strings.ToLower(strings.TrimSpace(c))
		if mapped, ok := semrushColumnMap[key]; ok {
			cols[i] = mapped
		} else {
			cols[i] = key
		}
	}
	out := strings.Join(cols, delim)
	if len(lines) > 1 {
		out += "\n" + lines[1]
	}
	return out
}

// CheckAPIUnits returns the remaining SEMRush API balance, or -1 when the
// units endpoint is unavailable for the account.
func (c *SemrushClient) CheckAPIUnits() int {
	resp, err := c.httpc.Get(c.unitsURL + "?key=" + url.QueryEscape(c.apiKey))
	if err != nil {
		return -1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return -1
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return -1
	}
	units, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return -1
	}
	return units
}

// EstimatePullUnits returns the API unit cost of a pull and a human-readable
// description.
func EstimatePullUnits(numKeywords int) (int, string) {
	units := numKeywords * semrushUnitsPerLine
	desc := fmt.Sprintf("%d keywords x %d units/keyword = %d API units",
		numKeywords, semrushUnitsPerLine, units)
	return units, desc
}
