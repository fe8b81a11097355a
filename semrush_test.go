package main

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testSemrush(srv *httptest.Server) *SemrushClient {
	c := NewSemrushClient("test-key", "us")
	c.baseURL = srv.URL + "/"
	c.unitsURL = srv.URL + "/countapiunit"
	c.httpc = srv.Client()
	return c
}

func TestPullCompetitorKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("type") != "domain_organic" {
			t.Errorf("type = %q", q.Get("type"))
		}
		if q.Get("domain") != "competitor.com" {
			t.Errorf("domain = %q", q.Get("domain"))
		}
		if q.Get("display_limit") != "100" {
			t.Errorf("display_limit = %q", q.Get("display_limit"))
		}
		if q.Get("export_columns") != semrushExportColumns {
			t.Errorf("export_columns = %q", q.Get("export_columns"))
		}
		fmt.Fprint(w, "Keyword;Search Volume;Keyword Difficulty;Competition;Number of Results;Intent\n"+
			"ent doctor near me;5400;62;0.31;12000000;transactional\n"+
			"sinus infection symptoms;22000;48;0.05;8800000;informational\n")
	}))
	defer srv.Close()

	rs, err := testSemrush(srv).PullCompetitorKeywords("competitor.com", 100)
	if err != nil {
		t.Fatalf("PullCompetitorKeywords() error: %v", err)
	}
	if rs.Stage != "pull" {
		t.Errorf("stage = %q", rs.Stage)
	}
	if rs.KeywordCol != "keyword" {
		t.Errorf("keyword column = %q", rs.KeywordCol)
	}
	if len(rs.Rows) != 2 {
		t.Fatalf("rows = %d", len(rs.Rows))
	}
	row := rs.Rows[0]
	if row.Columns["keyword"] != "ent doctor near me" || row.Columns["volume"] != "5400" ||
		row.Columns["kd"] != "62" || row.Columns["intent"] != "transactional" {
		t.Errorf("normalized row = %v", row.Columns)
	}
}

func TestPullCompetitorKeywordsColumnCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ph;Nq;Kd;Co;Nr;In\nhearing test;900;35;0.2;400000;informational\n")
	}))
	defer srv.Close()

	rs, err := testSemrush(srv).PullCompetitorKeywords("x.com", 10)
	if err != nil {
		t.Fatalf("PullCompetitorKeywords() error: %v", err)
	}
	if rs.Rows[0].Columns["keyword"] != "hearing test" || rs.Rows[0].Columns["volume"] != "900" {
		t.Errorf("code headers not normalized: %v", rs.Rows[0].Columns)
	}
}

func TestPullCompetitorKeywordsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// SEMRush reports problems in-band with a 200.
		fmt.Fprint(w, "ERROR 50 :: NOTHING FOUND")
	}))
	defer srv.Close()

	_, err := testSemrush(srv).PullCompetitorKeywords("x.com", 10)
	if err == nil {
		t.Fatal("expected error for ERROR response")
	}
	if !strings.Contains(err.Error(), "NOTHING FOUND") {
		t.Errorf("error = %v", err)
	}
}

func TestPullCompetitorKeywordsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	if _, err := testSemrush(srv).PullCompetitorKeywords("x.com", 10); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestCheckAPIUnits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, " 123456 \n")
	}))
	defer srv.Close()

	if units := testSemrush(srv).CheckAPIUnits(); units != 123456 {
		t.Errorf("units = %d", units)
	}
}

func TestCheckAPIUnitsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if units := testSemrush(srv).CheckAPIUnits(); units != -1 {
		t.Errorf("units = %d, want -1", units)
	}
}

func TestEstimatePullUnits(t *testing.T) {
	units, desc := EstimatePullUnits(500)
	if units != 5000 {
		t.Errorf("units = %d", units)
	}
	if !strings.Contains(desc, "5000 API units") {
		t.Errorf("desc = %q", desc)
	}
}
