package main

import (
	"strings"
	"testing"
)

func TestFormatPullSummary_AllFailed(t *testing.T) {
	result := PullResult{
		Domains: 2,
		Errors:  []string{"dentalco.com: timeout", "smileclinic.com: timeout"},
	}
	got := FormatPullSummary(result)
	want := "Keyword pull failed for all 2 domains:\ndentalco.com: timeout\nsmileclinic.com: timeout"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatPullSummary_AllSucceeded(t *testing.T) {
	result := PullResult{
		Domains: 2,
		Rows:    350,
		Files:   []string{"dentalco-com_20260301T060000.csv", "smileclinic-com_20260301T060001.csv"},
	}
	got := FormatPullSummary(result)
	want := "Pulled 350 keywords from 2/2 domains: dentalco-com_20260301T060000.csv, smileclinic-com_20260301T060001.csv"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatPullSummary_PartialWithWarnings(t *testing.T) {
	result := PullResult{
		Domains: 2,
		Rows:    120,
		Files:   []string{"dentalco-com_20260301T060000.csv"},
		Errors:  []string{"smileclinic.com: ERROR 132 :: API UNITS BALANCE IS ZERO"},
	}
	got := FormatPullSummary(result)
	if !strings.HasPrefix(got, "Pulled 120 keywords from 1/2 domains:") {
		t.Errorf("summary missing success line: %q", got)
	}
	if !strings.Contains(got, "Warnings:\nsmileclinic.com: ERROR 132") {
		t.Errorf("summary missing warnings block: %q", got)
	}
}

func TestRunScheduledPullsRequiresSemrush(t *testing.T) {
	cfg := Config{PullDomains: []string{"dentalco.com"}}
	if _, err := RunScheduledPulls(cfg, testStore(t)); err == nil {
		t.Fatal("expected error when semrush is not configured")
	}
}

func TestRunScheduledPullsRequiresDomains(t *testing.T) {
	cfg := Config{SemrushAPIKey: "key"}
	if _, err := RunScheduledPulls(cfg, testStore(t)); err == nil {
		t.Fatal("expected error when no pull_domains configured")
	}
}
