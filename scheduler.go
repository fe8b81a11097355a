package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// PullResult tracks per-domain outcomes of one scheduled pull cycle.
type PullResult struct {
	Domains int
	Rows    int
	Files   []string
	Errors  []string
}

// RunScheduledPulls fetches fresh competitor keyword exports for every
// configured domain and writes them as CSVs into the pulls directory. It has
// no Slack dependency so the CLI command and the scheduler share it.
func RunScheduledPulls(cfg Config, store *ClientStore) (PullResult, error) {
	if !cfg.SemrushConfigured() {
		return PullResult{}, fmt.Errorf("semrush is not configured")
	}
	if len(cfg.PullDomains) == 0 {
		return PullResult{}, fmt.Errorf("no pull_domains configured")
	}

	client := NewSemrushClient(cfg.SemrushAPIKey, cfg.SemrushDatabase)
	var result PullResult
	result.Domains = len(cfg.PullDomains)

	for _, domain := range cfg.PullDomains {
		rs, err := client.PullCompetitorKeywords(domain, cfg.PullLimit)
		if err != nil {
			log.Printf("scheduled pull error domain=%s err=%v", domain, err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", domain, err))
			continue
		}

		name := fmt.Sprintf("%s_%s.csv", Slugify(domain), time.Now().UTC().Format("20060102T150405"))
		path := filepath.Join(store.PullsDir(), name)
		f, err := os.Create(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", domain, err))
			continue
		}
		err = WriteTable(f, rs, false)
		f.Close()
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", domain, err))
			continue
		}

		result.Rows += len(rs.Rows)
		result.Files = append(result.Files, name)
		log.Printf("scheduled pull saved domain=%s rows=%d file=%s", domain, len(rs.Rows), name)
	}

	if len(result.Errors) == result.Domains {
		return result, fmt.Errorf("all pulls failed: %s", strings.Join(result.Errors, "; "))
	}
	return result, nil
}

// FormatPullSummary returns a human-readable summary of a PullResult.
func FormatPullSummary(result PullResult) string {
	if len(result.Files) == 0 {
		return fmt.Sprintf("Keyword pull failed for all %d domains:\n%s",
			result.Domains, strings.Join(result.Errors, "\n"))
	}
	msg := fmt.Sprintf("Pulled %d keywords from %d/%d domains: %s",
		result.Rows, len(result.Files), result.Domains, strings.Join(result.Files, ", "))
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}

// StartPullScheduler starts a cron-based scheduler that refreshes competitor
// keyword exports and posts a summary to Slack.
// The schedule is a standard 5-field cron expression (minute hour day-of-month month day-of-week).
// Examples: "0 6 * * *" (daily 6am), "0 6 * * 1" (Mondays 6am).
func StartPullScheduler(cfg Config, store *ClientStore, notifier *Notifier) {
	schedule := strings.TrimSpace(cfg.PullSchedule)
	if schedule == "" {
		log.Println("Scheduled pulls disabled (pull_schedule not set)")
		return
	}
	if !cfg.SemrushConfigured() {
		log.Println("Scheduled pulls disabled: semrush is not configured")
		return
	}
	if len(cfg.PullDomains) == 0 {
		log.Println("Scheduled pulls disabled: no pull_domains configured")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid pull_schedule '%s': %v, scheduled pulls disabled", schedule, err)
		return
	}
	log.Printf("Scheduled pulls enabled (cron: %s) domains=%d", schedule, len(cfg.PullDomains))

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next pull at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			result, pullErr := RunScheduledPulls(cfg, store)
			summary := FormatPullSummary(result)
			if pullErr != nil {
				log.Printf("Scheduled pull error: %v", pullErr)
			}
			log.Printf("Scheduled pull complete: %s", summary)
			notifier.Post("Keyword pull complete: " + summary)
		}
	}()
}
