package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "seoflow",
		Usage: "SEO keyword research workflows: profiles, cleaning, mapping, briefs, SOWs",
		Commands: []*cli.Command{
			profileCommand(),
			cleanCommand(),
			mapCommand(),
			briefsCommand(),
			sowCommand(),
			pullCommand(),
			exportCommand(),
			estimateCommand(),
			statsCommand(),
			watchCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// workspace bundles the shared state every command needs.
type workspace struct {
	cfg   Config
	store *ClientStore
}

func openWorkspace() (*workspace, error) {
	cfg := LoadConfig()
	ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	store, err := NewClientStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return &workspace{cfg: cfg, store: store}, nil
}

func (w *workspace) gateway() (*Gateway, error) {
	return NewGateway(w.cfg)
}

func progressPrinter(label string) func(done, total int) {
	return func(done, total int) {
		fmt.Printf("%s: %d/%d\n", label, done, total)
	}
}

// finishRun persists the cost log and run history and posts to Slack. When
// rs is non-nil its rows are recorded against the run for the stats command.
func (w *workspace) finishRun(client, stage string, rows, batches int, gw *Gateway, started time.Time, rs *ResultSet) {
	summary := gw.Ledger.Summary()
	if err := w.store.SaveCostLog(client, stage, gw.Ledger.Log()); err != nil {
		log.Printf("cost log save error: %v", err)
	}

	db, err := InitHistoryDB(w.store.HistoryPath())
	if err != nil {
		log.Printf("history db error: %v", err)
	} else {
		defer db.Close()
		runID, err := InsertRun(db, RunRecord{
			Client:       Slugify(client),
			Stage:        stage,
			Provider:     w.cfg.LLMProvider,
			Model:        gw.Model(),
			RowCount:     rows,
			BatchCount:   batches,
			InputTokens:  summary.TotalInputTokens,
			OutputTokens: summary.TotalOutputTokens,
			CostUSD:      summary.TotalCostUSD,
			StartedAt:    started,
		})
		if err != nil {
			log.Printf("history insert error: %v", err)
		} else if rs != nil {
			if err := InsertKeywordHistory(db, runID, Slugify(client), rs); err != nil {
				log.Printf("keyword history insert error: %v", err)
			}
		}
	}

	NewNotifier(w.cfg).PostRunSummary(Slugify(client), stage, rows, summary)
	fmt.Printf("%s complete: %d rows, %d calls, $%.4f\n", stage, rows, summary.TotalCalls, summary.TotalCostUSD)
}

// --- profile ---

func profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage client profiles",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Crawl a client site and generate its profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "domain", Required: true, Usage: "client site domain, e.g. example.com"},
					&cli.StringFlag{Name: "name", Usage: "business name override (defaults to extracted name)"},
				},
				Action: profileGenerateAction,
			},
			{
				Name:  "edit",
				Usage: "Edit a saved profile's negative keyword and category lists",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Required: true},
					&cli.StringSliceFlag{Name: "add-negative", Usage: "negative keyword to add (repeatable)"},
					&cli.StringSliceFlag{Name: "remove-negative", Usage: "negative keyword to remove (repeatable)"},
					&cli.StringSliceFlag{Name: "add-category", Usage: "negative category to add (repeatable)"},
					&cli.StringSliceFlag{Name: "remove-category", Usage: "negative category to remove (repeatable)"},
				},
				Action: profileEditAction,
			},
			{
				Name:  "show",
				Usage: "Print a client's saved profile",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "client", Required: true},
				},
				Action: profileShowAction,
			},
			{
				Name:   "list",
				Usage:  "List clients with saved profiles",
				Action: profileListAction,
			},
		},
	}
}

func profileGenerateAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	gw, err := w.gateway()
	if err != nil {
		return err
	}

	domain := c.String("domain")
	crawler := NewCrawler(w.cfg.CrawlMaxPages, w.cfg.CrawlDelaySeconds)
	crawler.Progress = progressPrinter("crawled")

	pages, err := crawler.CrawlSite(domain)
	if err != nil {
		return err
	}

	profile, err := gw.GenerateProfile(domain, pages)
	if err != nil {
		return err
	}
	profile.Domain = domain
	profile.URLInventory = Inventory(pages)
	if name := c.String("name"); name != "" {
		profile.BusinessName = name
	}
	if profile.BusinessName == "" {
		profile.BusinessName = domain
	}

	if err := w.store.SaveProfile(profile); err != nil {
		return err
	}
	fmt.Printf("profile saved: %s (%d pages, %d services)\n",
		Slugify(profile.BusinessName), len(profile.URLInventory), len(profile.Services))
	return nil
}

func profileEditAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	profile, err := w.store.LoadProfile(c.String("client"))
	if err != nil {
		return err
	}

	var added, removed int
	var n int
	profile.NegativeKeywords, n = addTerms(profile.NegativeKeywords, c.StringSlice("add-negative"))
	added += n
	profile.NegativeKeywords, n = removeTerms(profile.NegativeKeywords, c.StringSlice("remove-negative"))
	removed += n
	profile.NegativeCategories, n = addTerms(profile.NegativeCategories, c.StringSlice("add-category"))
	added += n
	profile.NegativeCategories, n = removeTerms(profile.NegativeCategories, c.StringSlice("remove-category"))
	removed += n

	if added == 0 && removed == 0 {
		return fmt.Errorf("nothing to change: pass --add-negative/--remove-negative/--add-category/--remove-category")
	}
	if err := w.store.SaveProfile(profile); err != nil {
		return err
	}
	fmt.Printf("profile updated: %s (+%d -%d, %d negative keywords, %d negative categories)\n",
		Slugify(profile.BusinessName), added, removed,
		len(profile.NegativeKeywords), len(profile.NegativeCategories))
	return nil
}

func profileShowAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	profile, err := w.store.LoadProfile(c.String("client"))
	if err != nil {
		return err
	}
	fmt.Println(profileJSON(profile))
	return nil
}

func profileListAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	clients, err := w.store.ListClients()
	if err != nil {
		return err
	}
	if len(clients) == 0 {
		fmt.Println("no clients yet")
		return nil
	}
	for _, name := range clients {
		fmt.Println(name)
	}
	return nil
}

// --- clean ---

func cleanCommand() *cli.Command {
	return &cli.Command{
		Name:  "clean",
		Usage: "Classify a keyword CSV as KEEP/REMOVE/UNSURE against the client profile",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client", Required: true},
			&cli.StringFlag{Name: "input", Required: true, Usage: "keyword CSV to classify"},
		},
		Action: cleanAction,
	}
}

func cleanAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	gw, err := w.gateway()
	if err != nil {
		return err
	}
	client := c.String("client")
	profile, err := w.store.LoadProfile(client)
	if err != nil {
		return err
	}

	rs, err := LoadTable(c.String("input"))
	if err != nil {
		return err
	}
	rs.Stage = "clean"

	started := time.Now()
	pipe := NewPipeline(gw, w.store, w.cfg.BatchSize, w.cfg.BatchPauseSeconds)
	pipe.Progress = progressPrinter("classified batches")
	batches, err := pipe.Classify(client, profile, rs)
	if err != nil {
		return err
	}

	review := ReviewRows(rs, w.cfg.ConfidenceThreshold)
	fmt.Printf("rows needing review: %d\n", len(review))

	w.finishRun(client, "clean", len(rs.Rows), batches, gw, started, rs)
	return nil
}

// --- map ---

func mapCommand() *cli.Command {
	return &cli.Command{
		Name:  "map",
		Usage: "Map cleaned keywords to site URLs or flag content gaps",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client", Required: true},
			&cli.StringFlag{Name: "input", Usage: "keyword CSV (defaults to latest clean results)"},
		},
		Action: mapAction,
	}
}

func mapAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	gw, err := w.gateway()
	if err != nil {
		return err
	}
	client := c.String("client")
	profile, err := w.store.LoadProfile(client)
	if err != nil {
		return err
	}
	if len(profile.URLInventory) == 0 {
		return fmt.Errorf("profile for %q has no URL inventory, re-run profile generation", client)
	}

	var rs *ResultSet
	if input := c.String("input"); input != "" {
		rs, err = LoadTable(input)
	} else {
		rs, err = w.store.LoadLatestResults(client, "clean")
	}
	if err != nil {
		return err
	}
	rs.Stage = "map"
	rs.Seq = 0 // new result set for the mapping stage

	started := time.Now()
	pipe := NewPipeline(gw, w.store, w.cfg.BatchSize, w.cfg.BatchPauseSeconds)
	pipe.Progress = progressPrinter("mapped batches")
	batches, err := pipe.Map(client, profile, rs)
	if err != nil {
		return err
	}

	w.finishRun(client, "map", len(rs.Rows), batches, gw, started, rs)
	return nil
}

// --- briefs ---

func briefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "briefs",
		Usage: "Cluster content-gap keywords and generate content briefs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client", Required: true},
		},
		Action: briefsAction,
	}
}

func briefsAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	gw, err := w.gateway()
	if err != nil {
		return err
	}
	client := c.String("client")
	profile, err := w.store.LoadProfile(client)
	if err != nil {
		return err
	}
	rs, err := w.store.LoadLatestResults(client, "map")
	if err != nil {
		return err
	}

	started := time.Now()
	runner := NewBriefRunner(gw, w.store)
	runner.Progress = progressPrinter("briefs")
	set, err := runner.Run(client, profile, rs)
	if err != nil {
		return err
	}

	w.finishRun(client, "briefs", len(set.Briefs), len(set.Briefs)+1, gw, started, nil)
	return nil
}

// --- sow ---

func sowCommand() *cli.Command {
	return &cli.Command{
		Name:  "sow",
		Usage: "Generate a Statement of Work and PM brief from a call transcript",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transcript", Required: true, Usage: "call transcript (.txt or .pdf)"},
			&cli.StringFlag{Name: "out", Value: ".", Usage: "output directory"},
			&cli.StringFlag{Name: "rep", Usage: "sales rep name for the SOW header"},
		},
		Action: sowAction,
	}
}

func sowAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	gw, err := w.gateway()
	if err != nil {
		return err
	}

	transcript, err := ReadTranscript(c.String("transcript"))
	if err != nil {
		return err
	}

	fields, err := gw.ExtractSOWFields(transcript)
	if err != nil {
		return err
	}
	if rep := c.String("rep"); rep != "" {
		fields.RepName = rep
	}
	fmt.Printf("extracted: client=%q specialty=%q service=%s (%.0f%% confident)\n",
		fields.ClientName, fields.PracticeSpecialty, fields.ServiceType, fields.ServiceTypeConfidence)

	content, err := gw.GenerateSOWContent(fields)
	if err != nil {
		return err
	}

	slug := Slugify(orBracket(fields.ClientName, "client"))
	stamp := time.Now().Format("20060102")
	sowPath := filepath.Join(c.String("out"), fmt.Sprintf("sow_%s_%s.md", slug, stamp))
	briefPath := filepath.Join(c.String("out"), fmt.Sprintf("pm_brief_%s_%s.txt", slug, stamp))

	if err := os.WriteFile(sowPath, []byte(RenderSOWMarkdown(fields, content)), 0o644); err != nil {
		return fmt.Errorf("write sow: %w", err)
	}
	if err := os.WriteFile(briefPath, []byte(BuildPMBrief(fields, content)), 0o644); err != nil {
		return fmt.Errorf("write pm brief: %w", err)
	}

	if err := w.store.SaveCostLog(orBracket(fields.ClientName, "global"), "sow", gw.Ledger.Log()); err != nil {
		log.Printf("cost log save error: %v", err)
	}

	summary := gw.Ledger.Summary()
	fmt.Printf("wrote %s and %s ($%.4f)\n", sowPath, briefPath, summary.TotalCostUSD)
	return nil
}

// --- pull ---

func pullCommand() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Pull competitor keywords from SEMRush into the pulls directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "domain", Usage: "competitor domain (defaults to configured pull_domains)"},
			&cli.BoolFlag{Name: "units", Usage: "only print remaining API units"},
		},
		Action: pullAction,
	}
}

func pullAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	if !w.cfg.SemrushConfigured() {
		return fmt.Errorf("SEMRUSH_API_KEY is not set")
	}

	if c.Bool("units") {
		units := NewSemrushClient(w.cfg.SemrushAPIKey, w.cfg.SemrushDatabase).CheckAPIUnits()
		if units < 0 {
			fmt.Println("API units: unavailable for this account")
		} else {
			fmt.Printf("API units remaining: %d\n", units)
		}
		return nil
	}

	cfg := w.cfg
	if domain := c.String("domain"); domain != "" {
		cfg.PullDomains = []string{domain}
	}
	_, desc := EstimatePullUnits(cfg.PullLimit * len(cfg.PullDomains))
	fmt.Printf("estimated cost: %s\n", desc)

	result, err := RunScheduledPulls(cfg, w.store)
	if err != nil {
		return err
	}
	fmt.Println(FormatPullSummary(result))
	return nil
}

// --- export ---

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export a stage's latest results as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client", Required: true},
			&cli.StringFlag{Name: "stage", Value: "map", Usage: "clean or map"},
			&cli.StringFlag{Name: "out", Required: true, Usage: "output CSV path"},
			&cli.BoolFlag{Name: "keep-only", Usage: "drop REMOVE rows from the export"},
		},
		Action: exportAction,
	}
}

func exportAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	rs, err := w.store.LoadLatestResults(c.String("client"), c.String("stage"))
	if err != nil {
		return err
	}
	if err := ExportTable(c.String("out"), rs, c.Bool("keep-only")); err != nil {
		return err
	}
	fmt.Printf("exported %d rows to %s\n", len(rs.Rows), c.String("out"))
	return nil
}

// --- estimate ---

func estimateCommand() *cli.Command {
	return &cli.Command{
		Name:  "estimate",
		Usage: "Estimate LLM cost for a run before starting it",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "rows", Required: true},
			&cli.StringFlag{Name: "task", Value: "cleaning", Usage: "cleaning, mapping or briefs"},
			&cli.StringFlag{Name: "model", Usage: "model to price (defaults to configured model)"},
		},
		Action: estimateAction,
	}
}

func estimateAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	model := c.String("model")
	if model == "" {
		model = w.cfg.LLMModel
	}
	if model == "" {
		model = defaultOpenRouterModel
	}

	est := EstimateCost(c.Int("rows"), c.String("task"), model)
	fmt.Printf("task=%s rows=%d batches=%d model=%s\n", c.String("task"), c.Int("rows"), est.Batches, model)
	fmt.Printf("estimated tokens: %d in / %d out\n", est.EstInputTokens, est.EstOutputTokens)
	fmt.Printf("estimated cost:   $%.4f\n", est.EstCostUSD)
	fmt.Printf("estimated time:   %.1f minutes\n", est.EstMinutes)
	return nil
}

// --- stats ---

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show run history and confidence distribution for a client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "client", Required: true},
			&cli.IntFlag{Name: "days", Value: 90},
		},
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	db, err := InitHistoryDB(w.store.HistoryPath())
	if err != nil {
		return err
	}
	defer db.Close()

	client := Slugify(c.String("client"))
	since := time.Now().AddDate(0, 0, -c.Int("days"))

	stats, err := GetHistoryStats(db, client, since)
	if err != nil {
		return err
	}
	fmt.Printf("client=%s since=%s\n", client, since.Format("2006-01-02"))
	fmt.Printf("runs: %d  cost: $%.4f  keywords: %d  avg confidence: %.1f\n",
		stats.TotalRuns, stats.TotalCostUSD, stats.TotalKeywords, stats.AvgConfidence)
	fmt.Printf("confidence buckets: <50: %d  50-70: %d  70-90: %d  90+: %d\n",
		stats.BucketBelow50, stats.Bucket50to70, stats.Bucket70to90, stats.Bucket90Plus)

	runs, err := GetRunsByClient(db, client, 10)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("  %s %-8s rows=%-5d $%.4f %s\n",
			r.FinishedAt.Format("2006-01-02 15:04"), r.Stage, r.RowCount, r.CostUSD, r.Model)
	}
	return nil
}

// --- watch ---

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Run the scheduled competitor keyword pulls until interrupted",
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	w, err := openWorkspace()
	if err != nil {
		return err
	}
	if strings.TrimSpace(w.cfg.PullSchedule) == "" {
		return fmt.Errorf("pull_schedule is not configured")
	}
	StartPullScheduler(w.cfg, w.store, NewNotifier(w.cfg))
	select {} // scheduler runs in its own goroutine
}
