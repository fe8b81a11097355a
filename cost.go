package main

import (
	"math"
	"sync"
	"time"
)

// ModelPricing is $ per 1M tokens.
type ModelPricing struct {
	Input  float64
	Output float64
}

var modelPricing = map[string]ModelPricing{
	"anthropic/claude-haiku-4-5-20251001":  {Input: 1.00, Output: 5.00},
	"anthropic/claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	"claude-haiku-4-5-20251001":            {Input: 1.00, Output: 5.00},
	"claude-sonnet-4-5-20250929":           {Input: 3.00, Output: 15.00},
	"google/gemini-2.5-flash":              {Input: 0.30, Output: 2.50},
	"moonshotai/kimi-k2":                   {Input: 0.50, Output: 2.40},
}

var defaultPricing = ModelPricing{Input: 1.00, Output: 5.00}

func pricingFor(model string) ModelPricing {
	if p, ok := modelPricing[model]; ok {
		return p
	}
	return defaultPricing
}

// CostEntry records actual token usage for one completed model call.
type CostEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Model        string    `json:"model"`
	Task         string    `json:"task"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// CostLedger tracks token usage and derived dollar cost across the calls of
// one gateway instance. Accounting only: it never blocks or throttles.
type CostLedger struct {
	mu                sync.Mutex
	Calls             []CostEntry `json:"calls"`
	TotalInputTokens  int64       `json:"total_input_tokens"`
	TotalOutputTokens int64       `json:"total_output_tokens"`
	TotalCostUSD      float64     `json:"total_cost_usd"`
}

func NewCostLedger() *CostLedger {
	return &CostLedger{}
}

func (l *CostLedger) Record(model, task string, inputTokens, outputTokens int64) CostEntry {
	pricing := pricingFor(model)
	cost := float64(inputTokens)*pricing.Input/1e6 + float64(outputTokens)*pricing.Output/1e6

	entry := CostEntry{
		Timestamp:    time.Now(),
		Model:        model,
		Task:         task,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      roundTo(cost, 6),
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.Calls = append(l.Calls, entry)
	l.TotalInputTokens += inputTokens
	l.TotalOutputTokens += outputTokens
	l.TotalCostUSD += cost
	return entry
}

// CostSummary is the header block of a persisted cost log.
type CostSummary struct {
	TotalCalls        int     `json:"total_calls"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
	TotalCostUSD      float64 `json:"total_cost_usd"`
}

func (l *CostLedger) Summary() CostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return CostSummary{
		TotalCalls:        len(l.Calls),
		TotalInputTokens:  l.TotalInputTokens,
		TotalOutputTokens: l.TotalOutputTokens,
		TotalCostUSD:      roundTo(l.TotalCostUSD, 4),
	}
}

// CostLog is the persisted cost document: summary totals plus every
// per-call ledger entry of the run.
type CostLog struct {
	CostSummary
	Calls []CostEntry `json:"calls"`
}

func (l *CostLedger) Log() CostLog {
	summary := l.Summary()
	l.mu.Lock()
	defer l.mu.Unlock()
	calls := make([]CostEntry, len(l.Calls))
	copy(calls, l.Calls)
	return CostLog{CostSummary: summary, Calls: calls}
}

func roundTo(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

// --- Pre-flight estimation ---

// Estimate is an advisory pre-flight projection for a run; actual cost is
// governed solely by the CostLedger and no reconciliation is performed.
type Estimate struct {
	Model           string  `json:"model"`
	Batches         int     `json:"batches"`
	EstInputTokens  int64   `json:"est_input_tokens"`
	EstOutputTokens int64   `json:"est_output_tokens"`
	EstCostUSD      float64 `json:"est_cost_usd"`
	EstMinutes      float64 `json:"est_minutes"`
}

// Per-batch token heuristics by task type. Cleaning: ~800 profile + ~2500
// keywords in, structured classifications out. Mapping adds ~3000 tokens of
// URL inventory. Briefs are one call per cluster.
const (
	cleaningInputPerBatch  = 3300
	cleaningOutputPerBatch = 3000
	mappingInputPerBatch   = 6300
	mappingOutputPerBatch  = 4000
	briefInputPerCall      = 2500
	briefOutputPerCall     = 2000

	minutesPerBatch = 0.12
)

// EstimateCost projects batch count, tokens, dollars and wall-clock minutes
// for classifying/mapping n keywords (or generating n briefs) with the given
// model. Batch size is fixed at 100 for keyword tasks.
func EstimateCost(n int, taskType, model string) Estimate {
	pricing := pricingFor(model)

	batches := (n + 99) / 100
	if batches < 1 {
		batches = 1
	}

	var inPer, outPer int64
	switch taskType {
	case "mapping":
		inPer, outPer = mappingInputPerBatch, mappingOutputPerBatch
	case "briefs":
		// One call per cluster, not per 100 rows.
		batches = n
		if batches < 1 {
			batches = 1
		}
		inPer, outPer = briefInputPerCall, briefOutputPerCall
	default: // cleaning
		inPer, outPer = cleaningInputPerBatch, cleaningOutputPerBatch
	}

	totalIn := int64(batches) * inPer
	totalOut := int64(batches) * outPer
	cost := float64(totalIn)*pricing.Input/1e6 + float64(totalOut)*pricing.Output/1e6

	return Estimate{
		Model:           model,
		Batches:         batches,
		EstInputTokens:  totalIn,
		EstOutputTokens: totalOut,
		EstCostUSD:      roundTo(cost, 4),
		EstMinutes:      roundTo(float64(batches)*minutesPerBatch, 1),
	}
}
