package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultOpenRouterModel = "anthropic/claude-haiku-4-5-20251001"
const defaultAnthropicModel = "claude-haiku-4-5-20251001"
const openRouterBaseURL = "https://openrouter.ai/api/v1"

const maxChatAttempts = 3
const backoffBase = 2 * time.Second
const backoffCap = 30 * time.Second

// ParseError means the model returned content that could not be recovered as
// JSON. It is surfaced immediately and never retried.
type ParseError struct {
	Task string
	Err  error
	Raw  string
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > 512 {
		raw = raw[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(e.Raw))
	}
	return fmt.Sprintf("parsing %s response: %v (response: %s)", e.Task, e.Err, raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// errTransport marks network/provider-side failures, the only retryable kind.
var errTransport = errors.New("transport failure")

// ResponseSchema constrains provider output to an exact object shape. Passed
// through to OpenRouter as a strict json_schema response_format; Anthropic
// has no equivalent parameter, so there the shape lives in the prompt and
// the descriptor is ignored.
type ResponseSchema struct {
	Name   string
	Schema map[string]any
}

// Gateway is the single choke point for every model invocation. It owns the
// retry policy, the structured-output contract, and the cost ledger.
type Gateway struct {
	provider string
	apiKey   string
	model    string
	baseURL  string
	httpc    *http.Client

	Ledger *CostLedger

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewGateway(cfg Config) (*Gateway, error) {
	g := &Gateway{
		provider: cfg.LLMProvider,
		model:    cfg.LLMModel,
		baseURL:  openRouterBaseURL,
		httpc:    externalHTTPClient,
		Ledger:   NewCostLedger(),
		sleep:    time.Sleep,
	}

	switch cfg.LLMProvider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set: add it to config.yaml or the environment")
		}
		g.apiKey = cfg.AnthropicAPIKey
		if g.model == "" {
			g.model = defaultAnthropicModel
		}
	default:
		if cfg.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY not set: add it to config.yaml or the environment")
		}
		g.apiKey = cfg.OpenRouterAPIKey
		if g.model == "" {
			g.model = defaultOpenRouterModel
		}
	}
	return g, nil
}

func (g *Gateway) Model() string { return g.model }

// Chat performs one task invocation: up to 3 attempts on transport failures
// with exponential backoff, then a hard error. Token usage from a successful
// response is recorded on the ledger; attempts that failed before usage data
// arrived record nothing.
func (g *Gateway) Chat(prompt string, schema *ResponseSchema, task string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxChatAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffBase << (attempt - 1)
			if delay > backoffCap {
				delay = backoffCap
			}
			log.Printf("llm retry task=%s attempt=%d delay=%s", task, attempt+1, delay)
			g.sleep(delay)
		}

		var text string
		var in, out int64
		var err error
		switch g.provider {
		case "anthropic":
			text, in, out, err = g.callAnthropic(prompt)
		default:
			text, in, out, err = g.callOpenRouter(prompt, schema)
		}
		if err != nil {
			lastErr = err
			if errors.Is(err, errTransport) {
				continue
			}
			return "", err
		}

		g.Ledger.Record(g.model, task, in, out)
		log.Printf("llm response task=%s model=%s size=%d tokens_in=%d tokens_out=%d", task, g.model, len(text), in, out)
		return text, nil
	}
	return "", fmt.Errorf("%s failed after %d attempts: %w", task, maxChatAttempts, lastErr)
}

// --- OpenRouter (OpenAI-compatible chat completions) ---

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *Gateway) callOpenRouter(prompt string, schema *ResponseSchema) (string, int64, int64, error) {
	reqBody := chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
	}
	if schema != nil {
		reqBody.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   schema.Name,
				"strict": true,
				"schema": schema.Schema,
			},
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequest("POST", g.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", 0, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("X-Title", "SEO Keyword Tool")

	resp, err := g.httpc.Do(req)
	if err != nil {
		log.Printf("llm openrouter error: %v", err)
		return "", 0, 0, fmt.Errorf("%w: %v", errTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: reading response: %v", errTransport, err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Printf("llm openrouter status=%d body=%s", resp.StatusCode, truncateForLog(string(respBody), 200))
		return "", 0, 0, fmt.Errorf("%w: openrouter status %d", errTransport, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", 0, 0, fmt.Errorf("%w: decoding response: %v", errTransport, err)
	}
	if parsed.Error != nil {
		log.Printf("llm openrouter api error: %s", parsed.Error.Message)
		return "", 0, 0, fmt.Errorf("%w: %s", errTransport, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("%w: no choices in response", errTransport)
	}

	var in, out int64
	if parsed.Usage != nil {
		in = parsed.Usage.PromptTokens
		out = parsed.Usage.CompletionTokens
	}
	return parsed.Choices[0].Message.Content, in, out, nil
}

// --- Anthropic ---

func (g *Gateway) callAnthropic(prompt string) (string, int64, int64, error) {
	client := anthropic.NewClient(option.WithAPIKey(g.apiKey), option.WithHTTPClient(g.httpc))

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: 8192,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", 0, 0, fmt.Errorf("%w: %v", errTransport, err)
	}

	in := message.Usage.InputTokens
	out := message.Usage.OutputTokens
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, in, out, nil
		}
	}
	return "", in, out, fmt.Errorf("%w: no text content in Anthropic response", errTransport)
}

// --- Response recovery ---

// parseModelJSON decodes a model response into v, tolerating three shapes:
// raw JSON, JSON inside a fenced code block, and JSON surrounded by prose.
// Failure is a hard task error, never a retry trigger.
func parseModelJSON(task, text string, v any) error {
	cleaned := recoverJSON(text)
	if cleaned == "" {
		return &ParseError{Task: task, Err: errors.New("no JSON found"), Raw: text}
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return &ParseError{Task: task, Err: err, Raw: text}
	}
	return nil
}

func recoverJSON(text string) string {
	text = strings.TrimSpace(text)

	// Fenced code block: drop the fence lines.
	if strings.HasPrefix(text, "```") {
		var kept []string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				continue
			}
			kept = append(kept, line)
		}
		text = strings.TrimSpace(strings.Join(kept, "\n"))
	}

	// Prose around the payload: cut to the outermost brackets.
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	var end int
	if text[start] == '{' {
		end = strings.LastIndex(text, "}")
	} else {
		end = strings.LastIndex(text, "]")
	}
	if end <= start {
		return ""
	}
	return text[start : end+1]
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
