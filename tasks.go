package main

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// KeywordInput is the per-row payload sent to the model: the keyword text
// plus whatever enrichment columns the input happened to carry.
type KeywordInput struct {
	Keyword string
	Volume  string
	KD      string
	Intent  string
}

// ClassifyResult is one keyword's cleaning verdict. Also used as an anchor
// example carried into later batches of the same run.
type ClassifyResult struct {
	Keyword        string  `json:"keyword"`
	Classification string  `json:"classification"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason"`
}

// MapResult is one keyword's URL mapping verdict.
type MapResult struct {
	Keyword    string  `json:"keyword"`
	URL        string  `json:"url"`
	Confidence float64 `json:"confidence"`
	Intent     string  `json:"intent"`
	Notes      string  `json:"notes"`
}

// --- Structured-output schemas ---

var classificationSchema = &ResponseSchema{
	Name: "keyword_classifications",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"classifications": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"keyword":        map[string]any{"type": "string"},
						"classification": map[string]any{"type": "string", "enum": []string{ClassKeep, ClassRemove, ClassUnsure}},
						"confidence":     map[string]any{"type": "number"},
						"reason":         map[string]any{"type": "string"},
					},
					"required":             []string{"keyword", "classification", "confidence", "reason"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"classifications"},
		"additionalProperties": false,
	},
}

var mappingSchema = &ResponseSchema{
	Name: "keyword_mappings",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mappings": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"keyword":    map[string]any{"type": "string"},
						"url":        map[string]any{"type": "string"},
						"confidence": map[string]any{"type": "number"},
						"intent":     map[string]any{"type": "string"},
						"notes":      map[string]any{"type": "string"},
					},
					"required":             []string{"keyword", "url", "confidence", "intent", "notes"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"mappings"},
		"additionalProperties": false,
	},
}

var clusterSchema = &ResponseSchema{
	Name: "keyword_clusters",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"clusters": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"theme":           map[string]any{"type": "string"},
						"primary_keyword": map[string]any{"type": "string"},
						"keywords":        map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						"content_type":    map[string]any{"type": "string", "enum": []string{"service_page", "blog_post"}},
						"priority_score":  map[string]any{"type": "number"},
					},
					"required":             []string{"theme", "primary_keyword", "keywords", "content_type", "priority_score"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []string{"clusters"},
		"additionalProperties": false,
	},
}

// --- Prompt helpers ---

func profileJSON(profile *ClientProfile) string {
	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func keywordLines(batch []KeywordInput) string {
	var b strings.Builder
	for _, kw := range batch {
		b.WriteString("- " + kw.Keyword)
		if kw.Volume != "" {
			b.WriteString(fmt.Sprintf(" (Volume: %s, KD: %s, Intent: %s)", orNA(kw.Volume), orNA(kw.KD), orNA(kw.Intent)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func urlLines(urls []URLInfo) string {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(fmt.Sprintf("- %s | %s | %s\n", u.URL, u.Title, u.Summary))
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// --- Classification ---

// ClassifyKeywords classifies one batch of keywords as KEEP / REMOVE /
// UNSURE against the client profile. Anchor examples from earlier batches of
// the same run bias later batches toward consistent labeling.
func (g *Gateway) ClassifyKeywords(profile *ClientProfile, batch []KeywordInput, examples []ClassifyResult) ([]ClassifyResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	anchorSection := ""
	if len(examples) > 0 {
		var lines strings.Builder
		for i, ex := range examples {
			if i >= maxAnchorExamples {
				break
			}
			lines.WriteString(fmt.Sprintf("- %q -> %s (%s)\n", ex.Keyword, ex.Classification, ex.Reason))
		}
		anchorSection = "\nANCHOR EXAMPLES (classifications from this session, use these for consistency):\n" + lines.String()
	}

	prompt := fmt.Sprintf(`You are an SEO keyword relevance filter.

CLIENT PROFILE:
%s
%s
KEYWORDS TO CLASSIFY:
%s
For each keyword, classify as:
- KEEP: Directly relevant to client's services, locations, or specialties
- REMOVE: Wrong location, wrong specialty, competitor name, too generic (single words with no SEO value)
- UNSURE: Potentially relevant but needs human judgment

Rules:
- Never modify keywords. Return them exactly as provided.
- Be conservative: UNSURE rather than incorrect REMOVE.
- Generic single-word terms -> REMOVE
- Location terms for OTHER locations -> REMOVE
- Competitor/doctor names -> REMOVE
- Set confidence between 0 and 100.

Respond with JSON only (no markdown):
{"classifications": [{"keyword": "...", "classification": "KEEP", "confidence": 90, "reason": "..."}, ...]}`,
		profileJSON(profile), anchorSection, keywordLines(batch))

	log.Printf("llm classify model=%s keywords=%d examples=%d", g.model, len(batch), len(examples))
	raw, err := g.Chat(prompt, classificationSchema, "classify_keywords")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Classifications []ClassifyResult `json:"classifications"`
	}
	if err := parseModelJSON("classify_keywords", raw, &parsed); err != nil {
		return nil, err
	}
	return parsed.Classifications, nil
}

// --- Mapping ---

// MapKeywords maps one batch of keywords to the best existing URL, or to the
// NEW_PAGE / BLOG_POST sentinels when no page covers the topic.
func (g *Gateway) MapKeywords(profile *ClientProfile, batch []KeywordInput, urls []URLInfo) ([]MapResult, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(`You are an SEO keyword-to-URL mapper.

CLIENT PROFILE:
%s

CLIENT URLS:
%s
KEYWORDS TO MAP:
%s
For each keyword:
- Map to BEST existing URL if topical match exists
- "NEW_PAGE" if keyword needs a dedicated service/landing page (transactional intent)
- "BLOG_POST" if keyword is informational and no existing page covers it

Rules:
- Only map if genuine topical match (don't force-fit)
- Multiple keywords mapping to same URL is fine (keyword clustering)
- Consider search intent: transactional -> service page, informational -> blog
- Set confidence between 0 and 100.

Respond with JSON only (no markdown):
{"mappings": [{"keyword": "...", "url": "...", "confidence": 85, "intent": "...", "notes": "..."}, ...]}`,
		profileJSON(profile), urlLines(urls), keywordLines(batch))

	log.Printf("llm map model=%s keywords=%d urls=%d", g.model, len(batch), len(urls))
	raw, err := g.Chat(prompt, mappingSchema, "map_keywords")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Mappings []MapResult `json:"mappings"`
	}
	if err := parseModelJSON("map_keywords", raw, &parsed); err != nil {
		return nil, err
	}
	return parsed.Mappings, nil
}

// --- Profile generation ---

// GenerateProfile analyzes crawled pages and extracts a structured business
// profile. The caller fills in domain and url_inventory afterwards.
func (g *Gateway) GenerateProfile(domain string, pages []CrawledPage) (*ClientProfile, error) {
	var summaries strings.Builder
	for i, p := range pages {
		if i >= 30 {
			break
		}
		content := p.Content
		if len(content) > 500 {
			content = content[:500]
		}
		summaries.WriteString(fmt.Sprintf("URL: %s\nTitle: %s\nContent snippet: %s\n\n", p.URL, orNA(p.Title), content))
	}

	prompt := fmt.Sprintf(`Analyze these web pages from %s and extract a structured business profile.

PAGES:
%s
Return a JSON object with:
- "business_name": string
- "domain": string
- "services": list of strings (services/products offered)
- "locations": list of strings (areas/cities served)
- "specialties": list of strings (specific expertise areas)
- "topics": list of strings (key content topics)

Be specific. Extract real data from the pages, don't guess.
Respond with JSON only (no markdown).`, domain, summaries.String())

	log.Printf("llm profile model=%s domain=%s pages=%d", g.model, domain, len(pages))
	raw, err := g.Chat(prompt, nil, "generate_profile")
	if err != nil {
		return nil, err
	}

	var profile ClientProfile
	if err := parseModelJSON("generate_profile", raw, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// --- Clustering & briefs ---

// FlaggedKeyword is a mapping-stage row flagged for new content, the input
// unit for clustering.
type FlaggedKeyword struct {
	Keyword        string
	Volume         string
	SearchIntent   string
	Recommendation string
}

// ClusterKeywords groups the full flagged set into topical clusters in one
// unbatched call.
func (g *Gateway) ClusterKeywords(flagged []FlaggedKeyword) ([]Cluster, error) {
	if len(flagged) == 0 {
		return nil, nil
	}

	var lines strings.Builder
	for _, kw := range flagged {
		lines.WriteString(fmt.Sprintf("- %s (volume: %s, intent: %s, recommendation: %s)\n",
			kw.Keyword, orNA(kw.Volume), orNA(kw.SearchIntent), kw.Recommendation))
	}

	prompt := fmt.Sprintf(`You are an SEO content strategist. Group these keywords into topical clusters.

KEYWORDS (all flagged for new content):
%s
Rules:
- Each cluster shares one search intent and topic; one page can target the whole cluster.
- Pick the best primary_keyword for each cluster (highest volume or clearest intent).
- content_type: "service_page" for transactional clusters, "blog_post" for informational ones.
- priority_score between 0 and 100 based on volume and business value.
- Every keyword belongs to exactly one cluster.

Respond with JSON only (no markdown):
{"clusters": [{"theme": "...", "primary_keyword": "...", "keywords": ["..."], "content_type": "service_page", "priority_score": 80}, ...]}`,
		lines.String())

	log.Printf("llm cluster model=%s keywords=%d", g.model, len(flagged))
	raw, err := g.Chat(prompt, clusterSchema, "cluster_keywords")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Clusters []Cluster `json:"clusters"`
	}
	if err := parseModelJSON("cluster_keywords", raw, &parsed); err != nil {
		return nil, err
	}
	return parsed.Clusters, nil
}

// GenerateBrief produces one writer-ready content brief for a cluster.
func (g *Gateway) GenerateBrief(profile *ClientProfile, cluster Cluster, urls []URLInfo) (*ContentBrief, error) {
	prompt := fmt.Sprintf(`You are an SEO content strategist writing a brief for a professional writer.

CLIENT PROFILE:
%s

CLIENT URLS (for internal link recommendations):
%s
KEYWORD CLUSTER:
- Theme: %s
- Primary keyword: %s
- Content type: %s
- All keywords: %s

Write a complete, writer-ready content brief. Respond with JSON only (no markdown):
{
  "title": "working title",
  "overview": {"primary_keyword": "...", "content_type": "%s", "word_count": "e.g. 1200-1500", "goal": "..."},
  "audience": {"who": "...", "problem": "...", "journey_stage": "..."},
  "direction": {"unique_angle": "...", "outline": [{"heading": "...", "description": "..."}], "questions": ["..."], "tone": "..."},
  "seo": {"keyword_placement": "...", "secondary_keywords": ["..."], "internal_links": [{"url": "...", "anchor_text": "..."}], "meta_title": "...", "meta_description": "..."},
  "cta": "..."
}`,
		profileJSON(profile), urlLines(urls),
		cluster.Theme, cluster.PrimaryKeyword, cluster.ContentType, strings.Join(cluster.Keywords, ", "),
		cluster.ContentType)

	log.Printf("llm brief model=%s primary=%q", g.model, cluster.PrimaryKeyword)
	raw, err := g.Chat(prompt, nil, "generate_brief")
	if err != nil {
		return nil, err
	}

	var brief ContentBrief
	if err := parseModelJSON("generate_brief", raw, &brief); err != nil {
		return nil, err
	}
	return &brief, nil
}
