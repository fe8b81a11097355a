package main

import (
	"strings"
	"time"
)

// Classification labels for keyword cleaning.
const (
	ClassKeep   = "KEEP"
	ClassRemove = "REMOVE"
	ClassUnsure = "UNSURE"
)

// Mapping sentinels returned by the model instead of a real URL.
const (
	SentinelNewPage  = "NEW_PAGE"
	SentinelBlogPost = "BLOG_POST"
)

// Recommendation labels derived from the mapping sentinels.
const (
	RecExisting = "Existing URL"
	RecNewPage  = "New Page"
	RecBlogPost = "Blog Post"
	RecError    = "Error"
)

// URLInfo is one crawled page in the client's URL inventory. Entries are
// snapshots from crawl time and are not kept in sync with the live site.
type URLInfo struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// ClientProfile is the structured business profile, one record per client
// slug. Generated from crawled pages, editable afterwards.
type ClientProfile struct {
	BusinessName       string    `json:"business_name"`
	Domain             string    `json:"domain"`
	Services           []string  `json:"services"`
	Locations          []string  `json:"locations"`
	Specialties        []string  `json:"specialties"`
	Topics             []string  `json:"topics"`
	NegativeKeywords   []string  `json:"negative_keywords"`
	NegativeCategories []string  `json:"negative_categories"`
	URLInventory       []URLInfo `json:"url_inventory"`
}

// addTerms appends terms not already in the list, case-insensitively, and
// reports how many were added.
func addTerms(list []string, terms []string) ([]string, int) {
	have := make(map[string]bool, len(list))
	for _, t := range list {
		have[strings.ToLower(strings.TrimSpace(t))] = true
	}
	added := 0
	for _, t := range terms {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || have[key] {
			continue
		}
		have[key] = true
		list = append(list, t)
		added++
	}
	return list, added
}

// removeTerms drops every list entry matching a term, case-insensitively,
// and reports how many were removed.
func removeTerms(list []string, terms []string) ([]string, int) {
	drop := make(map[string]bool, len(terms))
	for _, t := range terms {
		drop[strings.ToLower(strings.TrimSpace(t))] = true
	}
	kept := list[:0]
	removed := 0
	for _, t := range list {
		if drop[strings.ToLower(strings.TrimSpace(t))] {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	return kept, removed
}

// KeywordRow is one row of tabular keyword input plus the annotations the
// pipeline stages add. Columns holds the original CSV cells keyed by
// normalized header; the keyword text itself is never modified.
type KeywordRow struct {
	Columns map[string]string `json:"columns"`

	Classification string  `json:"classification,omitempty"`
	Confidence     float64 `json:"confidence"`
	Reason         string  `json:"reason,omitempty"`

	MappedURL      string `json:"mapped_url,omitempty"`
	SearchIntent   string `json:"search_intent,omitempty"`
	Recommendation string `json:"recommendation,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// Keyword returns the row's keyword text from the resolved keyword column.
func (r KeywordRow) Keyword(keywordCol string) string {
	return r.Columns[keywordCol]
}

// ResultSet is the accumulated annotated rows for one (client, stage) pair.
// It is re-saved in full after every batch so a crashed run never loses more
// than one batch of work.
type ResultSet struct {
	Client     string       `json:"client"`
	Stage      string       `json:"stage"`
	Seq        int          `json:"seq"`
	SavedAt    time.Time    `json:"saved_at"`
	KeywordCol string       `json:"keyword_col"`
	Headers    []string     `json:"headers"`
	Rows       []KeywordRow `json:"rows"`
}

// Cluster groups related keywords sharing intent/topic.
type Cluster struct {
	Theme          string   `json:"theme"`
	PrimaryKeyword string   `json:"primary_keyword"`
	Keywords       []string `json:"keywords"`
	ContentType    string   `json:"content_type"` // service_page | blog_post
	PriorityScore  float64  `json:"priority_score"`
}

// ContentBrief is a writer-ready document generated per cluster.
type ContentBrief struct {
	Title     string         `json:"title"`
	Overview  BriefOverview  `json:"overview"`
	Audience  BriefAudience  `json:"audience"`
	Direction BriefDirection `json:"direction"`
	SEO       BriefSEO       `json:"seo"`
	CTA       string         `json:"cta"`
	Error     string         `json:"error,omitempty"`
}

type BriefOverview struct {
	PrimaryKeyword string `json:"primary_keyword"`
	ContentType    string `json:"content_type"`
	WordCount      string `json:"word_count"`
	Goal           string `json:"goal"`
}

type BriefAudience struct {
	Who          string `json:"who"`
	Problem      string `json:"problem"`
	JourneyStage string `json:"journey_stage"`
}

type BriefDirection struct {
	UniqueAngle string         `json:"unique_angle"`
	Outline     []OutlineEntry `json:"outline"`
	Questions   []string       `json:"questions"`
	Tone        string         `json:"tone"`
}

type OutlineEntry struct {
	Heading     string `json:"heading"`
	Description string `json:"description"`
}

type BriefSEO struct {
	KeywordPlacement  string         `json:"keyword_placement"`
	SecondaryKeywords []string       `json:"secondary_keywords"`
	InternalLinks     []InternalLink `json:"internal_links"`
	MetaTitle         string         `json:"meta_title"`
	MetaDescription   string         `json:"meta_description"`
}

type InternalLink struct {
	URL        string `json:"url"`
	AnchorText string `json:"anchor_text"`
}

// BriefSet bundles the clusters with their generated briefs. Persisted after
// every completed brief so partial runs survive a crash.
type BriefSet struct {
	Client   string         `json:"client"`
	Seq      int            `json:"seq"`
	SavedAt  time.Time      `json:"saved_at"`
	Clusters []Cluster      `json:"clusters"`
	Briefs   []ContentBrief `json:"briefs"`
}

// CrawledPage is one page fetched during site crawling.
type CrawledPage struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// Slugify converts a client name to a filesystem-safe slug: lowercased,
// non-alphanumeric runs collapsed to a single dash, trimmed.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true // suppresses a leading dash
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
