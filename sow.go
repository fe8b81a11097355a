package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// Service types an engagement can be scoped as.
var serviceTypes = map[string]string{
	"seo_web":             "SEO / Website Management",
	"digital_ads":         "Digital Advertising",
	"practice_consulting": "Practice Consulting",
}

const (
	acceptanceBody = "The client named below verifies that the terms of this Statement of Work are " +
		"acceptable. The parties hereto are each acting with proper authority by their " +
		"respective companies."

	cancellationClause = "Client(s) can cancel services with a 30-day written notice. Email notifications " +
		"must be received and confirmed thirty days preceding the desired cancellation date. " +
		"Client(s) will be responsible for all associated monthly service fees leading up to " +
		"the cancellation end date and/or until all essential actions have been completed by " +
		"all parties during the exit process."

	terminationClause = "Termination shall not, under any circumstances, relieve Client of its obligation " +
		"to pay any sums owed to Company under the terms of the agreement."
)

// transcript text past this point adds little and inflates token cost
const maxTranscriptChars = 8000

// SOWFields holds what the extraction pass pulled from the call transcript,
// plus the operator-confirmed values layered on top before generation.
type SOWFields struct {
	ClientName            string   `json:"client_name"`
	ClientContact         string   `json:"client_contact"`
	PracticeSpecialty     string   `json:"practice_specialty"`
	ServiceType           string   `json:"service_type"`
	ServiceTypeConfidence float64  `json:"service_type_confidence"`
	ServiceTypeReasoning  string   `json:"service_type_reasoning"`
	ServicesMentioned     []string `json:"services_mentioned"`
	ClientGoals           string   `json:"client_goals"`
	BudgetSignals         string   `json:"budget_signals"`
	TimelineSignals       string   `json:"timeline_signals"`
	Platforms             []string `json:"platforms"`
	Notes                 string   `json:"notes"`

	RepName      string        `json:"rep_name,omitempty"`
	SOWDate      string        `json:"sow_date,omitempty"`
	PaymentTerms string        `json:"payment_terms,omitempty"`
	PricingItems []PricingItem `json:"pricing_items,omitempty"`
}

type PricingItem struct {
	Item  string `json:"item"`
	Cost  string `json:"cost"`
	Total string `json:"total"`
}

// SOWContent is the generated narrative: title, summary paragraphs, scope
// sections and optional timeline.
type SOWContent struct {
	JobName       string         `json:"job_name"`
	Summary       string         `json:"summary"`
	ScopeItems    []ScopeItem    `json:"scope_items"`
	TimelineItems []TimelineItem `json:"timeline_items"`
}

type ScopeItem struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

type TimelineItem struct {
	Activity string `json:"activity"`
	Start    string `json:"start"`
	End      string `json:"end"`
}

// ReadTranscript loads a call transcript from a .txt or .pdf file.
func ReadTranscript(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return readPDF(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read transcript: %w", err)
		}
		return string(data), nil
	}
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	var b strings.Builder
	if _, err := io.Copy(&b, reader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return b.String(), nil
}

// ExtractSOWFields pulls structured engagement details from a sales call
// transcript.
func (g *Gateway) ExtractSOWFields(transcript string) (*SOWFields, error) {
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	prompt := fmt.Sprintf(`You are analyzing a sales call transcript between an agency sales rep and a prospective medical practice client.

Extract the following information from this transcript. Be specific and accurate. Do not invent details not present in the transcript.

TRANSCRIPT:
%s

Return a JSON object:
{
  "client_name": "Practice or business name (string, or empty if unclear)",
  "client_contact": "Client's first and last name (string, or empty if unclear)",
  "practice_specialty": "Medical specialty, e.g. ENT, Urology, Pain Management, Orthopedics, General Practice",
  "service_type": "seo_web | digital_ads | practice_consulting, best match based on what was discussed",
  "service_type_confidence": 0-100,
  "service_type_reasoning": "One sentence explaining why you chose this service type",
  "services_mentioned": ["list of specific services, platforms, or deliverables mentioned"],
  "client_goals": "Brief summary of what the client wants to achieve (1-2 sentences, or empty)",
  "budget_signals": "Any dollar amounts or budget ranges mentioned as a string, or empty",
  "timeline_signals": "Any timeline or start date mentioned as a string, or empty",
  "platforms": ["only platforms explicitly mentioned"],
  "notes": "Any other important context for the SOW (string, or empty)"
}
Respond with JSON only (no markdown).`, transcript)

	log.Printf("llm sow-extract model=%s transcript_chars=%d", g.model, len(transcript))
	raw, err := g.Chat(prompt, nil, "sow_extract")
	if err != nil {
		return nil, err
	}

	var fields SOWFields
	if err := parseModelJSON("sow_extract", raw, &fields); err != nil {
		return nil, err
	}
	if _, ok := serviceTypes[fields.ServiceType]; !ok {
		fields.ServiceType = "seo_web"
	}
	return &fields, nil
}

var serviceGuidance = map[string]string{
	"seo_web": `Generate content for an SEO / Website Management engagement.

scope_items should use numbered sections covering:
- Keyword Research & Analysis (include specific target keyword count)
- On-Page Optimization (list specific page types)
- Technical SEO Audit & Implementation
- Content Creation (blog posts per month if relevant)
- Local SEO (if applicable based on practice type)
- Link Building & Authority Building
- Monthly Reporting & Analytics Review
- Any website management or additional items mentioned

timeline_items should be an empty array, SEO is ongoing from day one.`,

	"digital_ads": `Generate content for a Digital Advertising engagement.

scope_items should use two phases:
Phase 1, Asset Build: landing page creation, ad creative, pixel/tracking setup, audience targeting
Phase 2, Campaign Management: campaign launch, A/B testing, bid management, monthly reporting

Also generate timeline_items with 4-5 activities and week ranges
(e.g. "Week 1-2", "Week 3", "Week 4+"). Include activities like:
- Discovery & Strategy
- Asset Build (landing pages, creative)
- Pixel Setup & Testing
- Campaign Launch
- Ongoing Optimization`,

	"practice_consulting": `Generate content for a Practice Consulting engagement.

scope_items should cover:
- Initial Practice Assessment / vitals audit
- Monthly strategic consulting calls
- Operational efficiency improvements
- Patient acquisition and retention strategy
- Any specific areas mentioned by the client

Frame it around measurable outcomes (efficiency, patient volume, revenue growth).
timeline_items: include 3-4 milestone activities.`,
}

// GenerateSOWContent writes the SOW narrative from confirmed fields.
func (g *Gateway) GenerateSOWContent(fields *SOWFields) (*SOWContent, error) {
	guidance, ok := serviceGuidance[fields.ServiceType]
	if !ok {
		guidance = serviceGuidance["seo_web"]
	}

	services := strings.Join(fields.ServicesMentioned, ", ")
	if services == "" {
		services = "general services"
	}
	platforms := strings.Join(fields.Platforms, ", ")
	if platforms == "" {
		platforms = "relevant platforms"
	}
	goals := fields.ClientGoals
	if goals == "" {
		goals = "Grow patient volume and practice revenue"
	}

	prompt := fmt.Sprintf(`You are a professional medical marketing copywriter.
Write SOW content based on these confirmed engagement details:

CLIENT: %s
SPECIALTY: %s
SERVICE TYPE: %s
GOALS: %s
SERVICES MENTIONED: %s
PLATFORMS: %s
NOTES: %s

%s

Return a JSON object:
{
  "job_name": "Short service description, 3-6 words",
  "summary": "2-3 paragraphs separated by double newlines. Paragraph 1: the client's current situation and opportunity. Paragraph 2: what the agency will do and the strategic approach. Paragraph 3 (optional): expected outcomes. Reference the client's specialty and specific goals, no generic filler.",
  "scope_items": [{"heading": "Section or phase heading", "points": ["bullet point", "..."]}],
  "timeline_items": [{"activity": "Activity name", "start": "Week X", "end": "Week Y"}]
}

Scope should have 4-8 sections with 2-5 bullet points each. Write professionally, this goes directly to medical practice owners.
Respond with JSON only (no markdown).`,
		orBracket(fields.ClientName, "[Client Name]"),
		orBracket(fields.PracticeSpecialty, "Medical Practice"),
		serviceTypes[fields.ServiceType], goals, services, platforms, fields.Notes, guidance)

	log.Printf("llm sow-generate model=%s service_type=%s", g.model, fields.ServiceType)
	raw, err := g.Chat(prompt, nil, "sow_generate")
	if err != nil {
		return nil, err
	}

	var content SOWContent
	if err := parseModelJSON("sow_generate", raw, &content); err != nil {
		return nil, err
	}
	return &content, nil
}

func orBracket(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// RenderSOWMarkdown produces the full Statement of Work document.
func RenderSOWMarkdown(fields *SOWFields, content *SOWContent) string {
	var b strings.Builder

	sowDate := fields.SOWDate
	if sowDate == "" {
		sowDate = time.Now().Format("January 2, 2006")
	}

	b.WriteString("# Statement of Work\n\n")
	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| **Date** | %s |\n", sowDate)
	fmt.Fprintf(&b, "| **Client** | %s |\n", fields.ClientName)
	fmt.Fprintf(&b, "| **Job Name** | %s |\n", content.JobName)
	fmt.Fprintf(&b, "| **Requested by** | %s |\n", fields.ClientContact)
	fmt.Fprintf(&b, "| **From** | %s |\n\n", fields.RepName)

	b.WriteString("## Summary\n\n")
	for _, chunk := range strings.Split(content.Summary, "\n\n") {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			b.WriteString(chunk + "\n\n")
		}
	}

	b.WriteString("## Scope of Services\n\n")
	for i, section := range content.ScopeItems {
		if fields.ServiceType == "seo_web" {
			fmt.Fprintf(&b, "### 2.%d  %s\n\n", i+1, section.Heading)
		} else {
			fmt.Fprintf(&b, "### %s\n\n", section.Heading)
		}
		for _, point := range section.Points {
			fmt.Fprintf(&b, "- %s\n", point)
		}
		b.WriteString("\n")
	}

	if len(content.TimelineItems) > 0 {
		b.WriteString("## Schedule\n\n")
		b.WriteString("| Activity | Start | End |\n|---|---|---|\n")
		for _, item := range content.TimelineItems {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", item.Activity, item.Start, item.End)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Pricing\n\n")
	b.WriteString("All costs listed below are based on the scope and assumptions included in this Statement of Work.\n\n")
	if len(fields.PricingItems) > 0 {
		b.WriteString("| Item | Cost | Total |\n|---|---|---|\n")
		for _, item := range fields.PricingItems {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", item.Item, item.Cost, item.Total)
		}
		b.WriteString("\n")
	}
	terms := fields.PaymentTerms
	if terms == "" {
		terms = "Invoiced Monthly, net 15 days on invoice"
	}
	fmt.Fprintf(&b, "*Payment Terms: %s*\n\n", terms)

	b.WriteString("## Acceptance\n\n")
	b.WriteString(acceptanceBody + "\n\n")
	b.WriteString(cancellationClause + "\n\n")
	b.WriteString(terminationClause + "\n\n")

	b.WriteString("| CLIENT | AGENCY |\n|---|---|\n")
	for _, label := range []string{"Company", "Full Name", "Title", "Signature", "Date"} {
		fmt.Fprintf(&b, "| %s: | %s: |\n", label, label)
	}
	return b.String()
}

// BuildPMBrief renders a plain-text project-manager brief for kickoff.
func BuildPMBrief(fields *SOWFields, content *SOWContent) string {
	var b strings.Builder

	client := orBracket(fields.ClientName, "[Client Name]")
	goals := fields.ClientGoals
	if goals == "" {
		goals = "See SOW summary"
	}
	notes := fields.Notes
	if notes == "" {
		notes = "None"
	}

	fmt.Fprintf(&b, "PM BRIEF - %s\n", client)
	fmt.Fprintf(&b, "Generated: %s\n", time.Now().Format("January 2, 2006"))
	b.WriteString(strings.Repeat("=", 40) + "\n")
	b.WriteString("ENGAGEMENT\n")
	fmt.Fprintf(&b, "  Client:         %s\n", client)
	fmt.Fprintf(&b, "  Contact:        %s\n", fields.ClientContact)
	fmt.Fprintf(&b, "  SOW Title:      %s\n", content.JobName)
	fmt.Fprintf(&b, "  Service Type:   %s\n", serviceTypes[fields.ServiceType])
	fmt.Fprintf(&b, "  Rep:            %s\n", fields.RepName)
	fmt.Fprintf(&b, "  Goals:          %s\n\n", goals)

	b.WriteString("PRICING\n")
	if len(fields.PricingItems) == 0 {
		b.WriteString("  - TBD, confirm with the rep\n")
	}
	for _, item := range fields.PricingItems {
		fmt.Fprintf(&b, "  - %s: %s\n", item.Item, item.Cost)
	}
	b.WriteString("\n")

	b.WriteString("SCOPE (task breakdown)\n")
	if len(content.ScopeItems) == 0 {
		b.WriteString("  - See attached SOW\n")
	}
	for i, s := range content.ScopeItems {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, s.Heading)
	}

	if len(content.TimelineItems) > 0 {
		b.WriteString("\nTIMELINE\n")
		for _, t := range content.TimelineItems {
			fmt.Fprintf(&b, "  - %s: %s - %s\n", t.Activity, t.Start, t.End)
		}
	}

	b.WriteString("\nNOTES FOR KICKOFF\n")
	fmt.Fprintf(&b, "  %s\n", notes)
	b.WriteString(strings.Repeat("=", 40) + "\n")
	return b.String()
}
