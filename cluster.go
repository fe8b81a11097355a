package main

import (
	"fmt"
	"log"
	"sort"
)

// briefModel is the slice of Gateway the briefs stage needs.
type briefModel interface {
	ClusterKeywords(flagged []FlaggedKeyword) ([]Cluster, error)
	GenerateBrief(profile *ClientProfile, cluster Cluster, urls []URLInfo) (*ContentBrief, error)
}

// FlaggedFromResults extracts the mapping rows flagged for new content.
func FlaggedFromResults(rs *ResultSet) []FlaggedKeyword {
	var out []FlaggedKeyword
	for _, row := range rs.Rows {
		if row.Recommendation != RecNewPage && row.Recommendation != RecBlogPost {
			continue
		}
		out = append(out, FlaggedKeyword{
			Keyword:        row.Keyword(rs.KeywordCol),
			Volume:         row.Columns["volume"],
			SearchIntent:   row.SearchIntent,
			Recommendation: row.Recommendation,
		})
	}
	return out
}

// BriefRunner clusters content-gap keywords and generates one brief per
// cluster, saving the set after every brief so a crash loses at most one.
type BriefRunner struct {
	model briefModel
	store *ClientStore

	// Progress, when set, is called after each generated brief.
	Progress func(done, total int)
}

func NewBriefRunner(model briefModel, store *ClientStore) *BriefRunner {
	return &BriefRunner{model: model, store: store}
}

// Run produces the full brief set for a client from its latest mapping
// results. A failed brief becomes a placeholder carrying the error so the
// cluster is not silently dropped.
func (r *BriefRunner) Run(client string, profile *ClientProfile, rs *ResultSet) (*BriefSet, error) {
	flagged := FlaggedFromResults(rs)
	if len(flagged) == 0 {
		return nil, fmt.Errorf("no keywords flagged for new content in latest mapping results")
	}
	log.Printf("briefs start client=%s flagged=%d", client, len(flagged))

	clusters, err := r.model.ClusterKeywords(flagged)
	if err != nil {
		return nil, fmt.Errorf("cluster keywords: %w", err)
	}
	if len(clusters) == 0 {
		return nil, fmt.Errorf("model returned no clusters")
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].PriorityScore > clusters[j].PriorityScore
	})

	set := &BriefSet{Client: Slugify(client), Clusters: clusters}
	for i, cluster := range clusters {
		brief, err := r.model.GenerateBrief(profile, cluster, profile.URLInventory)
		if err != nil {
			log.Printf("brief failed primary=%q err=%v", cluster.PrimaryKeyword, err)
			brief = &ContentBrief{
				Title: cluster.Theme,
				Overview: BriefOverview{
					PrimaryKeyword: cluster.PrimaryKeyword,
					ContentType:    cluster.ContentType,
				},
				Error: err.Error(),
			}
		}
		set.Briefs = append(set.Briefs, *brief)

		if _, err := r.store.SaveBriefs(client, set); err != nil {
			return set, fmt.Errorf("save briefs: %w", err)
		}
		if r.Progress != nil {
			r.Progress(i+1, len(clusters))
		}
	}
	log.Printf("briefs done client=%s clusters=%d", client, len(clusters))
	return set, nil
}
