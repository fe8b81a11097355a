package main

import (
	"reflect"
	"testing"
)

func TestAddTermsSkipsDuplicatesCaseInsensitive(t *testing.T) {
	list := []string{"Miami", "insurance"}
	list, added := addTerms(list, []string{"miami", "free", "", "  jobs  "})
	if added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
	want := []string{"Miami", "insurance", "free", "jobs"}
	if !reflect.DeepEqual(list, want) {
		t.Errorf("list = %v, want %v", list, want)
	}
}

func TestRemoveTermsCaseInsensitive(t *testing.T) {
	list := []string{"Miami", "insurance", "jobs"}
	list, removed := removeTerms(list, []string{"INSURANCE", "careers"})
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	want := []string{"Miami", "jobs"}
	if !reflect.DeepEqual(list, want) {
		t.Errorf("list = %v, want %v", list, want)
	}
}

func TestEditedNegativesDriveThePrefilter(t *testing.T) {
	profile := &ClientProfile{}
	profile.NegativeKeywords, _ = addTerms(profile.NegativeKeywords, []string{"free"})
	profile.NegativeCategories, _ = addTerms(profile.NegativeCategories, []string{"jobs"})

	if _, ok := matchesNegative(profile, "FREE consultation"); !ok {
		t.Error("added negative keyword must match")
	}
	if _, ok := matchesNegative(profile, "ent jobs near me"); !ok {
		t.Error("added negative category must match")
	}
}
