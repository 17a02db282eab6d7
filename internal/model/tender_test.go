package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// TestMerge tests merging a summary with a detail.
func TestMerge(t *testing.T) {
	t.Parallel()

	t.Run("keeps fields of both halves", func(t *testing.T) {
		t.Parallel()

		rec := Merge(
			Summary{ID: "123", Link: "/tender/123"},
			Detail{Name: "Road repair", Price: StringPtr("1 000")},
		)

		if rec.ID != "123" || rec.Link != "/tender/123" {
			t.Errorf("summary fields lost: %+v", rec.Summary)
		}
		if rec.Name != "Road repair" || Value(rec.Price) != "1 000" {
			t.Errorf("detail fields lost: %+v", rec.Detail)
		}
	})

	t.Run("encodes as one flat JSON object", func(t *testing.T) {
		t.Parallel()

		rec := Merge(
			Summary{ID: "1", Link: "/a"},
			Detail{
				Name:     "x",
				EndDate:  StringPtr("01.01.2025 10:00"),
				Branches: []Branch{{Link: "/b", Name: "Logistics"}},
			},
		)

		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}

		var flat map[string]any
		if err := json.Unmarshal(data, &flat); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}

		for _, key := range []string{"id", "link", "name", "end_date", "branches"} {
			if _, ok := flat[key]; !ok {
				t.Errorf("expected key %q in %s", key, data)
			}
		}
		for _, key := range []string{"price", "securing_the_application", "Summary", "Detail"} {
			if _, ok := flat[key]; ok {
				t.Errorf("did not expect key %q in %s", key, data)
			}
		}
	})
}

// TestBranchesEncoding tests that a present but empty industries list
// survives JSON encoding while an absent one is omitted.
func TestBranchesEncoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		branches []Branch
		want     string
	}{
		{name: "absent", branches: nil, want: `{"id":"1","link":"/t/1","name":"x"}`},
		{name: "empty list", branches: []Branch{}, want: `{"id":"1","link":"/t/1","name":"x","branches":[]}`},
		{name: "with industries", branches: []Branch{{Link: "/b", Name: "B"}},
			want: `{"id":"1","link":"/t/1","name":"x","branches":[{"link":"/b","name":"B"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := Merge(Summary{ID: "1", Link: "/t/1"}, Detail{Name: "x", Branches: tt.branches})
			data, err := json.Marshal(rec)
			if err != nil {
				t.Fatalf("marshal failed: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

// TestDetailHasField tests absence reporting for optional fields.
func TestDetailHasField(t *testing.T) {
	t.Parallel()

	d := Detail{Price: StringPtr("")}

	tests := []struct {
		field string
		want  bool
	}{
		{"name", true},
		{"price", true},
		{"end_date", false},
		{"securing_the_application", false},
		{"branches", false},
		{"unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			t.Parallel()
			if got := d.HasField(tt.field); got != tt.want {
				t.Errorf("HasField(%q) = %v, want %v", tt.field, got, tt.want)
			}
		})
	}
}

// TestBranchNames tests joining industry names.
func TestBranchNames(t *testing.T) {
	t.Parallel()

	d := Detail{Branches: []Branch{{Name: "Construction"}, {Name: "Logistics"}}}
	if got := d.BranchNames("; "); got != "Construction; Logistics" {
		t.Errorf("got %q", got)
	}

	if got := (Detail{}).BranchNames(", "); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

// TestRun tests the run lifecycle helpers.
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("new run has an id and no records", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com", 5)
		if r.ID == "" {
			t.Error("expected a run id")
		}
		if r.Records == nil || len(r.Records) != 0 {
			t.Errorf("expected empty records, got %v", r.Records)
		}
		if r.Duration() != 0 {
			t.Errorf("expected zero duration for an unfinished run, got %v", r.Duration())
		}
	})

	t.Run("finish with error marks the run partial", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com", 5)
		r.Finish(errors.New("listing page unavailable"))

		if !r.Partial() {
			t.Error("expected partial run")
		}
		if !strings.Contains(r.ErrorMessage, "unavailable") {
			t.Errorf("unexpected error message %q", r.ErrorMessage)
		}
		if r.FinishedAt.Before(r.StartedAt) {
			t.Error("finish time before start time")
		}
	})

	t.Run("finish without error is complete", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com", 5)
		r.Finish(nil)
		if r.Partial() {
			t.Error("expected complete run")
		}
	})

	t.Run("branch counts aggregate across records", func(t *testing.T) {
		t.Parallel()

		r := NewRun("https://example.com", 5)
		r.Records = []Record{
			{Detail: Detail{Branches: []Branch{{Name: "A"}, {Name: "B"}}}},
			{Detail: Detail{Branches: []Branch{{Name: "A"}}}},
		}

		counts := r.BranchCounts()
		if counts["A"] != 2 || counts["B"] != 1 {
			t.Errorf("unexpected counts %v", counts)
		}
	})
}
