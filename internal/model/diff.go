package model

import (
	"encoding/hex"
	"encoding/json"
	"slices"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a digest of everything a record carries except its
// identifier. Two sightings of the same tender with equal fingerprints have
// identical content.
func Fingerprint(rec Record) string {
	// Detail and the link marshal deterministically: struct fields keep their
	// declaration order and Branches is an ordered slice.
	data, _ := json.Marshal(struct { //nolint:errchkjson // plain strings and slices always marshal
		Link   string `json:"link"`
		Detail Detail `json:"detail"`
	}{rec.Link, rec.Detail})

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Change is a tender present in both runs whose content differs.
type Change struct {
	Before Record `json:"before"`
	After  Record `json:"after"`
}

// Fields returns the JSON names of the fields that differ, in record order.
func (c Change) Fields() []string {
	var fields []string
	if c.Before.Link != c.After.Link {
		fields = append(fields, "link")
	}
	if c.Before.Name != c.After.Name {
		fields = append(fields, "name")
	}
	if !equalOptional(c.Before.Price, c.After.Price) {
		fields = append(fields, "price")
	}
	if !equalOptional(c.Before.EndDate, c.After.EndDate) {
		fields = append(fields, "end_date")
	}
	if !equalOptional(c.Before.SecuringTheApplication, c.After.SecuringTheApplication) {
		fields = append(fields, "securing_the_application")
	}
	if (c.Before.Branches == nil) != (c.After.Branches == nil) || !slices.Equal(c.Before.Branches, c.After.Branches) {
		fields = append(fields, "branches")
	}
	return fields
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// RunDiff lists how the tenders of a newer run differ from an older one.
// Records without an ID cannot be matched and are ignored.
type RunDiff struct {
	OldRunID string `json:"old_run_id"`
	NewRunID string `json:"new_run_id"`

	// Added are tenders only in the newer run.
	Added []Record `json:"added"`

	// Removed are tenders only in the older run.
	Removed []Record `json:"removed"`

	// Changed are tenders in both runs with different content.
	Changed []Change `json:"changed"`

	// Unchanged counts tenders in both runs with identical content.
	Unchanged int `json:"unchanged"`
}

// Empty reports whether the runs hold the same tenders with the same content.
func (d *RunDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffRuns compares the records of two runs by tender ID. Output slices keep
// the crawl order of the run they come from.
func DiffRuns(older, newer *Run) *RunDiff {
	diff := &RunDiff{
		OldRunID: older.ID,
		NewRunID: newer.ID,
		Added:    make([]Record, 0),
		Removed:  make([]Record, 0),
		Changed:  make([]Change, 0),
	}

	before := indexByID(older.Records)
	after := indexByID(newer.Records)

	seen := make(map[string]bool, len(newer.Records))
	for _, rec := range newer.Records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		prev, ok := before[rec.ID]
		switch {
		case !ok:
			diff.Added = append(diff.Added, rec)
		case Fingerprint(prev) != Fingerprint(rec):
			diff.Changed = append(diff.Changed, Change{Before: prev, After: rec})
		default:
			diff.Unchanged++
		}
	}

	clear(seen)
	for _, rec := range older.Records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true

		if _, ok := after[rec.ID]; !ok {
			diff.Removed = append(diff.Removed, rec)
		}
	}

	return diff
}

func indexByID(records []Record) map[string]Record {
	m := make(map[string]Record, len(records))
	for _, rec := range records {
		if rec.ID != "" {
			m[rec.ID] = rec
		}
	}
	return m
}
