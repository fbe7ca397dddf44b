// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package dataset

import (
	"testing"
	"time"
)

func TestRegistryConsistency(t *testing.T) {
	seen := make(map[string]bool)
	for _, d := range All() {
		if seen[d.Key] {
			t.Errorf("duplicate dataset key %s", d.Key)
		}
		seen[d.Key] = true

		if d.Table == "" {
			t.Errorf("dataset %s has no destination table", d.Key)
		}
		if len(d.NaturalKey) == 0 {
			t.Errorf("dataset %s has no natural key", d.Key)
		}

		cols := make(map[string]bool)
		for _, c := range d.Columns {
			if cols[c.Name] {
				t.Errorf("dataset %s declares column %s twice", d.Key, c.Name)
			}
			cols[c.Name] = true
			if len(c.Sources) == 0 {
				t.Errorf("dataset %s column %s has no source variants", d.Key, c.Name)
			}
		}

		// Natural key columns must be part of the schema.
		for _, k := range d.NaturalKey {
			if !cols[k] {
				t.Errorf("dataset %s natural key column %s not in schema", d.Key, k)
			}
		}
	}

	if len(All()) != 8 {
		t.Errorf("expected 8 datasets, got %d", len(All()))
	}
}

func TestLookups(t *testing.T) {
	d, ok := ByKey("leasing")
	if !ok || d.Table != "leasing" {
		t.Fatal("leasing dataset not found by key")
	}

	d, ok = ByTable("unit_details")
	if !ok || d.Key != "portfolioUnitDetails" {
		t.Fatal("unit_details dataset not found by table")
	}

	if _, ok := ByKey("nope"); ok {
		t.Error("unknown key should not resolve")
	}
}

func TestParseTypedValues(t *testing.T) {
	d, _ := ByKey("leasing")

	raw := []map[string]string{
		{
			"Property":      "Arlow Flats",
			"MonthOf":       "2024-06-01",
			"New Leases":    "12",
			"Renewals":      "7",
			"OccupiedUnits": "231",
			"TotalUnits":    "250",
		},
	}

	records, diag := d.Parse(raw)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	rec := records[0]
	if rec["property"] != "Arlow Flats" {
		t.Errorf("unexpected property %v", rec["property"])
	}
	if got, ok := rec["month_of"].(time.Time); !ok || got.Format("2006-01-02") != "2024-06-01" {
		t.Errorf("unexpected month_of %v", rec["month_of"])
	}
	if rec["new_leases"] != int64(12) {
		t.Errorf("unexpected new_leases %v", rec["new_leases"])
	}

	// "New Leases" is the second variant; diagnostics should show the
	// actual matched header name.
	if diag.MatchedSources["new_leases"] != "New Leases" {
		t.Errorf("unexpected matched source %q", diag.MatchedSources["new_leases"])
	}
}

func TestParseReportsUnmatchedColumns(t *testing.T) {
	d, _ := ByKey("leasing")

	raw := []map[string]string{
		{"Property": "Arlow Flats", "MonthOf": "2024-06-01"},
	}

	_, diag := d.Parse(raw)
	unmatched := make(map[string]bool)
	for _, c := range diag.Unmatched {
		unmatched[c] = true
	}
	if !unmatched["new_leases"] || !unmatched["total_units"] {
		t.Errorf("expected new_leases and total_units unmatched, got %v", diag.Unmatched)
	}
	if unmatched["property"] || unmatched["month_of"] {
		t.Errorf("matched columns reported as unmatched: %v", diag.Unmatched)
	}
}

func TestParseNumericDecoration(t *testing.T) {
	d, _ := ByKey("MMRData")

	raw := []map[string]string{
		{
			"Property":   "Arlow Flats",
			"MonthOf":    "2024-06-01",
			"MarketRent": "$1,250.00",
			"Concessions": "(50.00)",
		},
	}

	records, diag := d.Parse(raw)
	if records[0]["market_rent"] != 1250.0 {
		t.Errorf("unexpected market_rent %v", records[0]["market_rent"])
	}
	if records[0]["concessions"] != -50.0 {
		t.Errorf("unexpected concessions %v", records[0]["concessions"])
	}
	if len(diag.ParseFailures) != 0 {
		t.Errorf("unexpected parse failures %v", diag.ParseFailures)
	}
}

func TestParseFailureCountsAndNils(t *testing.T) {
	d, _ := ByKey("leasing")

	raw := []map[string]string{
		{"Property": "A", "MonthOf": "not-a-date", "NewLeases": "twelve"},
		{"Property": "B", "MonthOf": "2024-06-01", "NewLeases": ""},
	}

	records, diag := d.Parse(raw)
	if records[0]["month_of"] != nil {
		t.Errorf("unparsable date should be nil, got %v", records[0]["month_of"])
	}
	if diag.ParseFailures["month_of"] != 1 {
		t.Errorf("expected 1 month_of failure, got %d", diag.ParseFailures["month_of"])
	}
	if diag.ParseFailures["new_leases"] != 1 {
		t.Errorf("expected 1 new_leases failure (empty is not a failure), got %d", diag.ParseFailures["new_leases"])
	}
	if records[1]["new_leases"] != nil {
		t.Errorf("empty cell should parse to nil, got %v", records[1]["new_leases"])
	}
}

func TestKeyOf(t *testing.T) {
	d, _ := ByKey("leasing")

	june := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	a := Record{"property": "Arlow Flats", "month_of": june}
	b := Record{"property": "Arlow Flats", "month_of": june.Add(time.Hour)} // same day
	c := Record{"property": "Arlow Flats", "month_of": june.AddDate(0, 1, 0)}

	if d.KeyOf(a) != d.KeyOf(b) {
		t.Error("same calendar day should produce the same key")
	}
	if d.KeyOf(a) == d.KeyOf(c) {
		t.Error("different months should produce different keys")
	}
}

func TestCaseInsensitiveHeaderMatch(t *testing.T) {
	d, _ := ByKey("units")

	raw := []map[string]string{
		{"PROPERTY": "Arlow Flats", " unit ": "101", "sqft": "820"},
	}

	records, diag := d.Parse(raw)
	if records[0]["property"] != "Arlow Flats" {
		t.Errorf("case-insensitive match failed: %v", records[0])
	}
	if records[0]["unit"] != "101" {
		t.Errorf("trimmed header match failed: %v (matched %v)", records[0], diag.MatchedSources)
	}
	if records[0]["sqft"] != int64(820) {
		t.Errorf("unexpected sqft %v", records[0]["sqft"])
	}
}
