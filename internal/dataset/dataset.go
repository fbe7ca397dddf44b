// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package dataset declares the synced Domo datasets: destination
// tables, natural keys, and the mapping from upstream column-name
// variants to typed destination columns.
//
// Upstream exports arrive as untyped string rows (CSV). Each dataset
// definition converts them into typed records at the boundary, so
// type and shape mismatches surface here as mapping diagnostics
// instead of propagating into the aggregation logic.
package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Kind is the destination column type.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindReal
	KindDate
)

// String returns the DuckDB type name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "BIGINT"
	case KindReal:
		return "DOUBLE"
	case KindDate:
		return "DATE"
	default:
		return "VARCHAR"
	}
}

// Column maps one destination column to an ordered list of acceptable
// upstream column names. The first variant present in the export
// header wins; a column whose variants all miss is a mapping gap.
type Column struct {
	Name    string
	Kind    Kind
	Sources []string
}

// Definition describes one synced dataset.
type Definition struct {
	// Key is the payload key used by the sync endpoints and the Domo
	// dataset ID configuration (e.g. "leasing", "MMRData").
	Key string

	// Table is the destination table name.
	Table string

	// NaturalKey lists the destination columns forming row identity.
	// A later sync with the same key replaces the row.
	NaturalKey []string

	// Columns is the full destination schema in declaration order.
	Columns []Column
}

// Record is a typed row keyed by destination column name. Values are
// string, int64, float64, time.Time, or nil for absent/unparsable.
type Record map[string]any

// Diagnostics reports how an export's columns resolved against the
// definition. Unmatched destination columns signal that no configured
// source variant matched; operators add a variant rather than code.
type Diagnostics struct {
	Dataset        string         `json:"dataset"`
	Table          string         `json:"table"`
	RowCount       int            `json:"rowCount"`
	MatchedSources map[string]string `json:"matchedSources"`
	Unmatched      []string       `json:"unmatched"`
	ParseFailures  map[string]int `json:"parseFailures,omitempty"`
}

// ColumnNames returns the destination column names in order.
func (d *Definition) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyOf derives the natural-key string for a record. Key parts are
// joined with a separator that cannot appear in property or unit
// identifiers.
func (d *Definition) KeyOf(rec Record) string {
	parts := make([]string, len(d.NaturalKey))
	for i, col := range d.NaturalKey {
		parts[i] = valueKeyString(rec[col])
	}
	return strings.Join(parts, "\x1f")
}

// valueKeyString renders a record value for key comparison. Dates
// normalize to their calendar day so "2024-06-01" from two exports
// always collide.
func valueKeyString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format("2006-01-02")
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// Parse converts untyped upstream rows into typed records and reports
// mapping diagnostics. Source column names are matched
// case-insensitively after trimming.
func (d *Definition) Parse(raw []map[string]string) ([]Record, *Diagnostics) {
	diag := &Diagnostics{
		Dataset:        d.Key,
		Table:          d.Table,
		RowCount:       len(raw),
		MatchedSources: make(map[string]string, len(d.Columns)),
		ParseFailures:  make(map[string]int),
	}

	// Resolve each destination column against the export header once.
	header := headerIndex(raw)
	resolved := make(map[string]string, len(d.Columns))
	for _, col := range d.Columns {
		for _, src := range col.Sources {
			if actual, ok := header[normalizeName(src)]; ok {
				resolved[col.Name] = actual
				diag.MatchedSources[col.Name] = actual
				break
			}
		}
		if _, ok := resolved[col.Name]; !ok {
			diag.Unmatched = append(diag.Unmatched, col.Name)
		}
	}

	records := make([]Record, 0, len(raw))
	for _, row := range raw {
		rec := make(Record, len(d.Columns))
		for _, col := range d.Columns {
			src, ok := resolved[col.Name]
			if !ok {
				rec[col.Name] = nil
				continue
			}
			val, err := parseValue(row[src], col.Kind)
			if err != nil {
				diag.ParseFailures[col.Name]++
				rec[col.Name] = nil
				continue
			}
			rec[col.Name] = val
		}
		records = append(records, rec)
	}

	return records, diag
}

// headerIndex maps normalized column names from the first row to the
// names actually present in the export.
func headerIndex(raw []map[string]string) map[string]string {
	header := make(map[string]string)
	if len(raw) == 0 {
		return header
	}
	for name := range raw[0] {
		header[normalizeName(name)] = name
	}
	return header
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// dateLayouts lists accepted upstream date formats, most common first.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
}

// parseValue converts one upstream cell to the destination kind.
// Empty cells are nil, never an error; Domo exports use empty strings
// for SQL NULLs.
func parseValue(s string, kind Kind) (any, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "N/A" || strings.EqualFold(s, "null") {
		return nil, nil
	}

	switch kind {
	case KindInteger:
		n, err := strconv.ParseInt(stripNumeric(s), 10, 64)
		if err != nil {
			return nil, err
		}
		return n, nil
	case KindReal:
		f, err := strconv.ParseFloat(stripNumeric(s), 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case KindDate:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, &time.ParseError{Layout: dateLayouts[0], Value: s}
	default:
		return s, nil
	}
}

// stripNumeric removes currency and grouping decoration from numeric
// cells ("$1,250.00" -> "1250.00", "92.5%" -> "92.5").
func stripNumeric(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	return s
}
