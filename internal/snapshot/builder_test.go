// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package snapshot

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stoagroup/leasing-backend/internal/config"
	"github.com/stoagroup/leasing-backend/internal/database"
	"github.com/stoagroup/leasing-backend/internal/dataset"
)

var buildDay = time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "512MB", Threads: 2})
	if err != nil {
		t.Fatalf("failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *database.DB, key string, records []dataset.Record) {
	t.Helper()
	def, ok := dataset.ByKey(key)
	if !ok {
		t.Fatalf("dataset %s not registered", key)
	}
	if err := db.ReplaceAll(context.Background(), def, records); err != nil {
		t.Fatalf("failed to seed %s: %v", def.Table, err)
	}
}

func unitDetail(property, unit, floorplan string, sqft int64, marketRent float64, moveIn, moveOut any) dataset.Record {
	return dataset.Record{
		"property":           property,
		"unit":               unit,
		"floorplan":          floorplan,
		"bedrooms":           int64(2),
		"sqft":               sqft,
		"status":             "Occupied",
		"lease_start":        nil,
		"lease_end":          nil,
		"scheduled_move_in":  moveIn,
		"scheduled_move_out": moveOut,
		"market_rent":        marketRent,
		"actual_rent":        marketRent - 50,
	}
}

func leasingMonth(property string, month time.Time, occupied, leased, total int64) dataset.Record {
	return dataset.Record{
		"property":        property,
		"month_of":        month,
		"new_leases":      int64(4),
		"renewals":        int64(6),
		"move_ins":        int64(3),
		"move_outs":       int64(2),
		"notices":         int64(1),
		"occupied_units":  occupied,
		"leased_units":    leased,
		"preleased_units": int64(2),
		"total_units":     total,
	}
}

func seedPortfolio(t *testing.T, db *database.DB) {
	units := []dataset.Record{
		unitDetail("Oakmont", "101", "A1", 850, 1250, buildDay.AddDate(0, 0, 10), nil),
		unitDetail("Oakmont", "102", "A1", 850, 1250, nil, buildDay.AddDate(0, 0, 30)),
		unitDetail("Oakmont", "103", "B2", 1100, 1600, buildDay.AddDate(0, 0, 120), nil), // beyond window
		unitDetail("Riverbend", "201", "A1", 900, 1300, nil, nil),
	}
	seed(t, db, "portfolioUnitDetails", units)

	seed(t, db, "leasing", []dataset.Record{
		leasingMonth("Oakmont", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 2, 3, 3),
		leasingMonth("Oakmont", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 3, 3, 3),
		leasingMonth("Riverbend", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), 1, 1, 1),
	})

	seed(t, db, "unitbyunittradeout", []dataset.Record{
		{"property": "Oakmont", "unit": "101", "prior_rent": 1200.0, "new_rent": 1300.0, "tradeout_pct": 8.33, "lease_start": nil},
		{"property": "Oakmont", "unit": "102", "prior_rent": 1250.0, "new_rent": 1250.0, "tradeout_pct": 0.0, "lease_start": nil},
	})
}

func TestBuildPortfolioSnapshot(t *testing.T) {
	db := newTestDB(t)
	seedPortfolio(t, db)

	snap, err := NewBuilder(db).Build(context.Background(), buildDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if snap.Portfolio.Properties != 2 {
		t.Fatalf("expected 2 properties, got %d", snap.Portfolio.Properties)
	}
	if len(snap.Properties) != 2 {
		t.Fatalf("expected 2 property entries, got %d", len(snap.Properties))
	}
	// Sorted by name.
	if snap.Properties[0].Property != "Oakmont" || snap.Properties[1].Property != "Riverbend" {
		t.Errorf("expected sorted properties, got %s, %s", snap.Properties[0].Property, snap.Properties[1].Property)
	}

	oak := snap.Properties[0]
	if oak.TotalUnits != 3 {
		t.Errorf("expected 3 units at Oakmont, got %d", oak.TotalUnits)
	}
	// Latest leasing month wins: 3 occupied of 3.
	if oak.OccupiedUnits != 3 || oak.OccupancyPct != 100.0 {
		t.Errorf("expected 3 occupied / 100%%, got %d / %v", oak.OccupiedUnits, oak.OccupancyPct)
	}
	if oak.MoveIns90 != 1 {
		t.Errorf("expected 1 scheduled move-in inside the window, got %d", oak.MoveIns90)
	}
	if oak.MoveOuts90 != 1 {
		t.Errorf("expected 1 scheduled move-out inside the window, got %d", oak.MoveOuts90)
	}

	if len(oak.Floorplans) != 2 {
		t.Fatalf("expected 2 floorplans, got %d", len(oak.Floorplans))
	}
	if oak.Floorplans[0].Floorplan != "A1" || oak.Floorplans[0].Units != 2 {
		t.Errorf("unexpected first floorplan: %+v", oak.Floorplans[0])
	}
	if oak.Floorplans[0].AvgSqft != 850.0 {
		t.Errorf("expected avg sqft 850, got %v", oak.Floorplans[0].AvgSqft)
	}

	if len(oak.Velocity) != 2 {
		t.Fatalf("expected 2 velocity months, got %d", len(oak.Velocity))
	}
	if oak.Velocity[0].MonthOf != "2026-07-01" || oak.Velocity[1].MonthOf != "2026-08-01" {
		t.Errorf("expected month-ordered velocity, got %+v", oak.Velocity)
	}

	if oak.Tradeout.Leases != 2 {
		t.Errorf("expected 2 tradeout leases, got %d", oak.Tradeout.Leases)
	}
	if oak.Tradeout.AvgNewRent != 1275.0 {
		t.Errorf("expected avg new rent 1275, got %v", oak.Tradeout.AvgNewRent)
	}
	if oak.Tradeout.AvgPct != 4.2 {
		t.Errorf("expected avg tradeout pct 4.2, got %v", oak.Tradeout.AvgPct)
	}

	if snap.Portfolio.TotalUnits != 4 {
		t.Errorf("expected portfolio total 4 units, got %d", snap.Portfolio.TotalUnits)
	}
	if snap.Portfolio.OccupiedUnits != 4 {
		t.Errorf("expected 4 occupied portfolio-wide, got %d", snap.Portfolio.OccupiedUnits)
	}
}

func TestBuildEmptyDatabase(t *testing.T) {
	db := newTestDB(t)

	snap, err := NewBuilder(db).Build(context.Background(), buildDay)
	if err != nil {
		t.Fatalf("Build on empty database failed: %v", err)
	}
	if snap.Portfolio.Properties != 0 || len(snap.Properties) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if snap.Portfolio.OccupancyPct != 0 {
		t.Errorf("expected 0%% occupancy with no units, got %v", snap.Portfolio.OccupancyPct)
	}
}

func TestPercentClamping(t *testing.T) {
	tests := []struct {
		count, total int
		want         float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.3},
		{2, 3, 66.7},
		{3, 3, 100},
		{5, 3, 100}, // over-count clamps
		{-1, 3, 0},  // negative clamps
	}
	for _, tt := range tests {
		if got := pct(tt.count, tt.total); got != tt.want {
			t.Errorf("pct(%d, %d) = %v, want %v", tt.count, tt.total, got, tt.want)
		}
	}
}

func TestBuildManyPropertiesStaysSorted(t *testing.T) {
	db := newTestDB(t)

	var units []dataset.Record
	for i := 25; i >= 0; i-- {
		units = append(units, unitDetail(fmt.Sprintf("prop-%02d", i), "101", "A1", 850, 1250, nil, nil))
	}
	seed(t, db, "portfolioUnitDetails", units)

	snap, err := NewBuilder(db).Build(context.Background(), buildDay)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for i := 1; i < len(snap.Properties); i++ {
		if snap.Properties[i-1].Property >= snap.Properties[i].Property {
			t.Fatalf("properties not sorted at %d: %s >= %s", i, snap.Properties[i-1].Property, snap.Properties[i].Property)
		}
	}
}
