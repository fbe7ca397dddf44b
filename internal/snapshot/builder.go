// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

// Package snapshot builds, stores, and serves the precomputed
// dashboard payload: per-property KPIs, floorplan breakdowns, leasing
// velocity, tradeout averages, and 90-day move-in/move-out
// projections, rolled up to the portfolio.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// projectionDays is the forward window for scheduled move-in and
// move-out projections.
const projectionDays = 90

// Reader is the read-only slice of the database the builder needs.
type Reader interface {
	SelectRows(ctx context.Context, query string, args ...any) ([]map[string]any, error)
}

// Snapshot is the dashboard payload. Every slice is sorted so two
// builds over the same data marshal to identical bytes. The build
// timestamp lives next to the stored payload, not inside it, for the
// same reason.
type Snapshot struct {
	Portfolio  Portfolio  `json:"portfolio"`
	Properties []Property `json:"properties"`
}

// Portfolio is the roll-up across all properties.
type Portfolio struct {
	Properties    int     `json:"properties"`
	TotalUnits    int     `json:"total_units"`
	OccupiedUnits int     `json:"occupied_units"`
	LeasedUnits   int     `json:"leased_units"`
	OccupancyPct  float64 `json:"occupancy_pct"`
	LeasedPct     float64 `json:"leased_pct"`
	MoveIns90     int     `json:"move_ins_90"`
	MoveOuts90    int     `json:"move_outs_90"`
}

// Property is one property's dashboard card.
type Property struct {
	Property      string      `json:"property"`
	TotalUnits    int         `json:"total_units"`
	OccupiedUnits int         `json:"occupied_units"`
	LeasedUnits   int         `json:"leased_units"`
	OccupancyPct  float64     `json:"occupancy_pct"`
	LeasedPct     float64     `json:"leased_pct"`
	MoveIns90     int         `json:"move_ins_90"`
	MoveOuts90    int         `json:"move_outs_90"`
	Floorplans    []Floorplan `json:"floorplans"`
	Velocity      []Velocity  `json:"velocity"`
	Tradeout      Tradeout    `json:"tradeout"`
}

// Floorplan is a per-floorplan unit breakdown within a property.
type Floorplan struct {
	Floorplan     string  `json:"floorplan"`
	Units         int     `json:"units"`
	AvgSqft       float64 `json:"avg_sqft"`
	AvgMarketRent float64 `json:"avg_market_rent"`
}

// Velocity is one month of leasing activity for a property.
type Velocity struct {
	MonthOf   string `json:"month_of"`
	NewLeases int    `json:"new_leases"`
	Renewals  int    `json:"renewals"`
	MoveIns   int    `json:"move_ins"`
	MoveOuts  int    `json:"move_outs"`
	Notices   int    `json:"notices"`
}

// Tradeout summarizes rent trade-outs for a property.
type Tradeout struct {
	Leases       int     `json:"leases"`
	AvgPriorRent float64 `json:"avg_prior_rent"`
	AvgNewRent   float64 `json:"avg_new_rent"`
	AvgPct       float64 `json:"avg_pct"`
}

// Builder assembles the dashboard snapshot from the raw tables.
type Builder struct {
	db Reader
}

// NewBuilder creates a snapshot builder.
func NewBuilder(db Reader) *Builder {
	return &Builder{db: db}
}

// Build assembles the snapshot. The projection window anchors on
// now's UTC calendar day so repeated builds within a day over
// unchanged data stay byte-identical.
func (b *Builder) Build(ctx context.Context, now time.Time) (*Snapshot, error) {
	day := now.UTC().Truncate(24 * time.Hour)
	horizon := day.AddDate(0, 0, projectionDays)

	props := make(map[string]*Property)
	prop := func(name string) *Property {
		p, ok := props[name]
		if !ok {
			p = &Property{Property: name, Floorplans: []Floorplan{}, Velocity: []Velocity{}}
			props[name] = p
		}
		return p
	}

	if err := b.addUnitDetails(ctx, prop, day, horizon); err != nil {
		return nil, err
	}
	if err := b.addVelocity(ctx, prop); err != nil {
		return nil, err
	}
	if err := b.addOccupancy(ctx, prop); err != nil {
		return nil, err
	}
	if err := b.addTradeouts(ctx, prop); err != nil {
		return nil, err
	}

	snap := &Snapshot{Properties: make([]Property, 0, len(props))}
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := props[name]
		p.OccupancyPct = pct(p.OccupiedUnits, p.TotalUnits)
		p.LeasedPct = pct(p.LeasedUnits, p.TotalUnits)
		snap.Properties = append(snap.Properties, *p)

		snap.Portfolio.Properties++
		snap.Portfolio.TotalUnits += p.TotalUnits
		snap.Portfolio.OccupiedUnits += p.OccupiedUnits
		snap.Portfolio.LeasedUnits += p.LeasedUnits
		snap.Portfolio.MoveIns90 += p.MoveIns90
		snap.Portfolio.MoveOuts90 += p.MoveOuts90
	}
	snap.Portfolio.OccupancyPct = pct(snap.Portfolio.OccupiedUnits, snap.Portfolio.TotalUnits)
	snap.Portfolio.LeasedPct = pct(snap.Portfolio.LeasedUnits, snap.Portfolio.TotalUnits)

	return snap, nil
}

// addUnitDetails fills unit counts, floorplan breakdowns, and the
// 90-day scheduled move projections.
func (b *Builder) addUnitDetails(ctx context.Context, prop func(string) *Property, day, horizon time.Time) error {
	rows, err := b.db.SelectRows(ctx,
		`SELECT property, floorplan, sqft, market_rent, scheduled_move_in, scheduled_move_out
		 FROM unit_details ORDER BY property, unit`)
	if err != nil {
		return fmt.Errorf("failed to read unit details: %w", err)
	}

	type fpAgg struct {
		units   int
		sqftSum float64
		sqftN   int
		rentSum float64
		rentN   int
	}
	fps := make(map[string]map[string]*fpAgg)

	for _, row := range rows {
		name := asString(row["property"])
		if name == "" {
			continue
		}
		p := prop(name)
		p.TotalUnits++

		if in, ok := asTime(row["scheduled_move_in"]); ok && inWindow(in, day, horizon) {
			p.MoveIns90++
		}
		if out, ok := asTime(row["scheduled_move_out"]); ok && inWindow(out, day, horizon) {
			p.MoveOuts90++
		}

		fp := asString(row["floorplan"])
		if fp == "" {
			fp = "unknown"
		}
		if fps[name] == nil {
			fps[name] = make(map[string]*fpAgg)
		}
		agg := fps[name][fp]
		if agg == nil {
			agg = &fpAgg{}
			fps[name][fp] = agg
		}
		agg.units++
		if v, ok := asFloat(row["sqft"]); ok {
			agg.sqftSum += v
			agg.sqftN++
		}
		if v, ok := asFloat(row["market_rent"]); ok {
			agg.rentSum += v
			agg.rentN++
		}
	}

	for name, plans := range fps {
		p := prop(name)
		fpNames := make([]string, 0, len(plans))
		for fp := range plans {
			fpNames = append(fpNames, fp)
		}
		sort.Strings(fpNames)
		for _, fp := range fpNames {
			agg := plans[fp]
			p.Floorplans = append(p.Floorplans, Floorplan{
				Floorplan:     fp,
				Units:         agg.units,
				AvgSqft:       round1(avg(agg.sqftSum, agg.sqftN)),
				AvgMarketRent: round1(avg(agg.rentSum, agg.rentN)),
			})
		}
	}
	return nil
}

// addVelocity fills the monthly leasing activity series.
func (b *Builder) addVelocity(ctx context.Context, prop func(string) *Property) error {
	rows, err := b.db.SelectRows(ctx,
		`SELECT property, month_of, new_leases, renewals, move_ins, move_outs, notices
		 FROM leasing ORDER BY property, month_of`)
	if err != nil {
		return fmt.Errorf("failed to read leasing activity: %w", err)
	}

	for _, row := range rows {
		name := asString(row["property"])
		if name == "" {
			continue
		}
		month, ok := asTime(row["month_of"])
		if !ok {
			continue
		}
		p := prop(name)
		p.Velocity = append(p.Velocity, Velocity{
			MonthOf:   month.Format("2006-01-02"),
			NewLeases: asInt(row["new_leases"]),
			Renewals:  asInt(row["renewals"]),
			MoveIns:   asInt(row["move_ins"]),
			MoveOuts:  asInt(row["move_outs"]),
			Notices:   asInt(row["notices"]),
		})
	}
	return nil
}

// addOccupancy takes occupied/leased counts from each property's
// latest leasing month. Falls back to zero counts when a property has
// unit details but no leasing rows.
func (b *Builder) addOccupancy(ctx context.Context, prop func(string) *Property) error {
	rows, err := b.db.SelectRows(ctx,
		`SELECT l.property, l.occupied_units, l.leased_units, l.total_units
		 FROM leasing l
		 JOIN (SELECT property, MAX(month_of) AS month_of FROM leasing GROUP BY property) latest
		   ON l.property = latest.property AND l.month_of = latest.month_of
		 ORDER BY l.property`)
	if err != nil {
		return fmt.Errorf("failed to read occupancy: %w", err)
	}

	for _, row := range rows {
		name := asString(row["property"])
		if name == "" {
			continue
		}
		p := prop(name)
		p.OccupiedUnits = asInt(row["occupied_units"])
		p.LeasedUnits = asInt(row["leased_units"])
		// Monthly totals win over the unit-details row count when both
		// exist; the leasing feed is the system of record for KPIs.
		if total := asInt(row["total_units"]); total > 0 {
			p.TotalUnits = total
		}
	}
	return nil
}

// addTradeouts fills per-property tradeout averages.
func (b *Builder) addTradeouts(ctx context.Context, prop func(string) *Property) error {
	rows, err := b.db.SelectRows(ctx,
		`SELECT property, prior_rent, new_rent, tradeout_pct FROM tradeout ORDER BY property, unit`)
	if err != nil {
		return fmt.Errorf("failed to read tradeouts: %w", err)
	}

	type toAgg struct {
		leases           int
		priorSum, priorN float64
		newSum, newN     float64
		pctSum, pctN     float64
	}
	aggs := make(map[string]*toAgg)

	for _, row := range rows {
		name := asString(row["property"])
		if name == "" {
			continue
		}
		agg := aggs[name]
		if agg == nil {
			agg = &toAgg{}
			aggs[name] = agg
		}
		agg.leases++
		if v, ok := asFloat(row["prior_rent"]); ok {
			agg.priorSum += v
			agg.priorN++
		}
		if v, ok := asFloat(row["new_rent"]); ok {
			agg.newSum += v
			agg.newN++
		}
		if v, ok := asFloat(row["tradeout_pct"]); ok {
			agg.pctSum += v
			agg.pctN++
		}
	}

	for name, agg := range aggs {
		p := prop(name)
		p.Tradeout = Tradeout{
			Leases:       agg.leases,
			AvgPriorRent: round1(avg(agg.priorSum, int(agg.priorN))),
			AvgNewRent:   round1(avg(agg.newSum, int(agg.newN))),
			AvgPct:       round1(avg(agg.pctSum, int(agg.pctN))),
		}
	}
	return nil
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}
