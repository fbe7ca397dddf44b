// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package dataset

// definitions lists every synced dataset in the fixed order the sync
// coordinator runs them. The order is part of the contract: every
// pass visits datasets the same way, which bounds load and makes sync
// reports comparable run to run.
var definitions = []*Definition{
	{
		Key:        "leasing",
		Table:      "leasing",
		NaturalKey: []string{"property", "month_of"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name", "property_name"}},
			{Name: "month_of", Kind: KindDate, Sources: []string{"MonthOf", "Month Of", "month", "Month"}},
			{Name: "new_leases", Kind: KindInteger, Sources: []string{"NewLeases", "New Leases", "new_leases"}},
			{Name: "renewals", Kind: KindInteger, Sources: []string{"Renewals", "renewals"}},
			{Name: "move_ins", Kind: KindInteger, Sources: []string{"MoveIns", "Move Ins", "move_ins"}},
			{Name: "move_outs", Kind: KindInteger, Sources: []string{"MoveOuts", "Move Outs", "move_outs"}},
			{Name: "notices", Kind: KindInteger, Sources: []string{"Notices", "Notices Given", "notices"}},
			{Name: "occupied_units", Kind: KindInteger, Sources: []string{"OccupiedUnits", "Occupied Units", "occupied"}},
			{Name: "leased_units", Kind: KindInteger, Sources: []string{"LeasedUnits", "Leased Units", "leased"}},
			{Name: "preleased_units", Kind: KindInteger, Sources: []string{"PreleasedUnits", "Preleased Units", "preleased"}},
			{Name: "total_units", Kind: KindInteger, Sources: []string{"TotalUnits", "Total Units", "unit_count"}},
		},
	},
	{
		Key:        "MMRData",
		Table:      "mmr",
		NaturalKey: []string{"property", "month_of"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "month_of", Kind: KindDate, Sources: []string{"MonthOf", "Month Of", "Month"}},
			{Name: "market_rent", Kind: KindReal, Sources: []string{"MarketRent", "Market Rent", "market_rent"}},
			{Name: "effective_rent", Kind: KindReal, Sources: []string{"EffectiveRent", "Effective Rent", "effective_rent"}},
			{Name: "concessions", Kind: KindReal, Sources: []string{"Concessions", "concessions"}},
			{Name: "other_income", Kind: KindReal, Sources: []string{"OtherIncome", "Other Income"}},
		},
	},
	{
		Key:        "unitbyunittradeout",
		Table:      "tradeout",
		NaturalKey: []string{"property", "unit"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "unit", Kind: KindText, Sources: []string{"Unit", "Unit Number", "unit_number"}},
			{Name: "prior_rent", Kind: KindReal, Sources: []string{"PriorRent", "Prior Rent", "Old Rent"}},
			{Name: "new_rent", Kind: KindReal, Sources: []string{"NewRent", "New Rent"}},
			{Name: "tradeout_pct", Kind: KindReal, Sources: []string{"TradeoutPct", "Tradeout %", "Trade Out %"}},
			{Name: "lease_start", Kind: KindDate, Sources: []string{"LeaseStart", "Lease Start", "Lease Start Date"}},
		},
	},
	{
		Key:        "portfolioUnitDetails",
		Table:      "unit_details",
		NaturalKey: []string{"property", "unit"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "unit", Kind: KindText, Sources: []string{"Unit", "Unit Number"}},
			{Name: "floorplan", Kind: KindText, Sources: []string{"Floorplan", "Floor Plan", "floorplan_name"}},
			{Name: "bedrooms", Kind: KindInteger, Sources: []string{"Bedrooms", "Beds", "BR"}},
			{Name: "sqft", Kind: KindInteger, Sources: []string{"Sqft", "SqFt", "Square Feet"}},
			{Name: "status", Kind: KindText, Sources: []string{"Status", "Unit Status"}},
			{Name: "lease_start", Kind: KindDate, Sources: []string{"LeaseStart", "Lease Start"}},
			{Name: "lease_end", Kind: KindDate, Sources: []string{"LeaseEnd", "Lease End"}},
			{Name: "scheduled_move_in", Kind: KindDate, Sources: []string{"ScheduledMoveIn", "Scheduled Move In", "Move In Date"}},
			{Name: "scheduled_move_out", Kind: KindDate, Sources: []string{"ScheduledMoveOut", "Scheduled Move Out", "Move Out Date"}},
			{Name: "market_rent", Kind: KindReal, Sources: []string{"MarketRent", "Market Rent"}},
			{Name: "actual_rent", Kind: KindReal, Sources: []string{"ActualRent", "Actual Rent", "Lease Rent"}},
		},
	},
	{
		Key:        "units",
		Table:      "units",
		NaturalKey: []string{"property", "unit"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "unit", Kind: KindText, Sources: []string{"Unit", "Unit Number"}},
			{Name: "floorplan", Kind: KindText, Sources: []string{"Floorplan", "Floor Plan"}},
			{Name: "bedrooms", Kind: KindInteger, Sources: []string{"Bedrooms", "Beds"}},
			{Name: "bathrooms", Kind: KindReal, Sources: []string{"Bathrooms", "Baths"}},
			{Name: "sqft", Kind: KindInteger, Sources: []string{"Sqft", "SqFt", "Square Feet"}},
		},
	},
	{
		Key:        "unitmix",
		Table:      "unitmix",
		NaturalKey: []string{"property", "floorplan"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "floorplan", Kind: KindText, Sources: []string{"Floorplan", "Floor Plan"}},
			{Name: "unit_count", Kind: KindInteger, Sources: []string{"UnitCount", "Unit Count", "Units"}},
			{Name: "avg_sqft", Kind: KindReal, Sources: []string{"AvgSqft", "Avg SqFt", "Average Square Feet"}},
			{Name: "avg_market_rent", Kind: KindReal, Sources: []string{"AvgMarketRent", "Avg Market Rent"}},
		},
	},
	{
		Key:        "pricing",
		Table:      "pricing",
		NaturalKey: []string{"property", "floorplan"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "floorplan", Kind: KindText, Sources: []string{"Floorplan", "Floor Plan"}},
			{Name: "base_rent", Kind: KindReal, Sources: []string{"BaseRent", "Base Rent"}},
			{Name: "amenity_adjustment", Kind: KindReal, Sources: []string{"AmenityAdjustment", "Amenity Adj", "Amenity Adjustment"}},
			{Name: "effective_date", Kind: KindDate, Sources: []string{"EffectiveDate", "Effective Date"}},
		},
	},
	{
		Key:        "recentrents",
		Table:      "recent_rents",
		NaturalKey: []string{"property", "unit"},
		Columns: []Column{
			{Name: "property", Kind: KindText, Sources: []string{"Property", "Property Name"}},
			{Name: "unit", Kind: KindText, Sources: []string{"Unit", "Unit Number"}},
			{Name: "rent", Kind: KindReal, Sources: []string{"Rent", "Lease Rent", "Signed Rent"}},
			{Name: "lease_start", Kind: KindDate, Sources: []string{"LeaseStart", "Lease Start"}},
			{Name: "term_months", Kind: KindInteger, Sources: []string{"TermMonths", "Term", "Lease Term"}},
		},
	},
}

// byKey indexes definitions by payload key.
var byKey = func() map[string]*Definition {
	m := make(map[string]*Definition, len(definitions))
	for _, d := range definitions {
		m[d.Key] = d
	}
	return m
}()

// byTable indexes definitions by destination table.
var byTable = func() map[string]*Definition {
	m := make(map[string]*Definition, len(definitions))
	for _, d := range definitions {
		m[d.Table] = d
	}
	return m
}()

// All returns every dataset definition in declared sync order.
func All() []*Definition {
	return definitions
}

// ByKey looks up a definition by payload key.
func ByKey(key string) (*Definition, bool) {
	d, ok := byKey[key]
	return d, ok
}

// ByTable looks up a definition by destination table name.
func ByTable(table string) (*Definition, bool) {
	d, ok := byTable[table]
	return d, ok
}

// Keys returns the payload keys in declared sync order.
func Keys() []string {
	keys := make([]string, len(definitions))
	for i, d := range definitions {
		keys[i] = d.Key
	}
	return keys
}
