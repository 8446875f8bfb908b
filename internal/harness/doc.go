// Package harness runs conformance cases against the generator.
//
// A case pins a small profile, generates a dataset with a fixed clock and
// run id, stores it in an in-memory SQLite database and evaluates
// assertions against the result.
//
// # Case Format
//
// Cases are YAML files. The profile is CUE source, unified with the same
// schema the CLI uses:
//
//	name: safety_stock_insufficient
//	description: "Stock runs out after the reorder was placed"
//	profile: |
//	  items: 1
//	  locations: 1
//	  days: 30
//	  pins: scenarios: ITEM_0000: "SAFETY_STOCK_INSUFFICIENT"
//	assertions:
//	  - type: stockout
//	    item: ITEM_0000
//	    location: WH_00
//	    expect: { day: 19, category: EXECUTION_FAILURE }
//	  - type: row_count
//	    stream: stockout_events
//	    count: 1
//	  - type: audit_clean
//
// # Assertion Types
//
//   - stockout: the pair has a stockout event matching expect
//   - no_stockout: the pair never ran out
//   - order: the pair has a purchase order matching expect
//   - no_order: the pair never crossed its threshold
//   - row_count: a stored stream has exactly count rows
//   - audit_clean: every causal property holds
//
// Expect clauses use subset semantics. Dates are given as day offsets
// from the profile start.
package harness
