// Package engine generates the synthetic replenishment dataset.
//
// PIPELINE:
//
// Catalog → ScenarioAssigner → RuleGenerator → ForecastGenerator →
// InventorySimulator → ReplenishmentEngine → StockoutDetector
//
// Every stage is a pure function of the configuration, the overrides and
// the seed. Data flows strictly forward; a stage never reads what a later
// stage produces.
//
// DETERMINISM:
//
// All randomness comes from rng.Source. Each stage splits its own stream
// per item (rules, forecasts) or per pair (inventory, replenishment,
// stockout), so a dataset depends only on the seed and never on goroutine
// scheduling or on how many draws a neighbouring item consumed. The only
// wall-clock value in a dataset is StockoutEvent.AnalyzedAt, read from the
// injected Clock.
//
// CAUSAL NARRATIVE:
//
// Each item carries exactly one scenario, shared by all its locations.
// At most one order and one stockout exist per pair, so every stockout is
// attributable to a single injected fault (or UNKNOWN for NO_FAILURE items).
// Orders never feed stock back into the simulation.
package engine
