// Package profile loads dataset profiles.
//
// A profile is a CUE document unified with the embedded #Profile schema.
// The schema supplies defaults that reproduce the reference dataset, so an
// empty profile is valid. Weights are decoded from CUE's exact decimal text
// and never pass through float64.
package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/shopspring/decimal"

	"github.com/roach88/retrace/internal/engine"
	"github.com/roach88/retrace/internal/record"
	"github.com/roach88/retrace/internal/scenario"
)

//go:embed schema.cue
var schemaSource []byte

// DateLayout is the format of Profile.Start.
const DateLayout = "2006-01-02"

// Profile is a resolved dataset profile.
type Profile struct {
	Seed      int64                             `json:"seed"`
	Items     int                               `json:"items"`
	Locations int                               `json:"locations"`
	Days      int                               `json:"days"`
	Start     string                            `json:"start"`
	Workers   int                               `json:"workers"`
	Weights   map[scenario.Kind]decimal.Decimal `json:"weights"`
	Pins      *Pins                             `json:"pins,omitempty"`
}

// Pins are the profile form of engine.Overrides.
type Pins struct {
	Scenarios     map[string]scenario.Kind  `json:"scenarios,omitempty"`
	SafetyStock   map[string]int            `json:"safety_stock,omitempty"`
	LeadTime      map[string]int            `json:"lead_time,omitempty"`
	Demand        map[string]int            `json:"demand,omitempty"`
	StartingStock map[string]map[string]int `json:"starting_stock,omitempty"` // item → location → stock
}

// Error reports a profile that failed to parse or validate.
type Error struct {
	Source  string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Message)
}

// Default returns the reference profile.
func Default() *Profile {
	p, err := Parse(nil, "default")
	if err != nil {
		panic(fmt.Sprintf("profile: embedded schema is broken: %v", err))
	}
	return p
}

// Load reads and parses a profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(data, path)
}

// Parse unifies CUE source with the schema and decodes the result.
// filename is used in error positions.
func Parse(data []byte, filename string) (*Profile, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err, "schema.cue")
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err, filename)
	}

	v := schema.LookupPath(cue.ParsePath("#Profile")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err, filename)
	}

	raw, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err, filename)
	}
	return Decode(raw)
}

// Decode reads the JSON form produced by Profile.JSON.
func Decode(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

// JSON returns the stored form of the profile. Map keys are sorted, so
// equal profiles encode to equal bytes.
func (p *Profile) JSON() ([]byte, error) {
	return json.Marshal(p)
}

// Resolve converts the profile to generator inputs and validates them.
func (p *Profile) Resolve() (engine.Config, engine.Overrides, error) {
	start, err := time.Parse(DateLayout, p.Start)
	if err != nil {
		return engine.Config{}, engine.Overrides{}, &engine.ConfigError{Field: "start", Message: "want YYYY-MM-DD", Err: err}
	}

	cfg := engine.Config{
		Seed:      p.Seed,
		Items:     p.Items,
		Locations: p.Locations,
		Days:      p.Days,
		Start:     start.UTC(),
		Weights:   p.Weights,
		Workers:   p.Workers,
	}
	if err := cfg.Validate(); err != nil {
		return engine.Config{}, engine.Overrides{}, err
	}
	return cfg, p.Pins.overrides(), nil
}

func (pins *Pins) overrides() engine.Overrides {
	if pins == nil {
		return engine.Overrides{}
	}
	o := engine.Overrides{
		Scenarios:   pins.Scenarios,
		SafetyStock: pins.SafetyStock,
		LeadTime:    pins.LeadTime,
		Demand:      pins.Demand,
	}
	if len(pins.StartingStock) > 0 {
		o.StartingStock = make(map[record.ItemLocation]int)
		for item, locs := range pins.StartingStock {
			for loc, stock := range locs {
				o.StartingStock[record.ItemLocation{Item: item, Location: loc}] = stock
			}
		}
	}
	return o
}

// formatCUEError keeps the first CUE error and its position.
func formatCUEError(err error, source string) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &Error{Source: source, Message: err.Error()}
	}

	first := errs[0]
	pe := &Error{Source: source, Message: first.Error()}
	if positions := errors.Positions(first); len(positions) > 0 {
		pe.Pos = positions[0]
	}
	return pe
}
