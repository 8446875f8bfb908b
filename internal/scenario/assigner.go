package scenario

import "github.com/roach88/retrace/internal/rng"

// Assigner draws one scenario per item.
type Assigner struct {
	dist   *Distribution
	src    *rng.Source
	pinned map[string]Kind
}

// NewAssigner creates an assigner. Pinned items still consume a draw so that
// pinning one item does not change the scenarios of the others.
func NewAssigner(dist *Distribution, src *rng.Source, pinned map[string]Kind) *Assigner {
	return &Assigner{dist: dist, src: src, pinned: pinned}
}

// Assign returns the scenario for item.
func (a *Assigner) Assign(item string) Kind {
	k := a.dist.Draw(a.src)
	if p, ok := a.pinned[item]; ok {
		return p
	}
	return k
}
