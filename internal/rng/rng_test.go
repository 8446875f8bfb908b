package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_SameSeedSameStream(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 100; i++ {
		assert.Equal(t, a.IntRange(0, 1000), b.IntRange(0, 1000))
	}
}

func TestSplit_IndependentOfParentConsumption(t *testing.T) {
	a := New(7)
	b := New(7)

	// Drain the parent of a; the child must not notice.
	for i := 0; i < 50; i++ {
		a.Float64()
	}

	ca := a.Split("inventory", "ITEM_0001", "WH_00")
	cb := b.Split("inventory", "ITEM_0001", "WH_00")
	for i := 0; i < 20; i++ {
		assert.Equal(t, ca.IntRange(300, 500), cb.IntRange(300, 500))
	}
}

func TestSplit_DifferentLabelsDiffer(t *testing.T) {
	root := New(7)
	x := root.Split("rules")
	y := root.Split("forecast")

	same := true
	for i := 0; i < 10; i++ {
		if x.IntRange(0, 1<<30) != y.IntRange(0, 1<<30) {
			same = false
		}
	}
	assert.False(t, same, "streams with different labels should diverge")
}

func TestSplit_PartsAreSeparated(t *testing.T) {
	root := New(1)
	// "AB"+"C" must not collide with "A"+"BC".
	x := root.Split("p", "AB", "C")
	y := root.Split("p", "A", "BC")

	same := true
	for i := 0; i < 10; i++ {
		if x.IntRange(0, 1<<30) != y.IntRange(0, 1<<30) {
			same = false
		}
	}
	assert.False(t, same)
}

func TestIntRange_Inclusive(t *testing.T) {
	s := New(3)
	seenLo, seenHi := false, false
	for i := 0; i < 2000; i++ {
		v := s.IntRange(5, 10)
		assert.GreaterOrEqual(t, v, 5)
		assert.LessOrEqual(t, v, 10)
		if v == 5 {
			seenLo = true
		}
		if v == 10 {
			seenHi = true
		}
	}
	assert.True(t, seenLo)
	assert.True(t, seenHi)
}

func TestIntRange_DegenerateRange(t *testing.T) {
	s := New(3)
	assert.Equal(t, 4, s.IntRange(4, 4))
	assert.Equal(t, 4, s.IntRange(4, 2))
}

func TestUniform_Bounds(t *testing.T) {
	s := New(9)
	for i := 0; i < 1000; i++ {
		v := s.Uniform(0.75, 0.95)
		assert.GreaterOrEqual(t, v, 0.75)
		assert.Less(t, v, 0.95)
	}
}

func TestChance_Extremes(t *testing.T) {
	s := New(11)
	for i := 0; i < 100; i++ {
		assert.False(t, s.Chance(0))
		assert.True(t, s.Chance(1))
	}
}

func TestPick_Range(t *testing.T) {
	s := New(5)
	assert.Equal(t, 0, s.Pick(0))
	assert.Equal(t, 0, s.Pick(1))
	for i := 0; i < 100; i++ {
		v := s.Pick(4)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 4)
	}
}
