package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOrZero(t *testing.T) {
	assert.Equal(t, Zero, Zero.NormalizeOrZero())

	n := V3(3, 0, 4).NormalizeOrZero()
	assert.InDelta(t, 0.6, n.X, 1e-6)
	assert.InDelta(t, 0.8, n.Z, 1e-6)
	assert.InDelta(t, 1.0, n.Length(), 1e-6)

	inf := float32(math.Inf(1))
	assert.Equal(t, Zero, V3(inf, 0, 0).NormalizeOrZero())
}

func TestDistance(t *testing.T) {
	assert.InDelta(t, 5.0, V3(1, 1, 1).Distance(V3(4, 5, 1)), 1e-6)
	assert.Equal(t, float32(0), V3(2, 2, 2).Distance(V3(2, 2, 2)))
}

func TestNameIDStable(t *testing.T) {
	assert.Equal(t, NameID("don_left"), NameID("don_left"))
	assert.NotEqual(t, NameID("don_left"), NameID("don_right"))
}

func TestParsePhase(t *testing.T) {
	p, ok := ParsePhase("started")
	assert.True(t, ok)
	assert.Equal(t, Begin, p)

	p, ok = ParsePhase("end")
	assert.True(t, ok)
	assert.Equal(t, End, p)

	_, ok = ParsePhase("touch")
	assert.False(t, ok)
}
