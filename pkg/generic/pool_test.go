package generic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoolResetsValues(t *testing.T) {
	p := NewPool(
		func() []byte { return make([]byte, 0, 16) },
		func(b []byte) []byte { return b[:0] },
	)

	b := p.Get()
	assert.Equal(t, 0, len(b))
	assert.Equal(t, 16, cap(b))

	b = append(b, "dirty"...)
	p.Put(b)

	// sync.Pool may or may not hand back the same slice; either way it is empty
	assert.Empty(t, p.Get())
}
