package uuidpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProducesDistinctUUIDs(t *testing.T) {
	a := New()
	b := New()
	assert.NotEqual(t, a, b)
}

func TestPoolGetDrainsCacheBeforeGenerating(t *testing.T) {
	p := NewPool(3)
	assert.Equal(t, 3, p.Len())

	first := p.Get()
	assert.Equal(t, 2, p.Len())

	second := p.Get()
	third := p.Get()
	assert.NotEqual(t, first, second)
	assert.NotEqual(t, second, third)
	assert.True(t, p.IsEmpty())

	// Cache exhausted: Get still returns a valid, fresh id.
	fourth := p.Get()
	assert.NotEqual(t, third, fourth)
}

func TestPoolRefillRestoresCapacity(t *testing.T) {
	p := NewPool(5)
	for !p.IsEmpty() {
		p.Get()
	}
	assert.Equal(t, 0, p.Len())

	p.Refill()
	assert.Equal(t, 5, p.Len())
}
