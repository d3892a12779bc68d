package embedding

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicVector_Reproducible(t *testing.T) {
	a := DeterministicVector("hello world", 384)
	b := DeterministicVector("hello world", 384)
	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
}

func TestDeterministicVector_LengthFeature(t *testing.T) {
	assert.InDelta(t, 0.011, DeterministicVector("hello world", 16)[0], 1e-6)
	assert.InDelta(t, 0.5, DeterministicVector(strings.Repeat("x", 500), 16)[0], 1e-6)
	assert.Equal(t, float32(1.0), DeterministicVector(strings.Repeat("x", 5000), 16)[0])
}

func TestDeterministicVector_CharacterCodes(t *testing.T) {
	v := DeterministicVector("ab", 5)
	// v[0] is the length feature; the rest cycle through 'a','b'.
	assert.InDelta(t, float32('b')/255, v[1], 1e-6)
	assert.InDelta(t, float32('a')/255, v[2], 1e-6)
	assert.InDelta(t, float32('b')/255, v[3], 1e-6)
	assert.InDelta(t, float32('a')/255, v[4], 1e-6)
}

func TestDeterministicVector_EmptyText(t *testing.T) {
	v := DeterministicVector("", 8)
	assert.Equal(t, make([]float32, 8), v)
}

func TestDeterministicVector_DiffersByText(t *testing.T) {
	assert.NotEqual(t, DeterministicVector("alpha", 32), DeterministicVector("omega", 32))
}

func TestDeterministic_Embed(t *testing.T) {
	d := NewDeterministic(0)
	vectors, err := d.Embed(context.Background(), []string{"a", "bb", ""})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, DefaultDimension)
	}
	assert.Equal(t, "deterministic", d.Name())
}
