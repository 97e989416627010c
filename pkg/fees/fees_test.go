package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateFloor(t *testing.T) {
	assert.Equal(t, uint64(10_000), Calculate(0, 0, 0))
	assert.Equal(t, uint64(10_000), Calculate(1, 1, 0))
	assert.Equal(t, uint64(10_000), Calculate(1, 2, 0))
	assert.Equal(t, uint64(10_000), Calculate(2, 1, 0))
}

func TestCalculateLiterals(t *testing.T) {
	assert.Equal(t, uint64(15_000), Calculate(1, 1, 1))
	assert.Equal(t, uint64(15_000), Calculate(3, 1, 0))
	assert.Equal(t, uint64(25_000), Calculate(5, 2, 0))
}

// Shielded outputs bill in padded pairs: an odd count costs the same as
// the next even count.
func TestCalculatePadding(t *testing.T) {
	for k := uint64(1); k <= 9; k += 2 {
		assert.Equal(t, Calculate(1, 1, k+1), Calculate(1, 1, k), "k=%d", k)
	}
	assert.NotEqual(t, Calculate(1, 1, 2), Calculate(1, 1, 3))
}

func TestCalculateMixed(t *testing.T) {
	// 2 inputs, 1 transparent output, 3 shielded outputs: padded to 4,
	// logical = max(2,1) + 4 = 6.
	assert.Equal(t, uint64(30_000), Calculate(2, 1, 3))
}

func TestPaddedActions(t *testing.T) {
	assert.Equal(t, uint64(0), PaddedActions(0))
	assert.Equal(t, uint64(2), PaddedActions(1))
	assert.Equal(t, uint64(2), PaddedActions(2))
	assert.Equal(t, uint64(4), PaddedActions(3))
}
