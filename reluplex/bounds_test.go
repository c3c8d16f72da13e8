package reluplex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoundStoreDefaultsUnbounded(t *testing.T) {
	bs := newBoundStore(2)
	assert.False(t, bs.lb(0).finite)
	assert.False(t, bs.ub(0).finite)
}

func TestBoundStoreCheckInvariant(t *testing.T) {
	bs := newBoundStore(1)
	bs.setLower(0, 5, 0)
	bs.setUpper(0, 3, 0)
	err := bs.checkInvariant(0)
	assert.NotNil(t, err)
	assert.Equal(t, InvariantViolation, err.Kind)
}

func TestBoundStoreSnapshotRestore(t *testing.T) {
	bs := newBoundStore(2)
	bs.setLower(0, 1, 0)
	bs.setUpper(0, 2, 0)
	snap := bs.snapshot()

	bs.setLower(0, -5, 1)
	bs.setUpper(1, 10, 1)

	bs.restore(snap)
	assert.Equal(t, 1.0, bs.lbValue(0))
	assert.False(t, bs.ub(1).finite)
}
