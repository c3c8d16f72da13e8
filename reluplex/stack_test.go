package reluplex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStackTestSolver builds a single fully-bounded ReLU pair: b in
// [-5,5], f in [0,5]. Both sides already carry finite bounds so
// Initialize's auxiliary-elimination and finite-bound passes are no-ops,
// keeping these tests focused on the decision stack itself.
func newStackTestSolver(cfg Config) *Solver {
	s := New(2, cfg)
	s.SetReluPair(0, 1)
	s.SetLowerBound(0, -5)
	s.SetUpperBound(0, 5)
	s.SetLowerBound(1, 0)
	s.SetUpperBound(1, 5)
	return s
}

func TestDissolveReluOnPushesSplitWhenInactive(t *testing.T) {
	cfg := DefaultConfig()
	s := newStackTestSolver(cfg)
	require.Nil(t, s.Initialize())

	s.assign[1] = 0
	require.Nil(t, s.dissolveReluOn(1))

	assert.Equal(t, Level(1), s.stack.depth())
	assert.Equal(t, 0.0, s.bounds.ubValue(1))
	assert.Equal(t, 1, s.stack.maxDepth)
	assert.Equal(t, 1, s.stack.visited)
}

func TestDissolveReluOnPushesMergeWhenActive(t *testing.T) {
	cfg := DefaultConfig()
	s := newStackTestSolver(cfg)
	require.Nil(t, s.Initialize())

	s.assign[1] = 3
	require.Nil(t, s.dissolveReluOn(1))

	assert.Equal(t, Level(1), s.stack.depth())
	assert.Equal(t, Merge, s.stack.snaps[0].kind)
}

func TestPopToLevelZeroOrBelowIsStackEmpty(t *testing.T) {
	cfg := DefaultConfig()
	s := newStackTestSolver(cfg)
	require.Nil(t, s.Initialize())

	err := s.popToLevel(0)
	require.NotNil(t, err)
	assert.Equal(t, StackEmpty, err.Kind)
}

func TestPopToLevelRestoresPriorStateAndTriesAlternative(t *testing.T) {
	cfg := DefaultConfig()
	s := newStackTestSolver(cfg)
	require.Nil(t, s.Initialize())

	before := s.bounds.ubValue(1)
	s.assign[1] = 0
	require.Nil(t, s.dissolveReluOn(1))
	assert.NotEqual(t, before, s.bounds.ubValue(1))

	require.Nil(t, s.popToLevel(1))
	assert.Equal(t, Level(1), s.stack.depth())
	assert.Equal(t, before, s.bounds.ubValue(1))
	// The same frame now commits the opposite (Merge) direction.
	assert.True(t, s.stack.snaps[0].triedAlternative)
	assert.Equal(t, Merge, s.stack.snaps[0].kind)
}

func TestPopToLevelExhaustsBothDirectionsThenStackEmpty(t *testing.T) {
	cfg := DefaultConfig()
	s := newStackTestSolver(cfg)
	require.Nil(t, s.Initialize())

	s.assign[1] = 0
	require.Nil(t, s.dissolveReluOn(1))
	require.Nil(t, s.popToLevel(1))

	err := s.popToLevel(1)
	require.NotNil(t, err)
	assert.Equal(t, StackEmpty, err.Kind)
	assert.Equal(t, Level(0), s.stack.depth())
}
