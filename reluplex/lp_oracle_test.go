package reluplex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanMoveRespectsFixedAndBoundSide(t *testing.T) {
	cfg := DefaultConfig()
	s := New(1, cfg)
	s.SetLowerBound(0, 0)
	s.SetUpperBound(0, 5)

	s.assign[0] = 0
	assert.False(t, s.canMove(0, -1))
	assert.True(t, s.canMove(0, 1))

	s.assign[0] = 5
	assert.False(t, s.canMove(0, 1))
	assert.True(t, s.canMove(0, -1))

	s.bounds.setLower(0, 2, 0)
	s.bounds.setUpper(0, 2, 0)
	s.assign[0] = 2
	assert.False(t, s.canMove(0, 1))
	assert.False(t, s.canMove(0, -1))
}

func TestOwnBoundDistanceReturnsInfWhenUnbounded(t *testing.T) {
	cfg := DefaultConfig()
	s := New(1, cfg)
	s.assign[0] = 3

	assert.Equal(t, posInf, s.ownBoundDistance(0, 1))
	assert.Equal(t, posInf, s.ownBoundDistance(0, -1))

	s.SetUpperBound(0, 10)
	s.SetLowerBound(0, -10)
	assert.InDelta(t, 7, s.ownBoundDistance(0, 1), 1e-12)
	assert.InDelta(t, 13, s.ownBoundDistance(0, -1), 1e-12)
}

func TestFindEnteringColumnPicksLowestMovableColumnByBlandsRule(t *testing.T) {
	cfg := DefaultConfig()
	s := New(3, cfg)
	const x0, x1, r Var = 0, 1, 2
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.InitializeCell(r, x1, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 10)

	// x0 is fixed, so x1 must be chosen even though it is listed second.
	s.bounds.setLower(x0, 3, 0)
	s.bounds.setUpper(x0, 3, 0)
	s.SetLowerBound(x1, 0)
	s.SetUpperBound(x1, 10)

	entering, sign, ok := s.findEnteringColumn(r, true)
	require.True(t, ok)
	assert.Equal(t, x1, entering)
	assert.Equal(t, 1.0, sign)
}

func TestFindEnteringColumnFailsWhenNothingCanMove(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const x0, r Var = 0, 1
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 10)
	s.bounds.setLower(x0, 3, 0)
	s.bounds.setUpper(x0, 3, 0)

	_, _, ok := s.findEnteringColumn(r, true)
	assert.False(t, ok)
}

func TestRunOracleFixesBelowLowerBoundBasicByPivoting(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const x0, r Var = 0, 1
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 5)
	s.SetLowerBound(x0, -5)
	s.SetUpperBound(x0, 5)

	s.update(x0, -2, true) // pushes r to -2, below its lower bound of 0

	require.Len(t, s.outOfBoundsBasics(), 1)

	outcome, err := s.runOracle()
	require.Nil(t, err)
	assert.Equal(t, oracleSolution, outcome.kind)
	assert.Empty(t, s.outOfBoundsBasics())
}

func TestRunOracleReportsNoSolutionWhenEveryColumnIsPinned(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const x0, r Var = 0, 1
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 5)
	s.bounds.setLower(x0, 3, 0)
	s.bounds.setUpper(x0, 3, 0)

	s.assign[r] = -1 // force out of bounds without a movable column

	outcome, err := s.runOracle()
	require.Nil(t, err)
	assert.Equal(t, oracleNoSolution, outcome.kind)
}

func TestCaptureAndRestoreBackupRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const x0, r Var = 0, 1
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 5)
	s.SetLowerBound(x0, -5)
	s.SetUpperBound(x0, 5)

	s.captureBackup()

	s.update(x0, 3, true)
	require.NotEqual(t, 0.0, s.assign[x0])

	s.restoreFromBackup(true)
	assert.Equal(t, 0.0, s.assign[x0])
	assert.Equal(t, 0.0, s.assign[r])
}

func TestImportSolutionMergesReluPairsWithNonNegativeLowerBound(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const b, f Var = 0, 1
	s.SetReluPair(b, f)
	s.SetLowerBound(f, 0)
	s.SetLowerBound(b, 2)

	s.importSolution(oracleOutcome{kind: oracleSolution})

	assert.Equal(t, Merge, s.relus.kindOf(f))
}
