package reluplex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBoundsDetectInvariantViolation(t *testing.T) {
	cfg := DefaultConfig()
	s := New(1, cfg)

	require.Nil(t, s.applyLower(0, 5, 0))
	err := s.applyUpper(0, 3, 0)
	require.NotNil(t, err)
	assert.Equal(t, InvariantViolation, err.Kind)
	assert.Equal(t, Level(0), err.Level)
}

func TestUpdateUpperNoOpWhenNotTighter(t *testing.T) {
	cfg := DefaultConfig()
	s := New(1, cfg)
	s.SetUpperBound(0, 5)

	require.Nil(t, s.updateUpper(0, 10, 1))
	assert.Equal(t, 5.0, s.bounds.ubValue(0))
}

func TestUpdateUpperOnReluOutputNegativeIsViolation(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const b, f Var = 0, 1
	s.SetReluPair(b, f)
	s.SetLowerBound(f, 0)

	err := s.updateUpper(f, -2, 1)
	require.NotNil(t, err)
	assert.Equal(t, InvariantViolation, err.Kind)
}

func TestUpdateUpperNonPositiveOnBDissolvesSplit(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const b, f Var = 0, 1
	s.SetReluPair(b, f)
	s.SetLowerBound(f, 0)

	require.Nil(t, s.updateUpper(b, -2, 1))

	assert.Equal(t, Split, s.relus.kindOf(f))
	assert.Equal(t, 0.0, s.bounds.ubValue(f))
	assert.Equal(t, 0.0, s.bounds.lbValue(f))
	assert.Equal(t, -2.0, s.bounds.ubValue(b))
}

func TestUpdateUpperPositiveTightensBothSides(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const b, f Var = 0, 1
	s.SetReluPair(b, f)
	s.SetLowerBound(f, 0)

	require.Nil(t, s.updateUpper(f, 7, 1))

	assert.Equal(t, 7.0, s.bounds.ubValue(b))
	assert.Equal(t, 7.0, s.bounds.ubValue(f))
	assert.Equal(t, NotDissolved, s.relus.kindOf(f))
}

func TestUpdateLowerNonNegativeMergesPair(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const b, f Var = 0, 1
	s.SetReluPair(b, f)
	s.SetLowerBound(f, 0)

	require.Nil(t, s.updateLower(f, 2, 1))

	assert.Equal(t, Merge, s.relus.kindOf(f))
	assert.Equal(t, 2.0, s.bounds.lbValue(b))
	assert.Equal(t, 2.0, s.bounds.lbValue(f))
	assert.Equal(t, s.assign[f], s.assign[b])
}

func TestUpdateLowerNegativeOnBOnlyLeavesFUntouched(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const b, f Var = 0, 1
	s.SetReluPair(b, f)
	s.SetLowerBound(f, 0)
	s.SetLowerBound(b, -10)

	require.Nil(t, s.updateLower(b, -5, 1))

	assert.Equal(t, -5.0, s.bounds.lbValue(b))
	assert.Equal(t, 0.0, s.bounds.lbValue(f))
	assert.Equal(t, NotDissolved, s.relus.kindOf(f))
}

func TestEliminateAuxiliariesPivotsOutZeroFixedRow(t *testing.T) {
	cfg := DefaultConfig()
	s := New(3, cfg)
	const x0, x1, aux Var = 0, 1, 2
	s.MarkBasic(aux)
	s.InitializeCell(aux, x0, 1)
	s.InitializeCell(aux, x1, -1)
	s.SetLowerBound(aux, 0)
	s.SetUpperBound(aux, 0)

	s.assign[x0] = 4
	s.assign[aux] = 4 // simulate the initial update leaving a nonzero residual

	require.Nil(t, s.eliminateAuxiliaries())

	assert.False(t, s.tab.activeColumn(int(aux)))
	assert.Equal(t, 0.0, s.assign[aux])
}

func TestEliminateAuxiliariesSkipsNonZeroFixedRows(t *testing.T) {
	cfg := DefaultConfig()
	s := New(2, cfg)
	const x0, r Var = 0, 1
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.SetLowerBound(r, 2)
	s.SetUpperBound(r, 2)

	require.Nil(t, s.eliminateAuxiliaries())

	assert.True(t, s.basic[r])
	assert.InDelta(t, -1, s.tab.cell(int(r), int(r)), 1e-12)
}

func TestMakeAllBoundsFiniteFailsOnMultipleInfiniteVars(t *testing.T) {
	cfg := DefaultConfig()
	s := New(3, cfg)
	const x0, x1, r Var = 0, 1, 2
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.InitializeCell(r, x1, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 0)
	// x0 and x1 both left fully unbounded: two non-finite-bound variables.

	err := s.makeAllBoundsFinite()
	require.NotNil(t, err)
	assert.Equal(t, MultipleInfiniteVarsOnRow, err.Kind)
}

func TestTightenRowDerivesNonBasicBoundFromOthers(t *testing.T) {
	cfg := DefaultConfig()
	s := New(3, cfg)
	const x0, x1, r Var = 0, 1, 2
	s.MarkBasic(r)
	s.InitializeCell(r, x0, 1)
	s.InitializeCell(r, x1, 1)
	s.SetLowerBound(r, 0)
	s.SetUpperBound(r, 0)
	s.SetLowerBound(x0, 0)
	s.SetUpperBound(x0, 3)

	require.Nil(t, s.makeAllBoundsFinite())

	// r = x0+x1 = 0 and x0 in [0,3] forces x1 in [-3,0].
	assert.InDelta(t, -3, s.bounds.lbValue(x1), 1e-9)
	assert.InDelta(t, 0, s.bounds.ubValue(x1), 1e-9)
}

func TestTightenFullConvergesOverMultipleRows(t *testing.T) {
	cfg := DefaultConfig()
	s := New(4, cfg)
	const x0, x1, r0, r1 Var = 0, 1, 2, 3
	s.MarkBasic(r0)
	s.InitializeCell(r0, x0, 1)
	s.SetLowerBound(r0, 1)
	s.SetUpperBound(r0, 1)

	s.MarkBasic(r1)
	s.InitializeCell(r1, x0, 1)
	s.InitializeCell(r1, x1, 1)
	s.SetLowerBound(r1, 1)
	s.SetUpperBound(r1, 1)

	require.Nil(t, s.makeAllBoundsFinite())
	require.Nil(t, s.tightenFull())

	assert.InDelta(t, 1, s.bounds.lbValue(x0), 1e-9)
	assert.InDelta(t, 1, s.bounds.ubValue(x0), 1e-9)
	assert.InDelta(t, 0, s.bounds.lbValue(x1), 1e-9)
	assert.InDelta(t, 0, s.bounds.ubValue(x1), 1e-9)
}
