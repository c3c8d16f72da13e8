package reluplex

import (
	"math"

	"github.com/crillab/reluplex/logger"
)

// status computes v's VarStatus from A[v] and B[v] with ε_oob.
func (s *Solver) status(v Var) VarStatus {
	a := s.assign[v]
	lo, hi := s.bounds.lower[v], s.bounds.upper[v]
	eps := s.cfg.EpsilonOOB

	if lo.finite && hi.finite && math.Abs(lo.value-hi.value) <= eps {
		return Fixed
	}
	if lo.finite && a < lo.value-eps {
		return BelowLB
	}
	if hi.finite && a > hi.value+eps {
		return AboveUB
	}
	if lo.finite && math.Abs(a-lo.value) <= eps {
		return AtLB
	}
	if hi.finite && math.Abs(a-hi.value) <= eps {
		return AtUB
	}
	return Between
}

// outOfBoundsBasics returns every basic variable whose status is BelowLB or
// AboveUB.
func (s *Solver) outOfBoundsBasics() []Var {
	var out []Var
	for v := 0; v < s.n+s.extra; v++ {
		if s.basic[Var(v)] && s.status(Var(v)).OutOfBounds() {
			out = append(out, Var(v))
		}
	}
	return out
}

// allReluSatisfied reports whether every active ReLU pair currently holds
// f = max(0,b) within ε_oob.
func (s *Solver) allReluSatisfied() bool {
	for _, pair := range s.relus.pairs() {
		b, f := pair[0], pair[1]
		if s.reluBroken(b, f) {
			return false
		}
	}
	return true
}

func (s *Solver) reluBroken(b, f Var) bool {
	eps := s.cfg.EpsilonOOB
	af, ab := s.assign[f], s.assign[b]
	if s.isZero(af) && ab > eps {
		return true
	}
	if af > eps && math.Abs(af-ab) > eps {
		return true
	}
	return false
}

// canAddToNonBasic reports whether adding delta to non-basic v keeps it
// within bounds (within ε_oob).
func (s *Solver) canAddToNonBasic(v Var, delta float64) bool {
	na := s.assign[v] + delta
	lo, hi := s.bounds.lower[v], s.bounds.upper[v]
	eps := s.cfg.EpsilonOOB
	if lo.finite && na < lo.value-eps {
		return false
	}
	if hi.finite && na > hi.value+eps {
		return false
	}
	return true
}

// pivot swaps basic b for non-basic nb, per spec §4.3.
func (s *Solver) pivot(nb, b Var) *Error {
	if !s.basic[b] || s.basic[nb] {
		return fatal(IllegalPivot, "pivot requires a basic row and a non-basic column: "+b.String()+","+nb.String())
	}
	p := s.tab.cell(int(b), int(nb))
	if s.isZero(p) {
		return fatal(IllegalPivot, "pivot column "+nb.String()+" has zero coefficient in row "+b.String())
	}
	l := logger.Logger()
	if math.Abs(p) < s.cfg.EpsilonInstability {
		l.Warn().Str("leaving", b.String()).Str("entering", nb.String()).
			Float64("pivotElement", p).Msg("reluplex: numerically risky pivot")
	}
	l.Debug().Str("leaving", b.String()).Str("entering", nb.String()).Msg("reluplex: pivot")

	scale := -1.0 / p
	s.transplantScaledRow(int(b), int(nb), scale)

	for r := 0; r < s.n+s.extra; r++ {
		if r == int(nb) {
			continue
		}
		c := s.tab.cell(r, int(nb))
		if s.isZero(c) {
			continue
		}
		s.tab.addScaledRow(int(nb), c, r, true, int(nb), 0)
	}

	s.basic[b] = false
	s.basic[nb] = true
	s.stats.Pivots++
	return nil
}

// transplantScaledRow reads srcRow's entries (the leaving basic variable's
// defining equation), scales them, and rewrites them as dstRow (the
// entering variable's new defining equation): row storage is addressed by
// variable number throughout the tableau, so the content must move to
// dstRow's index, not stay at srcRow's. dstRow's own coefficient is forced
// to exactly -1 to cancel floating-point drift.
func (s *Solver) transplantScaledRow(srcRow, dstRow int, scale float64) {
	var cols []int
	var vals []float64
	s.tab.rowEntries(srcRow, func(col int, value float64) {
		cols = append(cols, col)
		vals = append(vals, value*scale)
	})
	s.tab.eraseRow(srcRow)
	for i, c := range cols {
		if c == dstRow {
			continue
		}
		s.tab.addEntry(dstRow, c, vals[i])
	}
	s.tab.addEntry(dstRow, dstRow, -1)
}

// update adds delta to A[v] and propagates through every row in which v
// appears, per spec §4.3. If v is a ReLU variable and ignoreRelu is false,
// it then attempts to restore f=max(0,b) for v's non-basic partner.
func (s *Solver) update(v Var, delta float64, ignoreRelu bool) {
	s.assign[v] += delta
	if s.isZero(s.assign[v]) {
		s.assign[v] = 0
	}
	s.tab.colEntries(int(v), func(row int, coef float64) {
		s.assign[row] += delta * coef
		if s.isZero(s.assign[row]) {
			s.assign[row] = 0
		}
	})

	if ignoreRelu {
		return
	}
	p, ok := s.relus.partner(v)
	if !ok {
		return
	}
	b, f := s.orderPair(v, p)
	if s.basic[p] {
		return
	}
	if !s.reluBroken(b, f) {
		return
	}
	if p == f {
		target := math.Max(0, s.assign[b])
		s.update(f, target-s.assign[f], true)
	} else {
		target := s.assign[f]
		s.update(b, target-s.assign[b], true)
	}
}

// fixOutOfBounds drives every basic variable into bounds via the LP oracle,
// per spec §4.3/§4.5. Returns (sat, err): sat is false when the oracle
// reports NO_SOLUTION for the current branch.
func (s *Solver) fixOutOfBounds() (bool, *Error) {
	oob := s.outOfBoundsBasics()
	if len(oob) == 0 {
		return true, nil
	}

	outcome, err := s.runOracle()
	if err != nil {
		return false, err
	}

	switch outcome.kind {
	case oracleSolution:
		s.importSolution(outcome)
		if err := s.tightenFull(); err != nil {
			return false, err
		}
		return true, nil
	case oracleNoSolution:
		return false, nil
	case oracleFail:
		s.consecutiveOracleFails++
		l := logger.Logger()
		l.Debug().Int("consecutiveFails", s.consecutiveOracleFails).
			Msg("reluplex: LP oracle failed, restoring from backup")
		s.restoreFromBackup(s.consecutiveOracleFails <= 2)
		if s.consecutiveOracleFails >= s.cfg.MaxOracleFailures {
			return false, fatal(ConsecutiveSolverFailures, "LP oracle failed repeatedly")
		}
		return true, nil
	}
	return false, fatal(IllegalPivot, "unreachable oracle outcome")
}
