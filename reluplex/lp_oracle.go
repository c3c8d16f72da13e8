package reluplex

// oracleOutcomeKind is one of the three outcome variants the LP oracle
// contract allows, per spec §4.5 / §9's Design Notes: the oracle is
// consumed through a narrow abstraction so any embedded LP — or, as here, a
// from-scratch revised simplex — can sit behind it.
type oracleOutcomeKind int

const (
	oracleSolution oracleOutcomeKind = iota
	oracleNoSolution
	oracleFail
)

type oracleOutcome struct {
	kind       oracleOutcomeKind
	iterations int
}

const maxOracleIterations = 20000

// runOracle drives every out-of-bounds basic variable into its bounds by
// bounded-variable primal simplex, operating directly on the live tableau.
// It implements the three callback capabilities inline: a row-ratio bound
// hook (tightenRow on the row the pivot just re-derived), an iteration
// counter (Stats.OracleIterations), and a ReLU-repair hook (flipReluPartner
// below) capped by a per-variable flip counter to avoid cycling.
func (s *Solver) runOracle() (oracleOutcome, *Error) {
	flips := make(map[Var]int)

	for iter := 0; iter < maxOracleIterations; iter++ {
		s.stats.OracleIterations++

		oob := s.outOfBoundsBasics()
		if len(oob) == 0 {
			return oracleOutcome{kind: oracleSolution, iterations: iter}, nil
		}
		row := oob[0]
		needIncrease := s.status(row) == BelowLB

		entering, stepSign, found := s.findEnteringColumn(row, needIncrease)
		if !found {
			return oracleOutcome{kind: oracleNoSolution}, nil
		}

		delta, leaving, err := s.ratioTest(row, entering, stepSign)
		if err != nil {
			return oracleOutcome{kind: oracleFail}, err
		}

		s.update(entering, delta, false)

		if leaving != entering {
			if perr := s.pivot(entering, leaving); perr != nil {
				return oracleOutcome{kind: oracleFail}, perr
			}
			if _, _, terr := s.tightenRow(entering); terr != nil {
				return oracleOutcome{kind: oracleFail}, terr
			}
		} else {
			s.flipReluPartner(entering, flips)
		}
	}
	return oracleOutcome{kind: oracleFail}, nil
}

// findEnteringColumn scans row's non-basic coefficients (in column order,
// i.e. Bland's rule) for one whose movement, respecting its own bounds,
// moves x_row in the needed direction.
func (s *Solver) findEnteringColumn(row Var, needIncrease bool) (entering Var, stepSign float64, ok bool) {
	type cand struct {
		col  int
		coef float64
	}
	var cands []cand
	s.tab.rowEntries(int(row), func(col int, value float64) {
		if col == int(row) {
			return
		}
		cands = append(cands, cand{col, value})
	})

	best := -1
	var bestCoef, bestSign float64
	for _, c := range cands {
		v := Var(c.col)
		var sign float64
		if (c.coef > 0) == needIncrease {
			sign = 1
		} else {
			sign = -1
		}
		if !s.canMove(v, sign) {
			continue
		}
		if best == -1 || c.col < best {
			best, bestCoef, bestSign = c.col, c.coef, sign
		}
	}
	if best == -1 {
		return 0, 0, false
	}
	_ = bestCoef
	return Var(best), bestSign, true
}

// canMove reports whether non-basic v has room to move in direction sign
// (+1 increase, -1 decrease) without leaving its own bounds.
func (s *Solver) canMove(v Var, sign float64) bool {
	st := s.status(v)
	if st == Fixed {
		return false
	}
	if sign > 0 {
		return st != AtUB
	}
	return st != AtLB
}

// ratioTest computes how far entering may move in direction stepSign
// before either it reaches its own bound, row reaches its violated bound,
// or some other currently-in-bounds basic row is pushed to a bound; the
// binding constraint determines delta and the leaving variable (which is
// entering itself when no pivot is needed this step).
func (s *Solver) ratioTest(row, entering Var, stepSign float64) (delta float64, leaving Var, err *Error) {
	coefRow := s.tab.cell(int(row), int(entering))

	maxT, leaving := s.ownBoundDistance(entering, stepSign), entering

	target := s.bounds.lower[row].value
	if s.status(row) == AboveUB {
		target = s.bounds.upper[row].value
	}
	rowT := (target - s.assign[row]) / (coefRow * stepSign)
	if rowT < maxT {
		maxT, leaving = rowT, row
	}

	s.tab.colEntries(int(entering), func(r int, coefR float64) {
		if r == int(row) || !s.basic[Var(r)] {
			return
		}
		if s.isZero(coefR) {
			return
		}
		st := s.status(Var(r))
		if st.OutOfBounds() {
			return
		}
		dirUp := (coefR * stepSign) > 0
		var bnd bound
		if dirUp {
			bnd = s.bounds.upper[r]
		} else {
			bnd = s.bounds.lower[r]
		}
		if !bnd.finite {
			return
		}
		t := (bnd.value - s.assign[r]) / (coefR * stepSign)
		if t < maxT {
			maxT, leaving = t, Var(r)
		}
	})

	if maxT < 0 {
		maxT = 0
	}
	return stepSign * maxT, leaving, nil
}

// ownBoundDistance returns how far v may move in direction sign before
// hitting its own bound, or +Inf if unbounded that way.
func (s *Solver) ownBoundDistance(v Var, sign float64) float64 {
	if sign > 0 {
		if hi := s.bounds.upper[v]; hi.finite {
			return hi.value - s.assign[v]
		}
		return posInf
	}
	if lo := s.bounds.lower[v]; lo.finite {
		return s.assign[v] - lo.value
	}
	return posInf
}

const posInf = 1e300

// flipReluPartner implements the ReLU-repair hook: when v has just settled
// at one of its own bounds, its partner is also non-basic and the active
// pair is broken, update the partner to the value that restores
// f = max(0,b). A per-variable flip counter caps interventions to avoid
// cycling.
func (s *Solver) flipReluPartner(v Var, flips map[Var]int) {
	p, ok := s.relus.partner(v)
	if !ok || s.basic[p] {
		return
	}
	if flips[v] > 4 {
		return
	}
	b, f := s.orderPair(v, p)
	if s.relus.isDissolved(f) {
		return
	}
	if !s.reluBroken(b, f) {
		return
	}
	flips[v]++
	if p == f {
		s.update(f, nonNegative(s.assign[b])-s.assign[f], true)
	} else {
		s.update(b, s.assign[f]-s.assign[b], true)
	}
}

func nonNegative(a float64) float64 {
	if a > 0 {
		return a
	}
	return 0
}

// importSolution runs after oracleSolution: it resets the failure streak and
// merges any active ReLU pair whose b has a finite lower bound >= 0. The
// caller runs bound tightening afterwards.
func (s *Solver) importSolution(o oracleOutcome) {
	s.consecutiveOracleFails = 0
	for _, pair := range s.relus.pairs() {
		b, f := pair[0], pair[1]
		if s.relus.isDissolved(f) {
			continue
		}
		if s.bounds.lower[b].value >= 0 && s.bounds.lower[b].finite {
			_ = s.mergePair(b, f, s.bounds.lower[b].level)
		}
	}
}

// captureBackup snapshots the post-preprocessing state for numerical-
// failure recovery.
func (s *Solver) captureBackup() {
	tabCopy := newTableau(s.n+s.extra, s.cfg.EpsilonZero)
	s.tab.backupInto(tabCopy)
	assignCopy := make([]float64, len(s.assign))
	copy(assignCopy, s.assign)
	basicCopy := make([]bool, len(s.basic))
	copy(basicCopy, s.basic)

	s.backup = &preprocessedBackup{
		tab:    tabCopy,
		bounds: s.bounds.snapshot(),
		assign: assignCopy,
		basic:  basicCopy,
		relus:  s.relus.snapshot(),
	}
}

// restoreFromBackup restores the preprocessed backup. When keepBasis is
// true (failure streak is short), only bounds/assignment/dissolutions are
// restored and the current tableau and basic set are kept; otherwise the
// tableau and basic set are rebuilt from the backup too.
func (s *Solver) restoreFromBackup(keepBasis bool) {
	if s.backup == nil {
		return
	}
	s.bounds.restore(s.backup.bounds)
	copy(s.assign, s.backup.assign)
	s.relus.restore(s.backup.relus)

	if !keepBasis {
		fresh := newTableau(s.n+s.extra, s.cfg.EpsilonZero)
		s.backup.tab.backupInto(fresh)
		s.tab = fresh
		copy(s.basic, s.backup.basic)
	}
}
