package reluplex

// pickBrokenRelu returns a currently broken, non-dissolved ReLU pair to
// repair, preferring the pair with the most prior repair attempts (via the
// violation heap) so chronic offenders are case-split sooner. Returns
// ok=false if no pair is broken.
func (s *Solver) pickBrokenRelu() (b, f Var, ok bool) {
	for _, pair := range s.relus.pairs() {
		pb, pf := pair[0], pair[1]
		if s.relus.isDissolved(pf) {
			continue
		}
		if s.reluBroken(pb, pf) {
			if s.heap != nil {
				s.heap.update(pf)
			}
		}
	}
	if s.heap != nil && !s.heap.empty() {
		for s.heap.len() > 0 {
			candidate := s.heap.removeMax()
			b, ok := s.relus.fToB[candidate]
			if !ok {
				continue
			}
			if !s.relus.isDissolved(candidate) && s.reluBroken(b, candidate) {
				return b, candidate, true
			}
		}
	}
	for _, pair := range s.relus.pairs() {
		pb, pf := pair[0], pair[1]
		if !s.relus.isDissolved(pf) && s.reluBroken(pb, pf) {
			return pb, pf, true
		}
	}
	return 0, 0, false
}

// repairRelu fixes one broken pair by updating whichever partner has a
// feasible update available, pivoting a basic partner to non-basic first
// when both are basic, per spec §4.4.
func (s *Solver) repairRelu(b, f Var) *Error {
	if s.basic[b] && s.basic[f] {
		col, ok := s.findPivotColumn(b)
		if !ok {
			return fatal(CannotMakeNonBasic, "no eligible pivot column for ReLU b-variable "+b.String())
		}
		if err := s.pivot(col, b); err != nil {
			return err
		}
	}

	switch {
	case !s.basic[b] && !s.basic[f]:
		target := nonNegative(s.assign[b])
		delta := target - s.assign[f]
		if s.canAddToNonBasic(f, delta) {
			s.update(f, delta, true)
		} else {
			s.update(b, s.assign[f]-s.assign[b], true)
		}
	case s.basic[b] && !s.basic[f]:
		target := nonNegative(s.assign[b])
		s.update(f, target-s.assign[f], true)
	case !s.basic[b] && s.basic[f]:
		s.update(b, s.assign[f]-s.assign[b], true)
	}
	return nil
}

// findPivotColumn returns a non-basic column with a nonzero coefficient in
// row b, excluding the self-cell.
func (s *Solver) findPivotColumn(b Var) (Var, bool) {
	found := -1
	s.tab.rowEntries(int(b), func(col int, value float64) {
		if found != -1 || col == int(b) {
			return
		}
		if s.basic[Var(col)] {
			return
		}
		if !s.isZero(value) {
			found = col
		}
	})
	if found == -1 {
		return 0, false
	}
	return Var(found), true
}
