package reluplex

import "math"

// updateUpper applies a new candidate upper bound beta at level lvl to v,
// honoring the ReLU bound-update contract (spec §4.4) when v participates
// in an active (non-dissolved) pair. Returns an *Error on invariant
// violation; returns nil and does nothing if beta is not tighter than the
// current bound.
func (s *Solver) updateUpper(v Var, beta float64, lvl Level) *Error {
	if cur := s.bounds.upper[v]; cur.finite && beta >= cur.value-s.cfg.EpsilonZero {
		return nil
	}

	if p, ok := s.relus.partner(v); ok && s.isActiveRelu(v, p) {
		b, f := s.orderPair(v, p)
		if beta > 0 {
			if err := s.applyUpper(b, beta, lvl); err != nil {
				return err
			}
			if err := s.applyUpper(f, beta, lvl); err != nil {
				return err
			}
			return nil
		}
		if v == f && beta < 0 {
			return violation(lvl, "negative upper bound asserted on ReLU output "+f.String())
		}
		// beta <= 0: dissolve as SPLIT. f fixed to 0, b gets beta as ub.
		if err := s.applyUpper(f, 0, lvl); err != nil {
			return err
		}
		if err := s.applyLower(f, 0, lvl); err != nil {
			return err
		}
		if err := s.applyUpper(b, beta, lvl); err != nil {
			return err
		}
		s.relus.dissolve(f, Split)
		return nil
	}

	return s.applyUpper(v, beta, lvl)
}

// updateLower is the symmetric operation for lower bounds.
func (s *Solver) updateLower(v Var, beta float64, lvl Level) *Error {
	if cur := s.bounds.lower[v]; cur.finite && beta <= cur.value+s.cfg.EpsilonZero {
		return nil
	}

	if p, ok := s.relus.partner(v); ok && s.isActiveRelu(v, p) {
		b, f := s.orderPair(v, p)
		if beta >= 0 {
			if err := s.applyLower(b, beta, lvl); err != nil {
				return err
			}
			if err := s.applyLower(f, beta, lvl); err != nil {
				return err
			}
			return s.mergePair(b, f, lvl)
		}
		// beta < 0: may only apply to b; f untouched.
		if v == f {
			return nil
		}
		return s.applyLower(b, beta, lvl)
	}

	return s.applyLower(v, beta, lvl)
}

func (s *Solver) applyUpper(v Var, beta float64, lvl Level) *Error {
	s.bounds.upper[v] = bound{finite: true, value: beta, level: lvl}
	return s.bounds.checkInvariant(v)
}

func (s *Solver) applyLower(v Var, beta float64, lvl Level) *Error {
	s.bounds.lower[v] = bound{finite: true, value: beta, level: lvl}
	return s.bounds.checkInvariant(v)
}

// orderPair returns (b,f) regardless of whether v or p was passed first.
func (s *Solver) orderPair(v, p Var) (Var, Var) {
	if s.relus.isB(v) {
		return v, p
	}
	return p, v
}

func (s *Solver) isActiveRelu(v, p Var) bool {
	_, f := s.orderPair(v, p)
	return !s.relus.isDissolved(f)
}

// mergePair commits f's pair to the active branch: lb(f)>=0 already holds
// by the caller. The column-transfer mechanics require both b and f to be
// non-basic first (spec §4.4: "after both become non-basic"), so a basic
// partner is pivoted out before b's tableau column is folded into f's.
func (s *Solver) mergePair(b, f Var, lvl Level) *Error {
	if s.relus.kindOf(f) == Merge {
		return nil
	}
	if s.basic[b] {
		col, ok := s.findPivotColumn(b)
		if !ok {
			return fatal(CannotMakeNonBasic, "no eligible pivot column to unbasic ReLU b-variable "+b.String())
		}
		if err := s.pivot(col, b); err != nil {
			return err
		}
	}
	if s.basic[f] {
		col, ok := s.findPivotColumn(f)
		if !ok {
			return fatal(CannotMakeNonBasic, "no eligible pivot column to unbasic ReLU f-variable "+f.String())
		}
		if err := s.pivot(col, f); err != nil {
			return err
		}
	}

	lo := math.Max(s.bounds.lower[b].value, s.bounds.lower[f].value)
	hi := math.Min(s.bounds.upper[b].value, s.bounds.upper[f].value)
	target := s.assign[f]
	if target < lo {
		target = lo
	}
	if target > hi {
		target = hi
	}
	s.assign[b] = target
	s.assign[f] = target

	s.tab.addColumnEraseSource(int(b), int(f))
	s.relus.dissolve(f, Merge)
	return s.eliminateSlackOnMerge(f, lvl)
}

// eliminateSlackOnMerge drops pair f's column-slack variable (if one was
// allocated, spec §4.3's slack s_k = f_k - b_k) once the pair merges: with b
// and f identified, s_k is pinned at zero and carries no further
// information, so it is removed the same way a preprocessing-time
// fixed-zero row is in eliminateAuxiliaries.
func (s *Solver) eliminateSlackOnMerge(f Var, lvl Level) *Error {
	slack, ok := s.relus.slackOf[f]
	if !ok {
		return nil
	}
	if err := s.applyLower(slack, 0, lvl); err != nil {
		return err
	}
	if err := s.applyUpper(slack, 0, lvl); err != nil {
		return err
	}

	if !s.basic[slack] {
		if delta := -s.assign[slack]; !s.isZero(delta) {
			s.update(slack, delta, true)
		}
		s.tab.eraseColumn(int(slack))
		s.stats.EliminatedAuxiliaries++
		return nil
	}

	pivotCol := -1
	s.tab.rowEntries(int(slack), func(col int, value float64) {
		if col == int(slack) || pivotCol != -1 {
			return
		}
		if !s.isZero(value) {
			pivotCol = col
		}
	})
	if pivotCol == -1 {
		s.tab.eraseColumn(int(slack))
		s.stats.EliminatedAuxiliaries++
		return nil
	}
	if err := s.pivot(Var(pivotCol), slack); err != nil {
		return err
	}
	if delta := -s.assign[slack]; !s.isZero(delta) {
		s.update(slack, delta, true)
	}
	s.tab.eraseColumn(int(slack))
	s.stats.EliminatedAuxiliaries++
	return nil
}

// tightenPass performs one pass of interval propagation over every basic
// row, per spec §4.2. It returns (changed, err): changed is true if any
// bound was tightened; a pair-unification triggered by a lower-bound update
// aborts the pass early (the caller is expected to restart).
func (s *Solver) tightenPass() (bool, *Error) {
	changed := false
	for b := 0; b < s.n+s.extra; b++ {
		if !s.basic[Var(b)] {
			continue
		}
		ch, restart, err := s.tightenRow(Var(b))
		if err != nil {
			return changed, err
		}
		changed = changed || ch
		if restart {
			return true, nil
		}
	}
	return changed, nil
}

// tightenRow derives tighter bounds on every non-basic variable appearing
// in basic row b's equation x_b = Σ c_j·x_j, by isolating each variable in
// turn and summing the contributions of the others' bounds.
func (s *Solver) tightenRow(b Var) (changed bool, restart bool, err *Error) {
	type term struct {
		v Var
		c float64
	}
	var terms []term
	s.tab.rowEntries(int(b), func(col int, value float64) {
		if col == int(b) {
			return
		}
		terms = append(terms, term{Var(col), value})
	})

	// Derive a bound on the basic variable itself: x_b = Σ c_j·x_j, so b's
	// own range follows directly from summing the other terms' bounds with
	// no extra isolation step.
	{
		var maxSum, minSum float64
		maxLevel, minLevel := Level(0), Level(0)
		maxFinite, minFinite := true, true
		for _, t := range terms {
			if s.isZero(t.c) {
				continue
			}
			if t.c > 0 {
				if hi := s.bounds.ub(t.v); hi.finite {
					maxSum += t.c * hi.value
					if hi.level > maxLevel {
						maxLevel = hi.level
					}
				} else {
					maxFinite = false
				}
				if lo := s.bounds.lb(t.v); lo.finite {
					minSum += t.c * lo.value
					if lo.level > minLevel {
						minLevel = lo.level
					}
				} else {
					minFinite = false
				}
			} else {
				if lo := s.bounds.lb(t.v); lo.finite {
					maxSum += t.c * lo.value
					if lo.level > maxLevel {
						maxLevel = lo.level
					}
				} else {
					maxFinite = false
				}
				if hi := s.bounds.ub(t.v); hi.finite {
					minSum += t.c * hi.value
					if hi.level > minLevel {
						minLevel = hi.level
					}
				} else {
					minFinite = false
				}
			}
		}
		if maxFinite {
			if cur := s.bounds.upper[b]; !cur.finite || maxSum < cur.value-s.cfg.EpsilonZero {
				if e := s.updateUpper(b, maxSum, maxLevel); e != nil {
					return changed, false, e
				}
				changed = true
				if s.relus.isB(b) || s.relus.isF(b) {
					return changed, true, nil
				}
			}
		}
		if minFinite {
			if cur := s.bounds.lower[b]; !cur.finite || minSum > cur.value+s.cfg.EpsilonZero {
				if e := s.updateLower(b, minSum, minLevel); e != nil {
					return changed, false, e
				}
				changed = true
				if s.relus.isB(b) || s.relus.isF(b) {
					return changed, true, nil
				}
			}
		}
	}

	for _, target := range terms {
		v, cv := target.v, target.c
		if s.isZero(cv) {
			continue
		}

		// x_v = (1/(-cv)) * (sum_{j!=v} c_j*x_j - x_b)
		var maxSum, minSum float64
		maxLevel, minLevel := Level(0), Level(0)
		maxFinite, minFinite := true, true

		accumulate := func(c float64, lo, hi bound) {
			if c > 0 {
				if hi.finite {
					maxSum += c * hi.value
					if hi.level > maxLevel {
						maxLevel = hi.level
					}
				} else {
					maxFinite = false
				}
				if lo.finite {
					minSum += c * lo.value
					if lo.level > minLevel {
						minLevel = lo.level
					}
				} else {
					minFinite = false
				}
			} else if c < 0 {
				if lo.finite {
					maxSum += c * lo.value
					if lo.level > maxLevel {
						maxLevel = lo.level
					}
				} else {
					maxFinite = false
				}
				if hi.finite {
					minSum += c * hi.value
					if hi.level > minLevel {
						minLevel = hi.level
					}
				} else {
					minFinite = false
				}
			}
		}

		for _, t := range terms {
			if t.v == v {
				continue
			}
			accumulate(t.c, s.bounds.lb(t.v), s.bounds.ub(t.v))
		}
		// The basic's own -x_b term: coefficient -1 on x_b itself.
		accumulate(-1, s.bounds.lb(b), s.bounds.ub(b))

		inv := -1.0 / cv
		var candMax, candMin float64
		var candMaxFinite, candMinFinite bool
		if inv > 0 {
			candMax, candMaxFinite = maxSum*inv, maxFinite
			candMin, candMinFinite = minSum*inv, minFinite
		} else {
			candMax, candMaxFinite = minSum*inv, minFinite
			candMin, candMinFinite = maxSum*inv, maxFinite
		}
		lvl := maxLevel
		if minLevel > lvl {
			lvl = minLevel
		}

		if candMaxFinite {
			if cur := s.bounds.upper[v]; !cur.finite || candMax < cur.value-s.cfg.EpsilonZero {
				if e := s.updateUpper(v, candMax, lvl); e != nil {
					return changed, false, e
				}
				changed = true
				if s.relus.isB(v) || s.relus.isF(v) {
					return changed, true, nil
				}
			}
		}
		if candMinFinite {
			if cur := s.bounds.lower[v]; !cur.finite || candMin > cur.value+s.cfg.EpsilonZero {
				if e := s.updateLower(v, candMin, lvl); e != nil {
					return changed, false, e
				}
				changed = true
				if s.relus.isB(v) || s.relus.isF(v) {
					return changed, true, nil
				}
			}
		}
	}
	return changed, false, nil
}

// tightenFull iterates tightenPass until a pass learns nothing.
func (s *Solver) tightenFull() *Error {
	for {
		changed, err := s.tightenPass()
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
	}
}

// makeAllBoundsFinite derives a finite bound for the sole non-finite-bound
// variable on each basic row, failing if a row has two or more.
func (s *Solver) makeAllBoundsFinite() *Error {
	for b := 0; b < s.n+s.extra; b++ {
		if !s.basic[Var(b)] {
			continue
		}
		if err := s.makeRowBoundsFinite(Var(b)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) makeRowBoundsFinite(b Var) *Error {
	var nonFinite []Var
	var cols []Var
	var coefs []float64
	s.tab.rowEntries(int(b), func(col int, value float64) {
		if col == int(b) {
			return
		}
		v := Var(col)
		cols = append(cols, v)
		coefs = append(coefs, value)
		if !s.bounds.lower[v].finite || !s.bounds.upper[v].finite {
			nonFinite = append(nonFinite, v)
		}
	})
	if !s.bounds.lower[b].finite || !s.bounds.upper[b].finite {
		nonFinite = append(nonFinite, b)
	}

	if len(nonFinite) == 0 {
		return nil
	}
	if len(nonFinite) > 1 {
		return fatal(MultipleInfiniteVarsOnRow, "row "+b.String()+" has multiple non-finite-bound variables")
	}

	// tightenRow stops after the first bound it changes on a ReLU variable,
	// so repeat it until the row settles and the sole target has both bounds.
	for {
		_, restart, err := s.tightenRow(b)
		if err != nil || !restart {
			return err
		}
	}
}

// eliminateAuxiliaries pivots out every initially basic variable that is
// fixed at exactly zero, per spec §4.2: the elimination is unconditional on
// this class of variable, regardless of what value the initial update left
// on its row (that value is exactly what the pivot and subsequent
// eraseColumn correct).
func (s *Solver) eliminateAuxiliaries() *Error {
	for b := 0; b < s.n+s.extra; b++ {
		v := Var(b)
		if !s.basic[v] {
			continue
		}
		lo, hi := s.bounds.lower[v], s.bounds.upper[v]
		if !(lo.finite && hi.finite && lo.value == 0 && hi.value == 0) {
			continue
		}
		pivotCol := -1
		s.tab.rowEntries(int(v), func(col int, value float64) {
			if col == int(v) || pivotCol != -1 {
				return
			}
			if !s.isZero(value) {
				pivotCol = col
			}
		})
		if pivotCol == -1 {
			s.tab.eraseColumn(int(v))
			s.stats.EliminatedAuxiliaries++
			continue
		}
		if err := s.pivot(Var(pivotCol), v); err != nil {
			return err
		}
		// v is now non-basic but pinned at zero; force its assign to match
		// before dropping it from every row's equation, or rows still
		// carrying a non-zero v-term would lose that contribution silently.
		if delta := -s.assign[v]; !s.isZero(delta) {
			s.update(v, delta, true)
		}
		s.tab.eraseColumn(int(v))
		s.stats.EliminatedAuxiliaries++
	}
	return nil
}

func (s *Solver) isZero(v float64) bool {
	return math.Abs(v) <= s.cfg.EpsilonZero
}

// checkDegradation recomputes every preprocessing-time-basic row from the
// preprocessed backup's tableau structure, using the current assignment for
// every term, and returns the largest absolute discrepancy against that
// row's own current assignment. Called periodically from Solve as a
// numerical-safety net (spec §4's "numerical-safety logic").
func (s *Solver) checkDegradation() float64 {
	if s.backup == nil {
		return 0
	}
	var max float64
	for v := 0; v < len(s.backup.basic); v++ {
		if !s.backup.basic[v] {
			continue
		}
		if d := s.rowDegradation(Var(v)); d > max {
			max = d
		}
	}
	return max
}

// rowDegradation computes the discrepancy between row v's preprocessed
// equation, evaluated at the current assignment, and v's own current
// assignment. A ReLU b-variable whose live tableau column has since been
// erased by a merge is read through its surviving f-partner instead, since
// that is the only place its value still lives.
func (s *Solver) rowDegradation(v Var) float64 {
	var recomputed float64
	s.backup.tab.rowEntries(int(v), func(col int, value float64) {
		if col == int(v) {
			return
		}
		recomputed += s.assign[s.mergedLiveVar(Var(col))] * value
	})
	return math.Abs(recomputed - s.assign[s.mergedLiveVar(v)])
}

// mergedLiveVar returns v unchanged unless v is a ReLU b-variable whose
// tableau column was erased by addColumnEraseSource during a merge, in
// which case it returns v's f-partner: b's column no longer carries a value
// of its own once merged, so its partner's live assignment stands in.
func (s *Solver) mergedLiveVar(v Var) Var {
	if s.relus.isB(v) && !s.tab.activeColumn(int(v)) {
		return s.relus.fOf(v)
	}
	return v
}
