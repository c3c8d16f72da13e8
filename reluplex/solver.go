package reluplex

import (
	"time"

	"github.com/crillab/reluplex/logger"
)

// Stats carries the running counters kept beyond the six columns the
// final-statistics CSV exposes (spec §6); they are useful for diagnostics
// and tests even though only a subset is ever persisted.
type Stats struct {
	Splits                    int
	Merges                    int
	Pivots                    int
	OracleCalls               int
	OracleIterations          int
	EliminatedAuxiliaries     int
	AlmostBrokenPairCount     int
	AlmostBrokenPairFixed     int
	MaxStackDepth             int
	VisitedStates             int
	TotalMillis               int64
}

// Result is what Solve returns: a status plus the timing and stack
// statistics the CSV writer records.
type Result struct {
	Status   Status
	Elapsed  time.Duration
	Stats    Stats
}

// Initialize runs preprocessing: initial slack allocation for ReLU pairs
// (when Config.Slacks enables it), the initial variable-update, auxiliary
// elimination, make-all-bounds-finite, a full bound-tightening pass, and a
// preprocessed-backup capture. Solve calls it if the caller has not; calls
// after the first successful one are no-ops.
func (s *Solver) Initialize() *Error {
	if s.initialized {
		return nil
	}

	s.allocateSlacks()
	s.heap = newViolationHeap(s.relus.attempts)
	s.stack = newDecisionStack()

	for v := 0; v < s.n+s.extra; v++ {
		if err := s.bounds.checkInvariant(Var(v)); err != nil {
			return err
		}
	}

	s.initialUpdate()

	if err := s.eliminateAuxiliaries(); err != nil {
		return err
	}
	if err := s.makeAllBoundsFinite(); err != nil {
		return err
	}
	if err := s.tightenFull(); err != nil {
		return err
	}
	if s.cfg.EliminateAlmostBrokenRelus {
		s.eliminateAlmostBrokenRelus()
	}

	s.captureBackup()
	s.initialized = true
	return nil
}

// initialUpdate settles every non-basic variable at a bound-respecting
// value (its finite lower bound, else its finite upper bound, else zero)
// and propagates the resulting deltas into the basic rows, per spec §2's
// "initial variable-update" step. Auxiliary elimination runs right after
// and forces any residual this leaves on a fixed-at-zero row back to zero.
func (s *Solver) initialUpdate() {
	for v := 0; v < s.n+s.extra; v++ {
		nb := Var(v)
		if s.basic[nb] {
			continue
		}
		var target float64
		if lo := s.bounds.lower[nb]; lo.finite {
			target = lo.value
		} else if hi := s.bounds.upper[nb]; hi.finite {
			target = hi.value
		}
		if delta := target - s.assign[nb]; !s.isZero(delta) {
			s.update(nb, delta, true)
		}
	}
}

// allocateSlacks appends column slacks s_k = f_k - b_k for every active
// ReLU pair when Config.Slacks is RowAndColumnSlack, per spec §3/§9. The
// row-only mode named in the original Open Question is dropped; see
// DESIGN.md.
func (s *Solver) allocateSlacks() {
	if s.cfg.Slacks != RowAndColumnSlack {
		return
	}
	for _, pair := range s.relus.pairs() {
		b, f := pair[0], pair[1]
		slack := Var(s.n + s.extra)
		s.extra++
		s.growTo(s.n + s.extra)

		s.tab.addEntry(int(slack), int(slack), -1)
		s.tab.addEntry(int(slack), int(f), 1)
		s.tab.addEntry(int(slack), int(b), -1)
		s.basic[slack] = true
		s.bounds.setLower(slack, 0, 0)

		if hi, lo := s.bounds.ub(f), s.bounds.lb(b); hi.finite && lo.finite {
			s.bounds.setUpper(slack, hi.value-lo.value, 0)
		}
		s.relus.slackOf[f] = slack
	}
}

// growTo extends every per-variable slice to accommodate newSize variables.
func (s *Solver) growTo(newSize int) {
	for len(s.assign) < newSize {
		s.assign = append(s.assign, 0)
		s.basic = append(s.basic, false)
		s.names = append(s.names, "")
	}
	if newSize > s.bounds.size() {
		s.bounds.growTo(newSize)
	}
	if newSize > s.tab.numVars() {
		s.tab.growTo(newSize)
	}
}

// eliminateAlmostBrokenRelus rounds down a near-zero active upper bound on
// f to exactly zero and dissolves as SPLIT, per spec §8's boundary
// behavior: "if 0 < ub(f) <= alpha then the solver may set ub(f)=0 and
// dissolve."
func (s *Solver) eliminateAlmostBrokenRelus() {
	for _, pair := range s.relus.pairs() {
		b, f := pair[0], pair[1]
		if s.relus.isDissolved(f) {
			continue
		}
		hi := s.bounds.upper[f]
		if hi.finite && hi.value > 0 && hi.value <= s.cfg.AlmostBrokenMargin {
			s.stats.AlmostBrokenPairCount++
			if err := s.updateUpper(f, 0, hi.level); err == nil {
				s.stats.AlmostBrokenPairFixed++
			}
			_ = b
		}
	}
}

// Solve runs the driver loop of spec §2: compute statuses; if everything
// is in bounds and every ReLU holds, SAT; else fix out-of-bounds basics via
// the LP oracle, or repair/case-split a broken ReLU. Cooperative
// cancellation is polled between iterations.
func (s *Solver) Solve() Result {
	start := nowFunc()
	if !s.initialized {
		if err := s.Initialize(); err != nil {
			if res, done := s.handleError(err, start); done {
				return res
			}
			return s.finish(Err, start)
		}
	}

	for {
		if s.quitRequested() {
			return s.finish(NotDone, start)
		}

		s.progressCalls++
		if s.cfg.UseDegradationChecking && s.cfg.DegradationCheckPeriod > 0 &&
			s.progressCalls%s.cfg.DegradationCheckPeriod == 0 {
			if d := s.checkDegradation(); d > s.cfg.MaxAllowedDegradation {
				l := logger.Logger()
				l.Warn().Float64("degradation", d).
					Msg("reluplex: tableau degradation exceeded threshold, restoring from backup")
				s.restoreFromBackup(false)
				continue
			}
		}

		oob := s.outOfBoundsBasics()
		if len(oob) == 0 && s.allReluSatisfied() {
			return s.finish(Sat, start)
		}

		if len(oob) > 0 {
			s.stats.OracleCalls++
			sat, err := s.fixOutOfBounds()
			if err != nil {
				if res, done := s.handleError(err, start); done {
					return res
				}
				continue
			}
			if !sat {
				return s.finish(Unsat, start)
			}
			continue
		}

		b, f, ok := s.pickBrokenRelu()
		if !ok {
			return s.finish(Sat, start)
		}
		if err := s.notifyBrokenRelu(f); err != nil {
			if res, done := s.handleError(err, start); done {
				return res
			}
			continue
		}
		if err := s.repairRelu(b, f); err != nil {
			if res, done := s.handleError(err, start); done {
				return res
			}
			continue
		}
	}
}

// handleError dispatches an *Error raised anywhere in the main loop.
// err.Kind.isFatal() decides the split: InvariantViolation backjumps,
// StackEmpty is terminal UNSAT, SolverFailed has already been recovered by
// restoreFromBackup at its call site; every fatal kind stops the loop with
// status Err. Returns (result, true) when the loop must stop.
func (s *Solver) handleError(err *Error, start time.Time) (Result, bool) {
	if err.Kind.isFatal() {
		l := logger.Logger()
		l.Error().Str("kind", err.Kind.String()).Str("context", err.Context).Msg("reluplex: fatal solver error")
		return s.finish(Err, start), true
	}
	switch err.Kind {
	case InvariantViolation:
		bjErr := s.popToLevel(err.Level)
		if bjErr == nil {
			return Result{}, false
		}
		if bjErr.Kind == StackEmpty {
			return s.finish(Unsat, start), true
		}
		return s.handleError(bjErr, start)
	case StackEmpty:
		return s.finish(Unsat, start), true
	default:
		return Result{}, false
	}
}

func (s *Solver) finish(status Status, start time.Time) Result {
	s.stats.MaxStackDepth = s.stack.maxDepth
	s.stats.VisitedStates = s.stack.visited
	elapsed := nowFunc().Sub(start)
	s.stats.TotalMillis = elapsed.Milliseconds()
	return Result{Status: status, Elapsed: elapsed, Stats: s.stats}
}

// nowFunc is a seam for deterministic testing.
var nowFunc = time.Now
