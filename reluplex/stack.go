package reluplex

import "github.com/crillab/reluplex/logger"

// snapshot is one frame of the leveled decision stack: the triggering
// ReLU output variable f, the direction currently committed (tentative
// until triedAlternative), and a full copy of every piece of mutable
// solver state captured at push time.
type snapshot struct {
	f                Var
	kind             DissolutionKind
	triedAlternative bool

	bounds *boundStore
	assign []float64
	basic  []bool
	relus  *reluSnapshot
	tab    *tableau
}

type decisionStack struct {
	snaps    []*snapshot
	maxDepth int
	visited  int
}

func newDecisionStack() *decisionStack {
	return &decisionStack{}
}

func (d *decisionStack) depth() Level { return Level(len(d.snaps)) }

func opposite(k DissolutionKind) DissolutionKind {
	if k == Merge {
		return Split
	}
	return Merge
}

// captureSnapshot deep-copies all mutable state ahead of a case-split on f.
func (s *Solver) captureSnapshot(f Var) *snapshot {
	assignCopy := make([]float64, len(s.assign))
	copy(assignCopy, s.assign)
	basicCopy := make([]bool, len(s.basic))
	copy(basicCopy, s.basic)

	tabCopy := newTableau(s.n+s.extra, s.cfg.EpsilonZero)
	s.tab.backupInto(tabCopy)

	return &snapshot{
		f:      f,
		bounds: s.bounds.snapshot(),
		assign: assignCopy,
		basic:  basicCopy,
		relus:  s.relus.snapshot(),
		tab:    tabCopy,
	}
}

// restoreSnapshot overwrites every piece of solver state from snap, without
// consuming it: snap remains valid for a later restore (needed when the
// same frame's alternative branch is tried next).
func (s *Solver) restoreSnapshot(snap *snapshot) {
	s.bounds.restore(snap.bounds)
	copy(s.assign, snap.assign)
	copy(s.basic, snap.basic)
	s.relus.restore(snap.relus)

	fresh := newTableau(s.n+s.extra, s.cfg.EpsilonZero)
	snap.tab.backupInto(fresh)
	s.tab = fresh
}

// notifyBrokenRelu increments f's repair-attempt counter; once it reaches
// Config.ReluRepairThreshold, it triggers a case-split via dissolveReluOn.
func (s *Solver) notifyBrokenRelu(f Var) *Error {
	attempts := s.relus.noteRepairAttempt(f)
	if attempts < s.cfg.ReluRepairThreshold {
		return nil
	}
	s.relus.resetAttempts(f)
	return s.dissolveReluOn(f)
}

// dissolveReluOn case-splits on a chronically broken ReLU pair, per spec
// §4.6: snapshot, choose MERGE if currently active (A[f]>0) else SPLIT,
// push, and apply.
func (s *Solver) dissolveReluOn(f Var) *Error {
	snap := s.captureSnapshot(f)

	kind := Split
	if s.assign[f] > s.cfg.EpsilonOOB {
		kind = Merge
	}
	snap.kind = kind

	s.stack.snaps = append(s.stack.snaps, snap)
	if s.stack.depth() > Level(s.stack.maxDepth) {
		s.stack.maxDepth = int(s.stack.depth())
	}
	s.stack.visited++
	newLevel := s.stack.depth()

	l := logger.Logger()
	l.Debug().Str("relu", f.String()).Str("kind", kind.String()).
		Int("level", int(newLevel)).Msg("reluplex: case split")

	if kind == Merge {
		s.stats.Merges++
		return s.updateLower(f, 0, newLevel)
	}
	s.stats.Splits++
	return s.updateUpper(f, 0, newLevel)
}

// popToLevel implements nonchronological backjumping: unwind the stack
// until it reaches target, then try the untried alternative direction at
// that level. If target's frame has already tried both directions, unwind
// one level further and repeat. target<=0 or an empty stack means the
// conflict is unconditional: StackEmpty (terminal UNSAT).
func (s *Solver) popToLevel(target Level) *Error {
	if target <= 0 {
		return fatal(StackEmpty, "conflict does not depend on any open decision")
	}
	for {
		if len(s.stack.snaps) == 0 {
			return fatal(StackEmpty, "decision stack exhausted")
		}
		top := s.stack.snaps[len(s.stack.snaps)-1]
		curLevel := s.stack.depth()

		if curLevel < target {
			return fatal(StackEmpty, "backjump target above current depth")
		}

		if curLevel == target && !top.triedAlternative {
			s.restoreSnapshot(top)
			top.triedAlternative = true
			top.kind = opposite(top.kind)
			s.stack.visited++
			l := logger.Logger()
			l.Debug().Str("relu", top.f.String()).Str("kind", top.kind.String()).
				Int("level", int(target)).Msg("reluplex: backjump, trying alternative direction")
			if top.kind == Merge {
				s.stats.Merges++
				return s.updateLower(top.f, 0, target)
			}
			s.stats.Splits++
			return s.updateUpper(top.f, 0, target)
		}

		s.restoreSnapshot(top)
		s.stack.snaps = s.stack.snaps[:len(s.stack.snaps)-1]
		if curLevel == target {
			target--
			if target <= 0 {
				return fatal(StackEmpty, "decision stack exhausted")
			}
		}
	}
}
