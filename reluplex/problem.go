package reluplex

import (
	"sync/atomic"

	"github.com/crillab/reluplex/logger"
)

// Solver is one Reluplex decision-procedure instance. The zero value is not
// usable; construct with New.
type Solver struct {
	cfg Config

	n     int // variables supplied by the caller, 0..n-1
	extra int // slack variables appended at Initialize, n..n+extra-1

	tab     *tableau
	bounds  *boundStore
	assign  []float64
	basic   []bool
	names   []string
	relus *reluRegistry
	heap  *violationHeap
	stack *decisionStack

	backup *preprocessedBackup

	quit                int32 // atomic cooperative-cancel flag
	consecutiveOracleFails int
	progressCalls          int // Solve loop iterations, for DegradationCheckPeriod

	initialized bool
	stats       Stats
}

// preprocessedBackup is the one-time post-preprocessing snapshot used to
// restore from numerical failure without losing learned level-0 facts.
type preprocessedBackup struct {
	tab    *tableau
	bounds *boundStore
	assign []float64
	basic  []bool
	relus  *reluSnapshot
}

// New allocates a solver over numVariables tableau columns/rows, numbered
// 0..numVariables-1.
func New(numVariables int, cfg Config) *Solver {
	s := &Solver{
		cfg:    cfg,
		n:      numVariables,
		tab:    newTableau(numVariables, cfg.EpsilonZero),
		bounds: newBoundStore(numVariables),
		assign: make([]float64, numVariables),
		basic:  make([]bool, numVariables),
		names:  make([]string, numVariables),
		relus:  newReluRegistry(),
	}
	s.logger()
	return s
}

// SetLowerBound sets a level-0 lower bound, to be called before Initialize.
func (s *Solver) SetLowerBound(v Var, x float64) {
	s.bounds.setLower(v, x, 0)
}

// SetUpperBound sets a level-0 upper bound, to be called before Initialize.
func (s *Solver) SetUpperBound(v Var, x float64) {
	s.bounds.setUpper(v, x, 0)
}

// InitializeCell adds a nonzero tableau coefficient at (row,col).
func (s *Solver) InitializeCell(row, col Var, coef float64) {
	s.tab.addEntry(int(row), int(col), coef)
}

// MarkBasic declares v basic and installs its self-cell. The caller must
// still have InitializeCell-ed the row's nonbasic coefficients with the
// correct sign convention (Σ c_j·x_j − x_b = 0).
func (s *Solver) MarkBasic(v Var) {
	s.basic[v] = true
	s.tab.addEntry(int(v), int(v), -1)
}

// SetReluPair registers (b,f) as a ReLU pair: f = max(0,b).
func (s *Solver) SetReluPair(b, f Var) {
	s.relus.register(b, f)
}

// SetName attaches a display name to v, purely diagnostic.
func (s *Solver) SetName(v Var, name string) {
	s.names[v] = name
}

// Quit cooperatively requests cancellation; observed at the top of the main
// loop between iterations.
func (s *Solver) Quit() {
	atomic.StoreInt32(&s.quit, 1)
}

func (s *Solver) quitRequested() bool {
	return atomic.LoadInt32(&s.quit) != 0
}

// GetAssignment returns the current value of v.
func (s *Solver) GetAssignment(v Var) float64 { return s.assign[v] }

// GetLowerBound returns the current (possibly tightened) lower bound of v.
func (s *Solver) GetLowerBound(v Var) float64 { return s.bounds.lbValue(v) }

// GetUpperBound returns the current (possibly tightened) upper bound of v.
func (s *Solver) GetUpperBound(v Var) float64 { return s.bounds.ubValue(v) }

// Stats returns a copy of the solver's running statistics.
func (s *Solver) Stats() Stats { return s.stats }

// logger emits the one-time construction trace, mirroring the log(...)
// calls the original gates behind its logging flag.
func (s *Solver) logger() {
	l := logger.Logger()
	l.Debug().Int("vars", s.n).Msg("reluplex solver constructed")
}
