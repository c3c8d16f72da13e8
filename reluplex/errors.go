package reluplex

import "fmt"

// Kind identifies the category of a solving error. Per spec §9's Design
// Notes, exceptions used for control flow in the source (InvariantViolation,
// StackEmpty) become an explicit result carried on every bound-updating
// operation instead; Kind is the tag of that result.
type Kind byte

const (
	// InvariantViolation is a bound inversion (lb > ub) detected at a known
	// decision level. It is the ordinary signal of branch infeasibility and
	// is always caught inside the main loop and mapped to a backjump.
	InvariantViolation Kind = iota
	// StackEmpty means the decision stack was popped past its bottom: the
	// problem is UNSAT.
	StackEmpty
	// SolverFailed is a numerical breakdown in the LP oracle, recovered by
	// restoring the preprocessed tableau.
	SolverFailed
	// ConsecutiveSolverFailures means the LP oracle failed
	// Config.MaxOracleFailures times in a row: fatal.
	ConsecutiveSolverFailures
	// IllegalPivot means pivot was asked to swap a basic/non-basic pair
	// that was not actually basic/non-basic: fatal, a programming error.
	IllegalPivot
	// NotReluVariable means a ReLU-only operation was applied to a variable
	// with no registered partner: fatal.
	NotReluVariable
	// CannotMakeNonBasic means makeNonBasic found no eligible pivot column:
	// fatal.
	CannotMakeNonBasic
	// UpperLowerInvariantViolated is not raised by this package: Initialize
	// reports a level-0 bound conflict as InvariantViolation at level 0.
	UpperLowerInvariantViolated
	// MultipleInfiniteVarsOnRow means makeAllBoundsFinite found a row with
	// more than one non-finite-bound variable: fatal, an encoding error.
	MultipleInfiniteVarsOnRow
	// OutOfMemory is reserved for allocation failure; Go's runtime reports
	// this via panic, so solve() never constructs it directly, but it is
	// kept in the enum to mirror spec §7's error-kind list completely.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case InvariantViolation:
		return "InvariantViolation"
	case StackEmpty:
		return "StackEmpty"
	case SolverFailed:
		return "SolverFailed"
	case ConsecutiveSolverFailures:
		return "ConsecutiveSolverFailures"
	case IllegalPivot:
		return "IllegalPivot"
	case NotReluVariable:
		return "NotReluVariable"
	case CannotMakeNonBasic:
		return "CannotMakeNonBasic"
	case UpperLowerInvariantViolated:
		return "UpperLowerInvariantViolated"
	case MultipleInfiniteVarsOnRow:
		return "MultipleInfiniteVarsOnRow"
	case OutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// Error is the single concrete error type for the whole package. Kind
// selects the category; Level carries the decision level an
// InvariantViolation should backjump to (meaningless for other kinds);
// Context is a free-form explanation.
type Error struct {
	Kind    Kind
	Level   Level
	Context string
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func violation(level Level, context string) *Error {
	return &Error{Kind: InvariantViolation, Level: level, Context: context}
}

func fatal(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

// isFatal reports whether an error of this kind should terminate Solve
// with status Err, as opposed to being recovered locally (InvariantViolation
// by backjumping, SolverFailed by restoring the preprocessed backup).
func (k Kind) isFatal() bool {
	switch k {
	case InvariantViolation, SolverFailed, StackEmpty:
		return false
	default:
		return true
	}
}
