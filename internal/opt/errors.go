package opt

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInstance marks an instance that breaks a structural invariant.
	ErrMalformedInstance = errors.New("opt: malformed instance")

	// ErrInfeasibleInstance is returned when the fleet cannot serve every
	// customer without violating capacity or time windows.
	ErrInfeasibleInstance = errors.New("opt: infeasible instance")

	// ErrFeasibilityMismatch means the solver produced a solution it believed
	// feasible but the validator rejected it. It always indicates a bug.
	ErrFeasibilityMismatch = errors.New("opt: solver and validator disagree on feasibility")
)

// MalformedInstanceError names the offending field of a rejected instance.
type MalformedInstanceError struct {
	Field  string
	Reason string
}

func (e *MalformedInstanceError) Error() string {
	return fmt.Sprintf("opt: malformed instance: %s: %s", e.Field, e.Reason)
}

func (e *MalformedInstanceError) Unwrap() error { return ErrMalformedInstance }

// InfeasibleInstanceError reports the first customer the constructor could
// not place.
type InfeasibleInstanceError struct {
	Customer int
	Vehicles int
	Unrouted int
}

func (e *InfeasibleInstanceError) Error() string {
	return fmt.Sprintf("opt: infeasible instance: customer %d has no feasible insertion with %d vehicles (%d customers unrouted)",
		e.Customer, e.Vehicles, e.Unrouted)
}

func (e *InfeasibleInstanceError) Unwrap() error { return ErrInfeasibleInstance }
