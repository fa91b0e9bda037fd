package core

import "errors"

var (
	// ErrScheduleConstraint reports one or more cross-field invariant
	// violations found by Validate. The full diagnostic list is carried in
	// the error text.
	ErrScheduleConstraint = errors.New("schedule constraint violation")

	// ErrInvalidSchedule reports a render attempt on a graph that fails
	// validation. No partial output is ever produced.
	ErrInvalidSchedule = errors.New("cannot render invalid schedule")

	// ErrMalformedSchedule reports text that violates the file format's
	// structural contract.
	ErrMalformedSchedule = errors.New("malformed schedule file")
)
