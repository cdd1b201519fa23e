package contract

import "errors"

var (
	ErrValidation = errors.New("validation failed")

	ErrNoEligibleIntent   = errors.New("no eligible intent")
	ErrActionDenied       = errors.New("action denied by policy")
	ErrActionNotFound     = errors.New("action not registered")
	ErrActionLookupFailed = errors.New("action lookup failed")

	// ErrCollaboratorFault wraps failures raised by an external collaborator.
	// The turn that hit it leaves no trace in session state.
	ErrCollaboratorFault = errors.New("collaborator fault")
)
