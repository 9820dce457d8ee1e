package domain

import "errors"

var (
	ErrMissingMount = errors.New("mount record has no mount identifier")
	ErrLeaseHeld    = errors.New("cycle lease held by another instance")
)
