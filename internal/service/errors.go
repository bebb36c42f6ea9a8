package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when input is missing or malformed.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRideNotFound is returned when the referenced ride does not exist
	// or is not visible to the caller.
	ErrRideNotFound = errors.New("ride not found")

	// ErrInvalidState is returned when the operation is not valid for the ride's current status.
	ErrInvalidState = errors.New("ride not in a valid state for this operation")

	// ErrAlreadyClaimed is returned when another captain accepted the ride first.
	ErrAlreadyClaimed = errors.New("ride already claimed")

	// ErrInvalidCredential is returned when the supplied OTP does not match.
	ErrInvalidCredential = errors.New("invalid otp")

	// ErrCaptainMismatch is returned when a captain acts on a ride bound to someone else.
	ErrCaptainMismatch = errors.New("captain not assigned to this ride")

	// ErrNonPositiveFare is returned when the rate table prices a trip at zero or less.
	ErrNonPositiveFare = errors.New("fare must be positive")

	// ErrInvalidRateTable is returned when a rate table is incomplete or could price a trip at zero.
	ErrInvalidRateTable = errors.New("invalid rate table")

	// ErrUpstreamUnavailable is returned when the distance oracle or storage fails.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Validation errors. All of them wrap ErrInvalidRequest.
var (
	ErrInvalidUserID       = fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	ErrInvalidCaptainID    = fmt.Errorf("%w: captain id is required", ErrInvalidRequest)
	ErrInvalidRideID       = fmt.Errorf("%w: ride id is required", ErrInvalidRequest)
	ErrInvalidViewerID     = fmt.Errorf("%w: viewer id is required", ErrInvalidRequest)
	ErrInvalidPickup       = fmt.Errorf("%w: pickup is required", ErrInvalidRequest)
	ErrInvalidDestination  = fmt.Errorf("%w: destination is required", ErrInvalidRequest)
	ErrInvalidVehicleClass = fmt.Errorf("%w: unknown vehicle class", ErrInvalidRequest)
	ErrInvalidOTP          = fmt.Errorf("%w: otp is required", ErrInvalidRequest)
	ErrUnresolvableRoute   = fmt.Errorf("%w: pickup or destination could not be resolved", ErrInvalidRequest)
	ErrInvalidCodeLength   = fmt.Errorf("%w: code length out of range", ErrInvalidRequest)
)
