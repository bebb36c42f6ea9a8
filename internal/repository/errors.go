package repository

import "errors"

// ErrNotFound is returned when no ride, user or captain matches the lookup.
// Ride reads scoped to a captain also return it for rides bound to someone else.
var ErrNotFound = errors.New("entity not found")
