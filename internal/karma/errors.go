package karma

import (
	dErrors "kudos/pkg/domain-errors"
)

// ErrStateNotInitialized is returned when ApplyEvent or Standing is invoked
// for a user before a snapshot load has seeded state. This is a programming
// error at the call site and fails loudly instead of silently creating
// partial state, so ordering bugs surface immediately.
var ErrStateNotInitialized = dErrors.New(dErrors.CodeConflict, "karma state not initialized for user")

// ErrNotObserved is returned by read operations for users that have never
// been observed.
var ErrNotObserved = dErrors.New(dErrors.CodeNotFound, "user is not being observed")
