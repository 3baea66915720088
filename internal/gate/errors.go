package gate

import "errors"

// ErrUnauthorized is returned by Gate.Authorize when the actor lacks the
// requested capability.
var ErrUnauthorized = errors.New("unauthorized")
