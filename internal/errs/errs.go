package errs

import "errors"

// Domain sentinel errors, mapped to HTTP codes in handlers.
var (
	ErrUnauthorized      = errors.New("no caller identity")
	ErrForbidden         = errors.New("caller lacks required role")
	ErrSessionNotFound   = errors.New("session not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrValidation        = errors.New("validation failed")
)
