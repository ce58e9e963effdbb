package grant

import "errors"

// Error kinds surfaced across the grant boundary. Collaborator failures are
// folded into one of these; no storage or provider detail crosses over.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrServer        = errors.New("server error")
	ErrConflict      = errors.New("conflict")
	ErrUnprocessable = errors.New("unprocessable entity")
)
