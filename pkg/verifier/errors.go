package verifier

import "errors"

// The verifier surfaces exactly one of these per rejection, in gate order —
// first failure wins.
var (
	ErrInputShape        = errors.New("verifier: malformed request")
	ErrEventMismatch     = errors.New("verifier: wrong event")
	ErrExpired           = errors.New("verifier: proof expired")
	ErrStaleRoot         = errors.New("verifier: ticket state changed; retry")
	ErrReplay            = errors.New("verifier: already used")
	ErrInvalidProof      = errors.New("verifier: invalid")
	ErrLedgerUnavailable = errors.New("verifier: temporarily unavailable")
)
