// Package assembler packages circuit public/private inputs and validates
// their semantic preconditions before a prove call is ever attempted.
// Ordering of public signals is not a convention — it is part of the
// statement the circuit asserts, so this package never reorders
// circuitticket.WitnessInput's fields; it only validates and forwards them.
package assembler

import (
	"errors"
	"fmt"

	circuitticket "github.com/trueticket/zkverify/circuits/ticket"
	"github.com/trueticket/zkverify/pkg/merkle"
)

// ErrInputShape is returned by Validate when a request violates a semantic
// precondition the circuit itself does not check before constraint
// evaluation.
var ErrInputShape = errors.New("assembler: malformed request")

// Validate enforces the pre-prove rules:
//   - the ticket's own eventId must equal the publicly bound eventId,
//   - currentTimestamp must not exceed nonceExpiry,
//   - the leaf index must lie in [0, merkle.Capacity),
//   - an accumulator must be supplied.
//
// The Merkle path length needs no check here: merkle.Proof's path arrays
// are fixed at merkle.Depth by their type. A failure here precedes any call
// into pkg/prover, so a malformed request is rejected before any witness is
// built or proving is attempted.
func Validate(in circuitticket.WitnessInput) error {
	if !in.Attributes.EventID.Equal(in.EventID) {
		return fmt.Errorf("%w: ticket eventId does not match request eventId", ErrInputShape)
	}
	if in.CurrentTimestamp > in.NonceExpiry {
		return fmt.Errorf("%w: currentTimestamp %d exceeds nonceExpiry %d", ErrInputShape, in.CurrentTimestamp, in.NonceExpiry)
	}
	if in.LeafIndex < 0 || in.LeafIndex >= merkle.Capacity {
		return fmt.Errorf("%w: leaf index %d out of range [0, %d)", ErrInputShape, in.LeafIndex, merkle.Capacity)
	}
	if in.Accum == nil {
		return fmt.Errorf("%w: no accumulator supplied", ErrInputShape)
	}
	return nil
}

// Assemble validates in and, once it is well-formed, builds the full circuit
// witness via circuitticket.PrepareWitness. Callers should treat this as the
// single entry point from collected request data to a prover-ready Result.
func Assemble(in circuitticket.WitnessInput) (*circuitticket.Result, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}
	return circuitticket.PrepareWitness(in)
}
