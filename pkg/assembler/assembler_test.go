package assembler_test

import (
	"errors"
	"math/big"
	"testing"

	circuitticket "github.com/trueticket/zkverify/circuits/ticket"
	"github.com/trueticket/zkverify/pkg/assembler"
	"github.com/trueticket/zkverify/pkg/biometric"
	"github.com/trueticket/zkverify/pkg/merkle"
	"github.com/trueticket/zkverify/pkg/ticket"
)

func baseInput(t *testing.T) circuitticket.WitnessInput {
	t.Helper()

	attrs := ticket.Attributes{
		TokenID:       ticket.NewFq(big.NewInt(1)),
		EventID:       ticket.NewFq(big.NewInt(12345)),
		Tier:          ticket.NewFq(big.NewInt(0)),
		OriginalPrice: ticket.NewFq(big.NewInt(100)),
		Salt:          ticket.NewFq(big.NewInt(777)),
	}

	accum, err := merkle.NewAccumulator(nil)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}
	idx, err := accum.Append(attrs.Leaf().BigInt())
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	th, err := biometric.ProcessTemplate([]float64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	commitment, err := biometric.MakeCommitment(th, nil, 0)
	if err != nil {
		t.Fatalf("MakeCommitment: %v", err)
	}

	return circuitticket.WitnessInput{
		Attributes:       attrs,
		LeafIndex:        idx,
		Accum:            accum,
		TemplateHash:     th,
		BiometricSalt:    commitment.Salt,
		Commitment:       commitment.Value,
		EventID:          attrs.EventID,
		CurrentTimestamp: 1000,
		Nonce:            ticket.NewFq(big.NewInt(55)),
		NonceExpiry:      1060,
	}
}

// TestAssembleWellFormed checks a well-formed input passes validation and
// produces a witness assignment.
func TestAssembleWellFormed(t *testing.T) {
	in := baseInput(t)
	result, err := assembler.Assemble(in)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if result.PublicSignals[3].Cmp(in.EventID.BigInt()) != 0 {
		t.Fatalf("public eventId signal mismatch: got %s want %s", result.PublicSignals[3], in.EventID.BigInt())
	}
}

// TestAssembleRejectsEventMismatch checks the pre-prove rule that the
// private ticket eventId must equal the publicly bound eventId.
func TestAssembleRejectsEventMismatch(t *testing.T) {
	in := baseInput(t)
	in.EventID = ticket.NewFq(big.NewInt(99999))

	_, err := assembler.Assemble(in)
	if !errors.Is(err, assembler.ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

// TestAssembleRejectsExpiryBeforeTimestamp covers "currentTimestamp <=
// nonceExpiry".
func TestAssembleRejectsExpiryBeforeTimestamp(t *testing.T) {
	in := baseInput(t)
	in.NonceExpiry = in.CurrentTimestamp - 1

	_, err := assembler.Assemble(in)
	if !errors.Is(err, assembler.ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

// TestAssembleRejectsOutOfRangeLeafIndex covers the leaf-index bounds check.
func TestAssembleRejectsOutOfRangeLeafIndex(t *testing.T) {
	in := baseInput(t)
	in.LeafIndex = merkle.Capacity

	_, err := assembler.Assemble(in)
	if !errors.Is(err, assembler.ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

// TestAssembleRejectsMissingAccumulator checks nil accumulators are rejected
// before any attempt to read a Merkle proof from them.
func TestAssembleRejectsMissingAccumulator(t *testing.T) {
	in := baseInput(t)
	in.Accum = nil

	_, err := assembler.Assemble(in)
	if !errors.Is(err, assembler.ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}
