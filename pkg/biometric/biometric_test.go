package biometric_test

import (
	"math/big"
	"testing"

	"github.com/trueticket/zkverify/pkg/biometric"
	"github.com/trueticket/zkverify/pkg/ticket"
)

func sampleTemplate(seed float64) []float64 {
	raw := make([]float64, 100)
	for i := range raw {
		raw[i] = seed + float64(i)*0.01
	}
	return raw
}

// TestProcessTemplateDeterministic checks that the same raw template always
// collapses to the same 16-wide hash.
func TestProcessTemplateDeterministic(t *testing.T) {
	raw := sampleTemplate(1.0)
	a, err := biometric.ProcessTemplate(raw)
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	b, err := biometric.ProcessTemplate(raw)
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("chunk %d differs across identical inputs", i)
		}
	}
}

// TestProcessTemplateShortInput exercises the zero-padding path for an
// input shorter than NumChunks*2 elements: short chunks are zero-padded to
// at least length 2.
func TestProcessTemplateShortInput(t *testing.T) {
	raw := []float64{1.0, 2.0, 3.0}
	th, err := biometric.ProcessTemplate(raw)
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	if len(th) != biometric.NumChunks {
		t.Fatalf("expected %d chunks, got %d", biometric.NumChunks, len(th))
	}
}

// TestCommitmentBinding checks verifyCommitment holds for the template/salt
// it was built from, and fails if either changes.
func TestCommitmentBinding(t *testing.T) {
	th, err := biometric.ProcessTemplate(sampleTemplate(2.0))
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	salt := ticket.NewFq(big.NewInt(42))

	commitment, err := biometric.MakeCommitment(th, &salt, 1_700_000_000)
	if err != nil {
		t.Fatalf("MakeCommitment: %v", err)
	}

	if !biometric.VerifyCommitment(th, salt, commitment.Value) {
		t.Fatal("commitment did not verify against its own template/salt")
	}

	otherTh, err := biometric.ProcessTemplate(sampleTemplate(3.0))
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	if biometric.VerifyCommitment(otherTh, salt, commitment.Value) {
		t.Fatal("commitment verified against a substituted template")
	}

	otherSalt := ticket.NewFq(big.NewInt(43))
	if biometric.VerifyCommitment(th, otherSalt, commitment.Value) {
		t.Fatal("commitment verified against a substituted salt")
	}
}

// TestMakeCommitmentRandomSalt checks that omitting a salt draws one rather
// than defaulting to the zero value.
func TestMakeCommitmentRandomSalt(t *testing.T) {
	th, err := biometric.ProcessTemplate(sampleTemplate(4.0))
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	c1, err := biometric.MakeCommitment(th, nil, 0)
	if err != nil {
		t.Fatalf("MakeCommitment: %v", err)
	}
	c2, err := biometric.MakeCommitment(th, nil, 0)
	if err != nil {
		t.Fatalf("MakeCommitment: %v", err)
	}
	if c1.Salt.Equal(c2.Salt) {
		t.Fatal("two random-salt commitments collided — suspiciously unlikely")
	}
	if c1.Value.Equal(c2.Value) {
		t.Fatal("commitments with independent random salts matched")
	}
}

// TestTemplateHashDeviceStorage checks the device-local persistence
// encoding restores a template hash that still opens its commitment.
func TestTemplateHashDeviceStorage(t *testing.T) {
	th, err := biometric.ProcessTemplate(sampleTemplate(6.0))
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	salt := ticket.NewFq(big.NewInt(99))
	commitment, err := biometric.MakeCommitment(th, &salt, 1_700_000_000)
	if err != nil {
		t.Fatalf("MakeCommitment: %v", err)
	}

	stored := biometric.MarshalTemplateHash(th)
	restored, err := biometric.UnmarshalTemplateHash(stored)
	if err != nil {
		t.Fatalf("UnmarshalTemplateHash: %v", err)
	}
	if !biometric.VerifyCommitment(restored, salt, commitment.Value) {
		t.Fatal("restored template hash no longer opens its commitment")
	}

	if _, err := biometric.UnmarshalTemplateHash(stored[:len(stored)-1]); err == nil {
		t.Fatal("expected error for truncated serialized template hash")
	}
}

// TestCompareTemplatesLengthMismatch checks that length mismatches in
// compareTemplates are fatal.
func TestCompareTemplatesLengthMismatch(t *testing.T) {
	_, err := biometric.CompareTemplates([]float64{1, 2, 3}, []float64{1, 2})
	if err == nil {
		t.Fatal("expected error for mismatched template lengths")
	}
}

// TestCompareTemplatesIdentical checks the cosine-similarity gate returns 1
// for identical templates and is never itself bound into a proof (this is a
// pure local computation, never touching the circuit assembler).
func TestCompareTemplatesIdentical(t *testing.T) {
	raw := sampleTemplate(5.0)
	sim, err := biometric.CompareTemplates(raw, raw)
	if err != nil {
		t.Fatalf("CompareTemplates: %v", err)
	}
	if sim < 0.999999 {
		t.Fatalf("expected near-1.0 similarity for identical templates, got %f", sim)
	}
	if sim < biometric.MatchThreshold {
		t.Fatalf("identical templates fell below the accept threshold: %f", sim)
	}
}
