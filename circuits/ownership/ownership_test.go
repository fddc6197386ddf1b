package ownership_test

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/test/unsafekzg"

	"github.com/trueticket/zkverify/circuits/ownership"
	"github.com/trueticket/zkverify/pkg/biometric"
	"github.com/trueticket/zkverify/pkg/setup"
	"github.com/trueticket/zkverify/pkg/ticket"
)

func enrollmentFixture(t *testing.T) (biometric.TemplateHash, ticket.Fq, biometric.Commitment) {
	t.Helper()

	raw := make([]float64, 64)
	for i := range raw {
		raw[i] = float64(i) * 0.25
	}
	th, err := biometric.ProcessTemplate(raw)
	if err != nil {
		t.Fatalf("ProcessTemplate: %v", err)
	}
	salt := ticket.NewFq(big.NewInt(424242))
	commitment, err := biometric.MakeCommitment(th, &salt, 1_700_000_000)
	if err != nil {
		t.Fatalf("MakeCommitment: %v", err)
	}
	return th, salt, commitment
}

// TestOwnershipCircuitEndToEnd compiles the opening circuit with SCS,
// performs an unsafe PLONK setup, proves knowledge of the digest and salt
// behind an enrolled commitment, and verifies it.
func TestOwnershipCircuitEndToEnd(t *testing.T) {
	ccs, err := setup.CompileCircuitForBackend(&ownership.Circuit{}, setup.PlonkBackend)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}

	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		t.Fatalf("generate SRS: %v", err)
	}

	pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
	if err != nil {
		t.Fatalf("plonk setup: %v", err)
	}

	th, salt, commitment := enrollmentFixture(t)
	deviceAddress := new(big.Int).SetUint64(0xCAFE)

	assignment := ownership.Circuit{
		Commitment:     commitment.Value.BigInt(),
		DeviceAddress:  deviceAddress,
		TemplateDigest: biometric.Digest(th),
		Salt:           salt.BigInt(),
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}

	publicWitness, err := witness.Public()
	if err != nil {
		t.Fatalf("extract public witness: %v", err)
	}

	proof, err := plonk.Prove(ccs, pk, witness)
	if err != nil {
		t.Fatalf("prove: %v", err)
	}

	if err := plonk.Verify(proof, vk, publicWitness); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

// TestOwnershipCircuitRejectsWrongSalt checks a witness whose salt does not
// open the claimed commitment is unsatisfiable.
func TestOwnershipCircuitRejectsWrongSalt(t *testing.T) {
	ccs, err := setup.CompileCircuitForBackend(&ownership.Circuit{}, setup.PlonkBackend)
	if err != nil {
		t.Fatalf("compile circuit: %v", err)
	}

	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		t.Fatalf("generate SRS: %v", err)
	}

	pk, _, err := plonk.Setup(ccs, srs, srsLagrange)
	if err != nil {
		t.Fatalf("plonk setup: %v", err)
	}

	th, _, commitment := enrollmentFixture(t)

	assignment := ownership.Circuit{
		Commitment:     commitment.Value.BigInt(),
		DeviceAddress:  new(big.Int).SetUint64(0xCAFE),
		TemplateDigest: biometric.Digest(th),
		Salt:           big.NewInt(999999),
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		t.Fatalf("create witness: %v", err)
	}

	if _, err := plonk.Prove(ccs, pk, witness); err == nil {
		t.Fatal("proving succeeded with a salt that does not open the commitment")
	}
}

// TestProveEnrollment exercises the full keys-on-disk flow: PLONK dev
// setup into a temp directory, then a proof from a fresh enrollment.
func TestProveEnrollment(t *testing.T) {
	dir := t.TempDir()
	if err := setup.PlonkDevSetup(&ownership.Circuit{}, dir, "ownership"); err != nil {
		t.Fatalf("PlonkDevSetup: %v", err)
	}

	th, salt, commitment := enrollmentFixture(t)

	proof, err := ownership.ProveEnrollment(dir, th, salt, commitment.Value, new(big.Int).SetUint64(0xDEAD))
	if err != nil {
		t.Fatalf("ProveEnrollment: %v", err)
	}

	if proof.SolidityProof == "" || proof.SolidityProof == "0x" {
		t.Fatal("enrollment proof serialized empty")
	}
	if proof.Commitment == "" {
		t.Fatal("enrollment proof is missing its commitment")
	}
	if proof.DeviceAddress == "" {
		t.Fatal("enrollment proof is missing its device address")
	}

	if _, err := ownership.ProveEnrollment(dir, th, ticket.NewFq(big.NewInt(1)), commitment.Value, new(big.Int).SetUint64(0xDEAD)); err == nil {
		t.Fatal("ProveEnrollment accepted a salt that does not open the commitment")
	}
}
