package ownership

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/plonk"
	plonkbn254 "github.com/consensys/gnark/backend/plonk/bn254"
	"github.com/consensys/gnark/frontend"
	"github.com/rs/zerolog/log"

	"github.com/trueticket/zkverify/pkg/biometric"
	"github.com/trueticket/zkverify/pkg/setup"
	"github.com/trueticket/zkverify/pkg/ticket"
)

// EnrollmentProof carries the serialized PLONK proof and its two public
// inputs in the layout the on-chain enrollment verifier consumes.
type EnrollmentProof struct {
	SolidityProof string `json:"solidity_proof"`
	Commitment    string `json:"commitment"`
	DeviceAddress string `json:"device_address"`
}

// ProveEnrollment compiles the opening circuit, loads PLONK keys from
// keysDir, proves the device knows the template digest and salt behind the
// commitment it is about to enroll, verifies the proof locally, and returns
// it serialized for the on-chain verifier. Public witness order is
// [commitment, deviceAddress].
func ProveEnrollment(keysDir string, th biometric.TemplateHash, salt ticket.Fq, commitment ticket.Fq, deviceAddress *big.Int) (*EnrollmentProof, error) {
	if !biometric.VerifyCommitment(th, salt, commitment) {
		return nil, fmt.Errorf("ownership: template and salt do not open the supplied commitment")
	}

	ccs, err := setup.CompileCircuitForBackend(&Circuit{}, setup.PlonkBackend)
	if err != nil {
		return nil, fmt.Errorf("compile circuit: %w", err)
	}

	pk, vk, err := setup.LoadPlonkKeys(keysDir, "ownership")
	if err != nil {
		return nil, fmt.Errorf("load keys: %w", err)
	}

	assignment := Circuit{
		Commitment:     commitment.BigInt(),
		DeviceAddress:  deviceAddress,
		TemplateDigest: biometric.Digest(th),
		Salt:           salt.BigInt(),
	}

	witness, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("create witness: %w", err)
	}

	publicWitness, err := witness.Public()
	if err != nil {
		return nil, fmt.Errorf("extract public witness: %w", err)
	}

	log.Info().Msg("Generating PLONK enrollment proof...")
	proof, err := plonk.Prove(ccs, pk, witness)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}

	if err := plonk.Verify(proof, vk, publicWitness); err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	bn254Proof := proof.(*plonkbn254.Proof)
	solidityBytes := bn254Proof.MarshalSolidity()

	return &EnrollmentProof{
		SolidityProof: "0x" + hex.EncodeToString(solidityBytes),
		Commitment:    fmt.Sprintf("0x%064x", commitment.BigInt()),
		DeviceAddress: fmt.Sprintf("0x%064x", deviceAddress),
	}, nil
}
