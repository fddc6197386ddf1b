// Package ownership is the enrollment-time opening proof: before a biometric
// commitment is ever stored, the enrolling device proves it knows the
// template digest and salt the commitment opens over, without revealing
// either. It is not one of the nine check-in verification gates and does not
// change their semantics.
package ownership

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// Circuit proves Commitment == Hash(templateDigest, salt) and binds the
// proof to the enrolling device's address so a captured proof cannot be
// replayed against a different enrollment.
type Circuit struct {
	Commitment    frontend.Variable `gnark:"commitment,public"`
	DeviceAddress frontend.Variable `gnark:"deviceAddress,public"`

	TemplateDigest frontend.Variable `gnark:"templateDigest"`
	Salt           frontend.Variable `gnark:"salt"`
}

func (circuit *Circuit) Define(api frontend.API) error {
	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return err
	}

	// A zero digest means no template was ever processed; a zero salt means
	// the commitment is unsalted and correlatable. Reject both.
	api.AssertIsEqual(api.IsZero(circuit.TemplateDigest), 0)
	api.AssertIsEqual(api.IsZero(circuit.Salt), 0)

	commitHasher := hash.NewMerkleDamgardHasher(api, p, 0)
	commitHasher.Write(circuit.TemplateDigest, circuit.Salt)
	derivedCommitment := commitHasher.Sum()

	api.AssertIsEqual(circuit.Commitment, derivedCommitment)

	// DeviceAddress carries no constraint of its own — binding it as a
	// public input ties the proof to one enrolling device.
	_ = circuit.DeviceAddress

	return nil
}
