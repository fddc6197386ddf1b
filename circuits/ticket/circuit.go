// Package ticket is the Groth16 relation proving ticket ownership plus a
// matching biometric commitment opening, without revealing which ticket,
// any ticket attribute, or the biometric template. The circuit is otherwise
// treated as an opaque relation; only its public and private input shape and
// valid output are fixed.
package ticket

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// BiometricWidth is the fixed width of the processed biometric template.
const BiometricWidth = 16

// DomainTagReal must match pkg/poseidon.DomainTagReal: it separates a real
// ticket leaf's hash input from poseidon.ZeroLeafHash's padding-tagged one.
const DomainTagReal = 1

// Circuit implements the relation behind the seven public signals: (valid,
// merkleRoot, biometricCommitment, eventId, currentTimestamp, nonce,
// nonceExpiry). valid is computed, the other six are bound public inputs.
type Circuit struct {
	// Public inputs, in their fixed wire order. Valid is the circuit's sole
	// computed output; the verifier gate checks it equals one.
	Valid               frontend.Variable `gnark:"valid,public"`
	MerkleRoot          frontend.Variable `gnark:"merkleRoot,public"`
	BiometricCommitment frontend.Variable `gnark:"biometricCommitment,public"`
	EventID             frontend.Variable `gnark:"eventId,public"`
	CurrentTimestamp    frontend.Variable `gnark:"currentTimestamp,public"`
	Nonce               frontend.Variable `gnark:"nonce,public"`
	NonceExpiry         frontend.Variable `gnark:"nonceExpiry,public"`

	// Private ticket attributes and the accumulator opening for their leaf.
	TokenID       frontend.Variable `gnark:"tokenId"`
	TicketEventID frontend.Variable `gnark:"ticketEventId"`
	Tier          frontend.Variable `gnark:"tier"`
	OriginalPrice frontend.Variable `gnark:"originalPrice"`
	TicketSalt    frontend.Variable `gnark:"ticketSalt"`

	MerkleProof MerkleProofCircuit `gnark:"merkleProof"`

	// Private biometric opening.
	BiometricTemplate [BiometricWidth]frontend.Variable `gnark:"biometricTemplate"`
	BiometricSalt     frontend.Variable                 `gnark:"biometricSalt"`
}

func (circuit *Circuit) Define(api frontend.API) error {
	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return err
	}

	// 1. Private eventId must equal the publicly bound eventId, re-asserted
	// in-circuit so a malformed witness cannot silently slip past the
	// assembler's own check.
	api.AssertIsEqual(circuit.TicketEventID, circuit.EventID)

	// 2. currentTimestamp must not exceed nonceExpiry.
	api.AssertIsLessOrEqual(circuit.CurrentTimestamp, circuit.NonceExpiry)

	// 3. Recompute the ticket leaf: H(DomainTagReal, tokenId, eventId, tier,
	// originalPrice, salt) — must match pkg/ticket.Attributes.Leaf() exactly.
	leafHasher := hash.NewMerkleDamgardHasher(api, p, 0)
	leafHasher.Write(DomainTagReal, circuit.TokenID, circuit.TicketEventID, circuit.Tier, circuit.OriginalPrice, circuit.TicketSalt)
	leaf := leafHasher.Sum()
	leafHasher.Reset()

	// 4. Link the recomputed leaf and the public root into the Merkle sub-circuit.
	api.AssertIsEqual(circuit.MerkleProof.LeafValue, leaf)
	api.AssertIsEqual(circuit.MerkleProof.RootHash, circuit.MerkleRoot)
	if err := circuit.MerkleProof.Define(api); err != nil {
		return err
	}

	// 5. Recompute the 16-wide biometric digest and its commitment:
	// commitment = Hash2(Hash16(templateHash), salt).
	digestHasher := hash.NewMerkleDamgardHasher(api, p, 0)
	digestHasher.Write(circuit.BiometricTemplate[:]...)
	digest := digestHasher.Sum()
	digestHasher.Reset()

	commitHasher := hash.NewMerkleDamgardHasher(api, p, 0)
	commitHasher.Write(digest, circuit.BiometricSalt)
	derivedCommitment := commitHasher.Sum()
	commitHasher.Reset()

	// 6. valid == 1 iff the recomputed commitment matches the bound public
	// commitment; a mismatching biometric produces valid = 0 rather than an
	// unsatisfiable circuit, so the verifier can reject it with a normal
	// gate failure instead of a proving-time panic.
	commitmentMatches := api.IsZero(api.Sub(derivedCommitment, circuit.BiometricCommitment))
	api.AssertIsEqual(circuit.Valid, commitmentMatches)

	return nil
}
