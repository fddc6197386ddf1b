package ticket

import (
	"math/big"

	"github.com/trueticket/zkverify/pkg/biometric"
	"github.com/trueticket/zkverify/pkg/merkle"
	"github.com/trueticket/zkverify/pkg/ticket"
)

// WitnessInput collects everything the circuit I/O assembler gathers before
// calling the prover.
type WitnessInput struct {
	Attributes ticket.Attributes
	LeafIndex  int
	Accum      *merkle.Accumulator

	TemplateHash  biometric.TemplateHash
	BiometricSalt ticket.Fq
	Commitment    ticket.Fq

	EventID          ticket.Fq
	CurrentTimestamp int64
	Nonce            ticket.Fq
	NonceExpiry      int64
}

// Result is the fully populated circuit assignment plus the ordered
// seven-element public-signal tuple the prover driver hands to the on-chain
// ABI.
type Result struct {
	Assignment    Circuit
	PublicSignals [7]*big.Int
}

// PrepareWitness assembles a Circuit assignment from a ticket holder's
// attributes, the accumulator opening for their leaf, and the biometric
// reopening, in the exact field order the relation expects.
func PrepareWitness(in WitnessInput) (*Result, error) {
	leaf := in.Attributes.Leaf()

	proof, err := in.Accum.GetProof(in.LeafIndex)
	if err != nil {
		return nil, err
	}

	// The circuit constrains Valid to equal its own commitment-match bit, so
	// the witness must carry the honestly computed value: a template/salt
	// pair that does not open the claimed commitment yields a provable
	// statement with valid = 0, which the verifier's output gate rejects.
	valid := big.NewInt(0)
	if biometric.VerifyCommitment(in.TemplateHash, in.BiometricSalt, in.Commitment) {
		valid = big.NewInt(1)
	}

	var assignment Circuit
	assignment.Valid = valid
	assignment.MerkleRoot = proof.Root
	assignment.BiometricCommitment = in.Commitment.BigInt()
	assignment.EventID = in.EventID.BigInt()
	assignment.CurrentTimestamp = big.NewInt(in.CurrentTimestamp)
	assignment.Nonce = in.Nonce.BigInt()
	assignment.NonceExpiry = big.NewInt(in.NonceExpiry)

	assignment.TokenID = in.Attributes.TokenID.BigInt()
	assignment.TicketEventID = in.Attributes.EventID.BigInt()
	assignment.Tier = in.Attributes.Tier.BigInt()
	assignment.OriginalPrice = in.Attributes.OriginalPrice.BigInt()
	assignment.TicketSalt = in.Attributes.Salt.BigInt()

	assignment.MerkleProof.RootHash = proof.Root
	assignment.MerkleProof.LeafValue = leaf.BigInt()
	for i := 0; i < MaxTreeDepth; i++ {
		assignment.MerkleProof.ProofPath[i] = proof.PathElement[i]
		assignment.MerkleProof.Directions[i] = proof.PathIndex[i]
	}

	for i, f := range in.TemplateHash {
		assignment.BiometricTemplate[i] = f.BigInt()
	}
	assignment.BiometricSalt = in.BiometricSalt.BigInt()

	result := &Result{Assignment: assignment}
	result.PublicSignals = [7]*big.Int{
		valid,
		proof.Root,
		in.Commitment.BigInt(),
		in.EventID.BigInt(),
		big.NewInt(in.CurrentTimestamp),
		in.Nonce.BigInt(),
		big.NewInt(in.NonceExpiry),
	}

	return result, nil
}
