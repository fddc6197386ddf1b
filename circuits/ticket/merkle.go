package ticket

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash"
	"github.com/consensys/gnark/std/permutation/poseidon2"
)

// MaxTreeDepth matches pkg/merkle.Depth: the circuit's path arrays are fixed
// at this length regardless of how many leaves an event has actually minted.
const MaxTreeDepth = 20

// MerkleProofCircuit verifies a fixed-depth-20 Poseidon Merkle opening.
// Direction convention: 0 = sibling on the right (current is left child),
// 1 = sibling on the left (current is right child) — must match
// pkg/merkle.Proof.PathIndex exactly.
type MerkleProofCircuit struct {
	RootHash frontend.Variable `gnark:"rootHash"`

	LeafValue  frontend.Variable               `gnark:"leafValue"`
	ProofPath  [MaxTreeDepth]frontend.Variable `gnark:"proofPath"`
	Directions [MaxTreeDepth]frontend.Variable `gnark:"directions"`
}

// Define verifies the proof path and asserts the computed root matches
// RootHash. Unlike a variable-height tree, an accumulator leaf's path always
// has exactly MaxTreeDepth real levels — unminted subtrees resolve to a
// nonzero precomputed zero-hash, never a literal zero sibling — so every
// level is hashed unconditionally.
func (circuit *MerkleProofCircuit) Define(api frontend.API) error {
	p, err := poseidon2.NewPoseidon2FromParameters(api, 2, 6, 50)
	if err != nil {
		return err
	}
	hasher := hash.NewMerkleDamgardHasher(api, p, 0)

	currentHash := circuit.LeafValue

	for i := 0; i < MaxTreeDepth; i++ {
		sibling := circuit.ProofPath[i]
		direction := circuit.Directions[i]

		hasher.Reset()
		leftHash := api.Select(direction, sibling, currentHash)
		rightHash := api.Select(direction, currentHash, sibling)
		hasher.Write(leftHash, rightHash)
		currentHash = hasher.Sum()
	}

	api.AssertIsEqual(currentHash, circuit.RootHash)

	return nil
}
