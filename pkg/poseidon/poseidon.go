// Package poseidon wraps gnark-crypto's Poseidon2 permutation with the fixed
// arities this ticketing core requires: 2 for tree nodes and commitment
// finalization, 16 for biometric template collapse, and a domain-tagged hash
// (HashWithDomainTag) for ticket leaves and the padding leaf. Every
// exported hash is deterministic over already-reduced Fq inputs; callers must
// not pass un-reduced big.Int values across this boundary.
package poseidon

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// Domain tags distinguish a real tree leaf from an empty (padding) one so that
// an all-zero ticket never collides with an unused accumulator slot.
const (
	DomainTagReal    = 1
	DomainTagPadding = 0
)

// Hash2 hashes two field elements, the arity used for every internal Merkle
// accumulator node: parent = Hash2(left, right).
func Hash2(left, right *big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()

	var lFr, rFr fr.Element
	lFr.SetBigInt(left)
	rFr.SetBigInt(right)

	lBytes := lFr.Bytes()
	rBytes := rFr.Bytes()
	h.Write(lBytes[:])
	h.Write(rBytes[:])

	return new(big.Int).SetBytes(h.Sum(nil))
}

// Hash5 hashes five field elements. Ticket leaves are not built with it:
// pkg/ticket.Attributes.Leaf hashes DomainTagReal followed by the five
// ticket fields via HashWithDomainTag, so a leaf is not Hash5 of its fields.
func Hash5(a, b, c, d, e *big.Int) *big.Int {
	return hashN([]*big.Int{a, b, c, d, e})
}

// Hash16 hashes sixteen field elements, the arity used to collapse the 16
// per-chunk biometric sub-hashes into a single template commitment input.
func Hash16(elements [16]*big.Int) *big.Int {
	all := make([]*big.Int, 16)
	copy(all, elements[:])
	return hashN(all)
}

func hashN(elements []*big.Int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()
	for _, el := range elements {
		var fel fr.Element
		fel.SetBigInt(el)
		b := fel.Bytes()
		h.Write(b[:])
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}

// HashWithDomainTag hashes data with a domain separation tag prepended as the
// first Poseidon2 input element, followed by exactly numChunks elements of
// data (zero-padded when data is shorter, truncated when it is longer). Used
// for ticket leaves, the zero (padding) leaf hash of the Merkle accumulator,
// and biometric chunks whose length is neither 2 nor 16.
func HashWithDomainTag(tag int, elements []*big.Int, numChunks int) *big.Int {
	h := poseidon2.NewMerkleDamgardHasher()

	var tagFr fr.Element
	tagFr.SetInt64(int64(tag))
	tagBytes := tagFr.Bytes()
	h.Write(tagBytes[:])

	for i := 0; i < numChunks; i++ {
		var fel fr.Element
		if i < len(elements) {
			fel.SetBigInt(elements[i])
		}
		b := fel.Bytes()
		h.Write(b[:])
	}

	return new(big.Int).SetBytes(h.Sum(nil))
}

// ZeroLeafHash returns the domain-separated hash of an empty accumulator slot:
// H(DomainTagPadding, 0, 0, 0, 0, 0) — five zero elements match the five
// ticket fields a real leaf hashes alongside DomainTagReal, so a never-minted
// leaf can never collide with a real ticket under any salt.
func ZeroLeafHash() *big.Int {
	return HashWithDomainTag(DomainTagPadding, nil, 5)
}

// Params describes the fixed Poseidon2 parameter set every in-circuit hasher
// in this repository instantiates: width 2, 6 full rounds, 50 partial rounds.
// Changing any of these invalidates every previously produced commitment,
// leaf, and root — ArtifactManifest binds a hash of this struct into each
// compiled circuit's manifest so a parameter drift fails loudly instead of
// silently producing unverifiable proofs.
type Params struct {
	Width         int
	FullRounds    int
	PartialRounds int
}

// CurrentParams is the parameter set both circuits/ticket and
// circuits/ownership instantiate via poseidon2.NewPoseidon2FromParameters.
var CurrentParams = Params{Width: 2, FullRounds: 6, PartialRounds: 50}

// ParamsHash returns a stable, versioned fingerprint of CurrentParams for
// binding into pkg/setup.ArtifactManifest.
func ParamsHash() [32]byte {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(CurrentParams.Width))
	binary.BigEndian.PutUint64(buf[8:16], uint64(CurrentParams.FullRounds))
	binary.BigEndian.PutUint64(buf[16:24], uint64(CurrentParams.PartialRounds))
	return sha256.Sum256(buf[:])
}

// DeriveCommitment computes the binding hash commitment = Hash2(digest, salt).
// With digest = Hash16(templateHash) this is the biometric commitment
// Poseidon2(Poseidon16(templateHash), saltB), the same value circuits/ticket
// and circuits/ownership recompute in-circuit.
func DeriveCommitment(digest, salt *big.Int) *big.Int {
	return Hash2(digest, salt)
}
