// Package ticket defines the Fq field-element newtype and the ticket
// attribute set whose domain-tagged Poseidon hash (DomainTagReal followed by
// the five attributes, see Attributes.Leaf) is the accumulator leaf. The
// leaf is not a plain arity-5 hash of the attributes.
package ticket

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/trueticket/zkverify/pkg/poseidon"
)

// Fq is a canonicalized BN128 scalar field element. Constructors reduce
// modulo the field prime so an un-reduced value never crosses this boundary.
type Fq struct {
	v fr.Element
}

// NewFq reduces x modulo the scalar field and returns the canonical Fq.
func NewFq(x *big.Int) Fq {
	var f Fq
	f.v.SetBigInt(x)
	return f
}

// RandomFq draws a cryptographically strong uniform Fq, used for ticket
// salts and the biometric enrollment salt.
func RandomFq() (Fq, error) {
	n, err := rand.Int(rand.Reader, ecc.BN254.ScalarField())
	if err != nil {
		return Fq{}, fmt.Errorf("ticket: sample random field element: %w", err)
	}
	return NewFq(n), nil
}

// BigInt returns the canonical representative as a big.Int.
func (f Fq) BigInt() *big.Int {
	out := new(big.Int)
	f.v.BigInt(out)
	return out
}

// Bytes returns the canonical fixed-width 32-byte big-endian encoding.
func (f Fq) Bytes() [32]byte {
	return f.v.Bytes()
}

// Equal reports field equality. fr.Element already stores a canonical
// (Montgomery-reduced) representative, so this comparison is over fixed-width
// limbs regardless of input magnitude.
func (f Fq) Equal(other Fq) bool {
	return f.v.Equal(&other.v)
}

// Add returns f + other in the scalar field.
func (f Fq) Add(other Fq) Fq {
	var out Fq
	out.v.Add(&f.v, &other.v)
	return out
}

// Mul returns f * other in the scalar field.
func (f Fq) Mul(other Fq) Fq {
	var out Fq
	out.v.Mul(&f.v, &other.v)
	return out
}

// Inverse returns the multiplicative inverse of f; the inverse of zero is
// zero, following fr.Element.
func (f Fq) Inverse() Fq {
	var out Fq
	out.v.Inverse(&f.v)
	return out
}

// Attributes is the ticket's private data, the subject of the ownership
// proof. Salt is known only to the holder and guarantees leaves are not
// correlatable across events or by the verifier.
type Attributes struct {
	TokenID       Fq
	EventID       Fq
	Tier          Fq
	OriginalPrice Fq
	Salt          Fq
}

// Leaf computes leaf = H(DomainTagReal, tokenId, eventId, tier, originalPrice, salt),
// the accumulator leaf value. Pure and deterministic.
// The domain tag keeps a real leaf from ever landing on poseidon.ZeroLeafHash,
// regardless of what a malicious holder picks for the five ticket fields.
func (a Attributes) Leaf() Fq {
	fields := []*big.Int{a.TokenID.BigInt(), a.EventID.BigInt(), a.Tier.BigInt(), a.OriginalPrice.BigInt(), a.Salt.BigInt()}
	h := poseidon.HashWithDomainTag(poseidon.DomainTagReal, fields, 5)
	return NewFq(h)
}
