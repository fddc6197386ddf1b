// Package biometric reduces a captured biometric template into the fixed
// 16-wide field-element vector the circuit consumes, and builds/verifies the
// commitment stored in place of the template itself.
package biometric

import (
	"crypto/subtle"
	"fmt"
	"math"
	"math/big"

	"github.com/trueticket/zkverify/pkg/poseidon"
	"github.com/trueticket/zkverify/pkg/ticket"
)

// ScaleFactor is the fixed integer scale applied to each real-valued template
// component before rounding to an integer.
const ScaleFactor = 1_000_000

// NumChunks is the fixed width of a processed template hash.
const NumChunks = 16

// TemplateHash is the canonicalized ZK representation of a device-side
// biometric template.
type TemplateHash [NumChunks]ticket.Fq

// ProcessTemplate deterministically reduces a raw real-valued template into
// 16 field elements: scale by ScaleFactor and round, partition into 16
// contiguous chunks (zero-padded to at least length 2), and collapse each
// chunk to one element with collapseChunk.
func ProcessTemplate(raw []float64) (TemplateHash, error) {
	var out TemplateHash

	scaled := make([]*big.Int, len(raw))
	for i, x := range raw {
		scaled[i] = new(big.Int).SetInt64(int64(math.Round(x * ScaleFactor)))
	}

	chunkLen := (len(scaled) + NumChunks - 1) / NumChunks
	if chunkLen < 2 {
		chunkLen = 2
	}

	for c := 0; c < NumChunks; c++ {
		start := c * chunkLen
		chunk := make([]*big.Int, chunkLen)
		for i := range chunk {
			idx := start + i
			if idx < len(scaled) {
				chunk[i] = scaled[idx]
			} else {
				chunk[i] = big.NewInt(0)
			}
		}
		out[c] = ticket.NewFq(collapseChunk(chunk))
	}

	return out, nil
}

// collapseChunk hashes a variable-length (but here always padded to at least
// 2) element group: a chunk of length 2 uses Hash2, a chunk of length 16 uses
// Hash16, and a chunk of any other length k is hashed as DomainTagReal
// followed by its k elements (HashWithDomainTag).
func collapseChunk(chunk []*big.Int) *big.Int {
	switch len(chunk) {
	case 2:
		return poseidon.Hash2(chunk[0], chunk[1])
	case 16:
		var arr [16]*big.Int
		copy(arr[:], chunk)
		return poseidon.Hash16(arr)
	default:
		return poseidon.HashWithDomainTag(poseidon.DomainTagReal, chunk, len(chunk))
	}
}

// Commitment is the enrollment record stored server-side or on-chain; the
// template and salt themselves never leave the holder's device.
type Commitment struct {
	Value        ticket.Fq
	TemplateHash TemplateHash
	Salt         ticket.Fq
	EnrolledAt   int64
}

// MakeCommitment computes commitment = Poseidon2(Poseidon16(templateHash), salt).
// If salt is nil, a uniformly random Fq is drawn.
func MakeCommitment(th TemplateHash, salt *ticket.Fq, enrolledAt int64) (Commitment, error) {
	var s ticket.Fq
	if salt != nil {
		s = *salt
	} else {
		var err error
		s, err = ticket.RandomFq()
		if err != nil {
			return Commitment{}, fmt.Errorf("biometric: draw enrollment salt: %w", err)
		}
	}

	digest := Digest(th)
	commitment := poseidon.DeriveCommitment(digest, s.BigInt())

	return Commitment{
		Value:        ticket.NewFq(commitment),
		TemplateHash: th,
		Salt:         s,
		EnrolledAt:   enrolledAt,
	}, nil
}

// VerifyCommitment recomputes the commitment from templateHash and salt and
// compares it against expected in constant time over the fixed
// field-element size.
func VerifyCommitment(th TemplateHash, salt ticket.Fq, expected ticket.Fq) bool {
	digest := Digest(th)
	recomputed := ticket.NewFq(poseidon.DeriveCommitment(digest, salt.BigInt()))
	rb, eb := recomputed.Bytes(), expected.Bytes()
	return subtle.ConstantTimeCompare(rb[:], eb[:]) == 1
}

// Digest collapses a template hash to the single arity-16 Poseidon output
// every commitment is built over; the enrollment opening proof takes this
// value as its private witness.
func Digest(th TemplateHash) *big.Int {
	var arr [16]*big.Int
	for i, f := range th {
		arr[i] = f.BigInt()
	}
	return poseidon.Hash16(arr)
}

// elementSize is the fixed per-element width of a serialized template hash.
const elementSize = 32

// MarshalTemplateHash serializes a template hash for device-local storage as
// 16 fixed-width 32-byte big-endian field elements. The template hash never
// leaves the holder's device; this encoding exists only so the device can
// persist it between enrollment and check-in.
func MarshalTemplateHash(th TemplateHash) []byte {
	out := make([]byte, 0, NumChunks*elementSize)
	for _, f := range th {
		b := f.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// UnmarshalTemplateHash reverses MarshalTemplateHash.
func UnmarshalTemplateHash(data []byte) (TemplateHash, error) {
	var th TemplateHash
	if len(data) != NumChunks*elementSize {
		return th, fmt.Errorf("biometric: serialized template hash must be %d bytes, got %d", NumChunks*elementSize, len(data))
	}
	for i := range th {
		v := new(big.Int).SetBytes(data[i*elementSize : (i+1)*elementSize])
		th[i] = ticket.NewFq(v)
	}
	return th, nil
}

// EnrollmentRecord is the persisted collaborator shape: only the user id,
// commitment, and enrollment timestamp are ever stored — never the
// template, never the salt.
type EnrollmentRecord struct {
	UserID     string
	Commitment ticket.Fq
	EnrolledAt int64
}

// CompareTemplates computes cosine similarity between two raw templates for
// local, non-ZK liveness/match UX only. It is never an input to any proof.
// Mismatched lengths are a fatal usage error.
func CompareTemplates(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("biometric: compareTemplates length mismatch: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// MatchThreshold is the recommended accept boundary for CompareTemplates.
const MatchThreshold = 0.7
