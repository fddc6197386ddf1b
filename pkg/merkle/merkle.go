// Package merkle implements the per-event ticket membership accumulator: a
// fixed-depth-20 Poseidon Merkle tree over ticket leaves, with a bounded root
// history so in-flight proofs survive a root rotation caused by a later mint.
package merkle

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/trueticket/zkverify/pkg/poseidon"
)

// Depth is fixed at 20 for circuit compatibility: the circuit consumes path
// arrays of exactly this length (capacity 2^20 ≈ 1.05M leaves per event).
const Depth = 20

// Capacity is the number of leaf slots an accumulator of Depth 20 holds.
const Capacity = 1 << Depth

// DefaultRootHistorySize is the number of recent roots retained per event.
// Configurable; defaults to at least 16.
const DefaultRootHistorySize = 16

// Accumulator is a fixed-depth sparse Merkle tree where only minted (real)
// leaves are stored; every other position resolves to the precomputed
// zero-subtree hash at that level.
type Accumulator struct {
	mu sync.RWMutex

	Root       *big.Int
	Depth      int
	NumLeaves  int                // next free leaf index == NumLeaves while minting is append-only
	Levels     []map[int]*big.Int // Levels[0] = leaves, Levels[Depth] holds the single root entry
	ZeroHashes []*big.Int         // ZeroHashes[i] = hash of an all-zero subtree at level i
}

// PrecomputeZeroHashes builds the zero-subtree hash chain:
//
//	zeroHashes[0] = zeroLeafHash
//	zeroHashes[i] = Hash2(zeroHashes[i-1], zeroHashes[i-1])
func PrecomputeZeroHashes(depth int, zeroLeafHash *big.Int) []*big.Int {
	zh := make([]*big.Int, depth+1)
	zh[0] = new(big.Int).Set(zeroLeafHash)
	for i := 1; i <= depth; i++ {
		zh[i] = poseidon.Hash2(zh[i-1], zh[i-1])
	}
	return zh
}

// NewAccumulator builds a fixed-depth-20 accumulator from an ordered list of
// already-hashed ticket leaves. Leaf i occupies index i; every other index up
// to Capacity resolves to the zero-subtree chain. Fails if more leaves than
// Capacity are supplied.
func NewAccumulator(leafHashes []*big.Int) (*Accumulator, error) {
	if len(leafHashes) > Capacity {
		return nil, fmt.Errorf("merkle: %d leaves exceeds capacity %d", len(leafHashes), Capacity)
	}

	zeroHashes := PrecomputeZeroHashes(Depth, poseidon.ZeroLeafHash())

	levels := make([]map[int]*big.Int, Depth+1)
	for i := range levels {
		levels[i] = make(map[int]*big.Int)
	}

	for i, h := range leafHashes {
		levels[0][i] = h
	}

	buildLevels(levels, zeroHashes, Depth)

	root, ok := levels[Depth][0]
	if !ok {
		root = zeroHashes[Depth]
	}

	return &Accumulator{
		Root:       root,
		Depth:      Depth,
		NumLeaves:  len(leafHashes),
		Levels:     levels,
		ZeroHashes: zeroHashes,
	}, nil
}

// buildLevels recomputes every internal level bottom-up from whatever leaf
// entries are populated in levels[0].
func buildLevels(levels []map[int]*big.Int, zeroHashes []*big.Int, depth int) {
	for lvl := 0; lvl < depth; lvl++ {
		parentIndices := make(map[int]bool)
		for idx := range levels[lvl] {
			parentIndices[idx/2] = true
		}
		for parentIdx := range parentIndices {
			leftIdx := parentIdx * 2
			rightIdx := parentIdx*2 + 1

			left, ok := levels[lvl][leftIdx]
			if !ok {
				left = zeroHashes[lvl]
			}
			right, ok := levels[lvl][rightIdx]
			if !ok {
				right = zeroHashes[lvl]
			}

			levels[lvl+1][parentIdx] = poseidon.Hash2(left, right)
		}
	}
}

// Append writes leaf at the first free slot (NumLeaves) and recomputes every
// ancestor on the path to the root. Fails when the accumulator is full.
// Rebuilds only the affected path rather than the whole tree.
func (a *Accumulator) Append(leaf *big.Int) (index int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.NumLeaves >= Capacity {
		return 0, fmt.Errorf("merkle: accumulator is full at capacity %d", Capacity)
	}

	idx := a.NumLeaves
	a.Levels[0][idx] = leaf

	cur := idx
	for lvl := 0; lvl < a.Depth; lvl++ {
		var siblingIdx int
		if cur%2 == 0 {
			siblingIdx = cur + 1
		} else {
			siblingIdx = cur - 1
		}
		sib, ok := a.Levels[lvl][siblingIdx]
		if !ok {
			sib = a.ZeroHashes[lvl]
		}

		var left, right *big.Int
		if cur%2 == 0 {
			left, right = a.Levels[lvl][cur], sib
		} else {
			left, right = sib, a.Levels[lvl][cur]
		}
		parentIdx := cur / 2
		a.Levels[lvl+1][parentIdx] = poseidon.Hash2(left, right)
		cur = parentIdx
	}

	a.NumLeaves++
	a.Root = a.Levels[a.Depth][0]
	return idx, nil
}

// GetRoot returns the current root under a read lock.
func (a *Accumulator) GetRoot() *big.Int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.Root
}

// Proof is the fixed-size Merkle opening for one leaf index: D sibling
// elements plus their direction bits.
//
//	pathIndices[i] = 0  ⇒ sibling is right, current is left
//	pathIndices[i] = 1  ⇒ sibling is left,  current is right
type Proof struct {
	Leaf        *big.Int
	Root        *big.Int
	PathElement [Depth]*big.Int
	PathIndex   [Depth]int
}

// GetProof returns a fixed-size Merkle proof for the leaf at the given index.
// Fails if index is outside [0, Capacity).
func (a *Accumulator) GetProof(leafIndex int) (*Proof, error) {
	if leafIndex < 0 || leafIndex >= Capacity {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0, %d)", leafIndex, Capacity)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	var p Proof
	p.Leaf = a.GetLeafHash(leafIndex)
	p.Root = a.Root

	idx := leafIndex
	for lvl := 0; lvl < a.Depth; lvl++ {
		var siblingIdx int
		if idx%2 == 0 {
			siblingIdx = idx + 1
			p.PathIndex[lvl] = 0
		} else {
			siblingIdx = idx - 1
			p.PathIndex[lvl] = 1
		}

		sib, ok := a.Levels[lvl][siblingIdx]
		if !ok {
			sib = a.ZeroHashes[lvl]
		}
		p.PathElement[lvl] = sib

		idx /= 2
	}

	return &p, nil
}

// GetLeafHash returns the hash at the given leaf index, using the zero leaf
// hash for positions beyond the real (minted) leaves. Caller must already
// hold a.mu for reads that need it; exported for direct use after GetProof's
// lock has been released by callers that already have a leaf reference.
func (a *Accumulator) GetLeafHash(leafIndex int) *big.Int {
	h, ok := a.Levels[0][leafIndex]
	if !ok {
		return a.ZeroHashes[0]
	}
	return h
}

// VerifyProof recomputes the root from leaf + path and compares it against
// the expected root. Comparison is constant-time over the fixed 32-byte
// big-endian encodings of the two field-reduced values.
func VerifyProof(p *Proof, expectedRoot *big.Int) bool {
	current := p.Leaf
	for i := 0; i < Depth; i++ {
		sibling := p.PathElement[i]
		if p.PathIndex[i] == 1 {
			current = poseidon.Hash2(sibling, current)
		} else {
			current = poseidon.Hash2(current, sibling)
		}
	}
	var got, want fr.Element
	got.SetBigInt(current)
	want.SetBigInt(expectedRoot)
	gb, wb := got.Bytes(), want.Bytes()
	return subtle.ConstantTimeCompare(gb[:], wb[:]) == 1
}

// ---------------------------------------------------------------------------
// Root history (per-event bounded ring buffer)
// ---------------------------------------------------------------------------

// RootHistory retains the last N roots an event's accumulator has produced,
// so the verifier can accept any proof built against a still-retained root.
type RootHistory struct {
	mu      sync.RWMutex
	size    int
	roots   []*big.Int
	current int // index of most recent root within roots, or -1 if empty
}

// NewRootHistory creates a root history bounded to size entries. size <= 0
// falls back to DefaultRootHistorySize.
func NewRootHistory(size int) *RootHistory {
	if size <= 0 {
		size = DefaultRootHistorySize
	}
	return &RootHistory{size: size, roots: make([]*big.Int, 0, size), current: -1}
}

// RecordRoot appends root, evicting the oldest entry once the history
// exceeds its bound. Root history updates are strictly ordered.
func (h *RootHistory) RecordRoot(root *big.Int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.roots = append(h.roots, root)
	if len(h.roots) > h.size {
		h.roots = h.roots[len(h.roots)-h.size:]
	}
	h.current = len(h.roots) - 1
}

// Accepts reports whether root is the current root or within the retained
// history window. Roots never recorded, or evicted past the window, reject.
func (h *RootHistory) Accepts(root *big.Int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, r := range h.roots {
		if r.Cmp(root) == 0 {
			return true
		}
	}
	return false
}

// Current returns the most recently recorded root, or nil if none yet.
func (h *RootHistory) Current() *big.Int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.current < 0 {
		return nil
	}
	return h.roots[h.current]
}

// ---------------------------------------------------------------------------
// Accumulator serialization (binary format for persistence)
// ---------------------------------------------------------------------------
//
// Format:
//   uint32(depth) | uint32(numLeaves)
//   For each level 0..depth:
//     uint32(count)
//     For each entry:
//       uint32(index) | [32]byte(hash as big-endian fr.Element)
//
// Zero hashes are NOT stored — they are recomputed from the canonical zero
// leaf hash on load.

// Save writes the accumulator to w in a deterministic binary format.
func (a *Accumulator) Save(w io.Writer) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := binary.Write(w, binary.BigEndian, uint32(a.Depth)); err != nil {
		return fmt.Errorf("write depth: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(a.NumLeaves)); err != nil {
		return fmt.Errorf("write numLeaves: %w", err)
	}

	for lvl := 0; lvl <= a.Depth; lvl++ {
		m := a.Levels[lvl]
		if err := binary.Write(w, binary.BigEndian, uint32(len(m))); err != nil {
			return fmt.Errorf("write level %d count: %w", lvl, err)
		}

		indices := make([]int, 0, len(m))
		for idx := range m {
			indices = append(indices, idx)
		}
		sortInts(indices)

		for _, idx := range indices {
			if err := binary.Write(w, binary.BigEndian, uint32(idx)); err != nil {
				return fmt.Errorf("write level %d index %d: %w", lvl, idx, err)
			}
			var elem fr.Element
			elem.SetBigInt(m[idx])
			b := elem.Bytes()
			if _, err := w.Write(b[:]); err != nil {
				return fmt.Errorf("write level %d hash %d: %w", lvl, idx, err)
			}
		}
	}

	return nil
}

// Load reads an accumulator from r that was written by Save.
func Load(r io.Reader) (*Accumulator, error) {
	var depth, numLeaves uint32
	if err := binary.Read(r, binary.BigEndian, &depth); err != nil {
		return nil, fmt.Errorf("read depth: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &numLeaves); err != nil {
		return nil, fmt.Errorf("read numLeaves: %w", err)
	}

	zeroHashes := PrecomputeZeroHashes(int(depth), poseidon.ZeroLeafHash())

	levels := make([]map[int]*big.Int, depth+1)
	for lvl := 0; lvl <= int(depth); lvl++ {
		var count uint32
		if err := binary.Read(r, binary.BigEndian, &count); err != nil {
			return nil, fmt.Errorf("read level %d count: %w", lvl, err)
		}

		m := make(map[int]*big.Int, int(count))
		var hashBuf [32]byte
		for j := 0; j < int(count); j++ {
			var idx uint32
			if err := binary.Read(r, binary.BigEndian, &idx); err != nil {
				return nil, fmt.Errorf("read level %d index: %w", lvl, err)
			}
			if _, err := io.ReadFull(r, hashBuf[:]); err != nil {
				return nil, fmt.Errorf("read level %d hash: %w", lvl, err)
			}
			var elem fr.Element
			elem.SetBytes(hashBuf[:])
			m[int(idx)] = new(big.Int)
			elem.BigInt(m[int(idx)])
		}
		levels[lvl] = m
	}

	root, ok := levels[depth][0]
	if !ok {
		root = zeroHashes[depth]
	}

	return &Accumulator{
		Root:       root,
		Depth:      int(depth),
		NumLeaves:  int(numLeaves),
		Levels:     levels,
		ZeroHashes: zeroHashes,
	}, nil
}

// sortInts sorts a slice of ints ascending (insertion sort; per-level entry
// counts are small relative to the tree's overall size).
func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		key := s[i]
		j := i - 1
		for j >= 0 && s[j] > key {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = key
	}
}
