package merkle_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/trueticket/zkverify/pkg/merkle"
	"github.com/trueticket/zkverify/pkg/poseidon"
)

func leafHashes(n int) []*big.Int {
	out := make([]*big.Int, n)
	for i := range out {
		out[i] = poseidon.HashWithDomainTag(poseidon.DomainTagReal, []*big.Int{big.NewInt(int64(i))}, 5)
	}
	return out
}

// TestMerkleSoundness checks that every leaf's proof verifies against the
// true root, and a substituted leaf never does.
func TestMerkleSoundness(t *testing.T) {
	leaves := leafHashes(8)
	tree, err := merkle.NewAccumulator(leaves)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	for i := range leaves {
		proof, err := tree.GetProof(i)
		if err != nil {
			t.Fatalf("GetProof(%d): %v", i, err)
		}
		if !merkle.VerifyProof(proof, tree.GetRoot()) {
			t.Fatalf("proof for leaf %d did not verify", i)
		}

		tampered := *proof
		tampered.Leaf = poseidon.HashWithDomainTag(poseidon.DomainTagReal, []*big.Int{big.NewInt(999)}, 5)
		if merkle.VerifyProof(&tampered, tree.GetRoot()) {
			t.Fatalf("tampered leaf unexpectedly verified at index %d", i)
		}
	}
}

// TestMerkleProofOutOfRange ensures GetProof fails for indices outside the
// fixed-depth accumulator's capacity.
func TestMerkleProofOutOfRange(t *testing.T) {
	tree, err := merkle.NewAccumulator(nil)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}
	if _, err := tree.GetProof(-1); err == nil {
		t.Fatal("expected error for negative index")
	}
	if _, err := tree.GetProof(merkle.Capacity); err == nil {
		t.Fatal("expected error for index == Capacity")
	}
}

// TestAppendGrowsRootDeterministically checks that appending leaves
// one-at-a-time produces the same root as building the tree from the full
// leaf set up front.
func TestAppendGrowsRootDeterministically(t *testing.T) {
	leaves := leafHashes(5)

	built, err := merkle.NewAccumulator(leaves)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	appended, err := merkle.NewAccumulator(nil)
	if err != nil {
		t.Fatalf("NewAccumulator(nil): %v", err)
	}
	for i, leaf := range leaves {
		idx, err := appended.Append(leaf)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if idx != i {
			t.Fatalf("Append returned index %d, want %d", idx, i)
		}
	}

	if built.GetRoot().Cmp(appended.GetRoot()) != 0 {
		t.Fatalf("root mismatch: built=%s appended=%s", built.GetRoot(), appended.GetRoot())
	}
}

// TestRootHistoryWindow checks that a proof against a root still within the
// retained window accepts; one rotated out does not.
func TestRootHistoryWindow(t *testing.T) {
	const historySize = 16
	history := merkle.NewRootHistory(historySize)

	originalRoot := big.NewInt(1)
	history.RecordRoot(originalRoot)

	// Rotate through historySize-1 more roots: originalRoot should still be
	// within the window (it's the oldest of exactly historySize entries).
	for i := 2; i <= historySize; i++ {
		history.RecordRoot(big.NewInt(int64(i)))
	}
	if !history.Accepts(originalRoot) {
		t.Fatal("root at the edge of the retained window was rejected")
	}

	// One more rotation evicts originalRoot.
	history.RecordRoot(big.NewInt(historySize + 1))
	if history.Accepts(originalRoot) {
		t.Fatal("root outside the retained window was incorrectly accepted")
	}
}

// TestAccumulatorSaveLoad verifies binary Save/Load round-trip fidelity.
func TestAccumulatorSaveLoad(t *testing.T) {
	leaves := leafHashes(6)
	original, err := merkle.NewAccumulator(leaves)
	if err != nil {
		t.Fatalf("NewAccumulator: %v", err)
	}

	var buf bytes.Buffer
	if err := original.Save(&buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := merkle.Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Root.Cmp(original.Root) != 0 {
		t.Fatalf("root mismatch after load: got %s want %s", loaded.Root, original.Root)
	}
	if loaded.NumLeaves != original.NumLeaves {
		t.Fatalf("numLeaves mismatch: got %d want %d", loaded.NumLeaves, original.NumLeaves)
	}

	for i := range leaves {
		proof, err := loaded.GetProof(i)
		if err != nil {
			t.Fatalf("GetProof(%d) after load: %v", i, err)
		}
		if !merkle.VerifyProof(proof, loaded.Root) {
			t.Fatalf("proof %d did not verify after load", i)
		}
	}
}
