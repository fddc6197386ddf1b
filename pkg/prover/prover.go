// Package prover loads circuit artifacts lazily, caches them for process
// lifetime, and invokes Groth16 proving.
package prover

import (
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	groth16bn254 "github.com/consensys/gnark/backend/groth16/bn254"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"golang.org/x/sync/singleflight"

	circuitticket "github.com/trueticket/zkverify/circuits/ticket"
	"github.com/trueticket/zkverify/pkg/context"
	"github.com/trueticket/zkverify/pkg/setup"
)

// ErrArtifact is returned when circuit artifacts cannot be loaded.
var ErrArtifact = errors.New("prover: artifact load failed")

// ProofPackage is the native Groth16 proof plus the ordered public signals
// it was generated against.
type ProofPackage struct {
	Proof         groth16.Proof
	PublicSignals [7]*big.Int
}

// ContractProof is the ABI-layout view of a ProofPackage: pairing-curve
// points as the on-chain verifier expects them.
type ContractProof struct {
	PA         [2]*big.Int
	PB         [2][2]*big.Int
	PC         [2]*big.Int
	PubSignals [7]*big.Int
}

// Driver lazily loads and caches a single circuit's proving artifacts for
// the process lifetime. Concurrent Prove calls are safe; the artifact cache
// is read-only after its first successful load.
type Driver struct {
	dir         string
	circuitName string

	group  singleflight.Group
	loaded atomic.Bool

	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

// NewDriver constructs a Driver that will lazily load circuitName's artifacts
// from dir on first Prove call.
func NewDriver(dir, circuitName string) *Driver {
	return &Driver{dir: dir, circuitName: circuitName}
}

// ensureLoaded compiles the circuit and loads its proving/verifying keys
// exactly once, collapsing concurrent cold-cache callers into a single disk
// load via singleflight: artifacts are immutable after initialization and
// freely shared under concurrent access.
func (d *Driver) ensureLoaded(newCircuit func() frontend.Circuit) error {
	if d.loaded.Load() {
		return nil
	}

	_, err, _ := d.group.Do("load", func() (interface{}, error) {
		if d.loaded.Load() {
			return nil, nil
		}

		ccs, err := setup.CompileCircuit(newCircuit())
		if err != nil {
			return nil, fmt.Errorf("%w: compile circuit: %v", ErrArtifact, err)
		}

		pk, vk, err := setup.LoadKeys(d.dir, d.circuitName)
		if err != nil {
			return nil, fmt.Errorf("%w: load keys: %v", ErrArtifact, err)
		}

		manifest, err := setup.LoadManifest(d.dir, d.circuitName)
		if err != nil {
			return nil, fmt.Errorf("%w: load manifest: %v", ErrArtifact, err)
		}
		if err := manifest.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrArtifact, err)
		}

		d.ccs = ccs
		d.pk = pk
		d.vk = vk
		d.loaded.Store(true)
		return nil, nil
	})
	return err
}

// Prove assembles the proof for an already-validated witness (see
// pkg/assembler). Proof generation itself is independent of the verifier's
// root history and nonce ledger.
func (d *Driver) Prove(result *circuitticket.Result) (*ProofPackage, error) {
	if err := d.ensureLoaded(func() frontend.Circuit { return &circuitticket.Circuit{} }); err != nil {
		return nil, err
	}

	fullWitness, err := frontend.NewWitness(&result.Assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("prover: build witness: %w", err)
	}

	proof, err := groth16.Prove(d.ccs, d.pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("prover: prove: %w", err)
	}

	return &ProofPackage{Proof: proof, PublicSignals: result.PublicSignals}, nil
}

// EstimatedLatency is a purely informational heuristic based on available
// parallelism — proving a circuit this small typically lands in the low
// single-digit seconds on a modern multi-core machine.
func (d *Driver) EstimatedLatency() time.Duration {
	cores := runtime.NumCPU()
	base := 8 * time.Second
	if cores <= 1 {
		return base
	}
	scaled := base / time.Duration(cores)
	if scaled < 500*time.Millisecond {
		scaled = 500 * time.Millisecond
	}
	return scaled
}

// FormatForContract converts a ProofPackage into the ABI layout the on-chain
// verifier expects. pB is transposed within each coordinate pair to match
// the Solidity pairing precompile's layout — a contract-boundary quirk, not
// an algorithmic change.
func FormatForContract(pkg *ProofPackage) (*ContractProof, error) {
	bn254Proof, ok := pkg.Proof.(*groth16bn254.Proof)
	if !ok {
		return nil, fmt.Errorf("prover: unexpected proof implementation %T", pkg.Proof)
	}

	aX, aY := new(big.Int), new(big.Int)
	bn254Proof.Ar.X.BigInt(aX)
	bn254Proof.Ar.Y.BigInt(aY)

	bX0, bX1 := new(big.Int), new(big.Int)
	bY0, bY1 := new(big.Int), new(big.Int)
	bn254Proof.Bs.X.A0.BigInt(bX0)
	bn254Proof.Bs.X.A1.BigInt(bX1)
	bn254Proof.Bs.Y.A0.BigInt(bY0)
	bn254Proof.Bs.Y.A1.BigInt(bY1)

	cX, cY := new(big.Int), new(big.Int)
	bn254Proof.Krs.X.BigInt(cX)
	bn254Proof.Krs.Y.BigInt(cY)

	return &ContractProof{
		PA:         [2]*big.Int{aX, aY},
		PB:         [2][2]*big.Int{{bX1, bX0}, {bY1, bY0}},
		PC:         [2]*big.Int{cX, cY},
		PubSignals: pkg.PublicSignals,
	}, nil
}

// VerifyOffChain re-checks a ProofPackage against a Context's verifying key,
// the same cryptographic gate the on-chain contract performs.
func VerifyOffChain(ctx *context.Context, pkg *ProofPackage) error {
	publicWitness, err := publicWitnessFromSignals(pkg.PublicSignals)
	if err != nil {
		return err
	}
	if err := groth16.Verify(pkg.Proof, ctx.VerifyingKey, publicWitness); err != nil {
		return fmt.Errorf("prover: off-chain verify: %w", err)
	}
	return nil
}

// publicWitnessFromSignals rebuilds the public-only witness view a verifier
// checks against, from nothing but the 7 ordered public signals.
func publicWitnessFromSignals(signals [7]*big.Int) (witness.Witness, error) {
	var assignment circuitticket.Circuit
	assignment.Valid = signals[0]
	assignment.MerkleRoot = signals[1]
	assignment.BiometricCommitment = signals[2]
	assignment.EventID = signals[3]
	assignment.CurrentTimestamp = signals[4]
	assignment.Nonce = signals[5]
	assignment.NonceExpiry = signals[6]

	w, err := frontend.NewWitness(&assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, fmt.Errorf("prover: build public witness: %w", err)
	}
	return w, nil
}
