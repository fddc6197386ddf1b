// Command verifyctl drives the verifier side of the pipeline against JSON
// fixtures: "fixture" builds a deterministic end-to-end sample (ticket mint,
// enrollment, proof) and writes it to disk; "verify" loads a fixture and runs
// it through the nine-gate verifier, reporting the first failing gate's
// reason.
package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	circuitticket "github.com/trueticket/zkverify/circuits/ticket"
	"github.com/trueticket/zkverify/pkg/assembler"
	"github.com/trueticket/zkverify/pkg/biometric"
	"github.com/trueticket/zkverify/pkg/context"
	"github.com/trueticket/zkverify/pkg/merkle"
	"github.com/trueticket/zkverify/pkg/prover"
	"github.com/trueticket/zkverify/pkg/ticket"
	"github.com/trueticket/zkverify/pkg/verifier"
)

func init() {
	out := colorable.NewColorableStdout()
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}

// ProofFixture is the JSON-serialized form of a proof package a holder's
// device would submit to a verifier: an event id, the proof, and the seven
// public signals as decimal strings.
type ProofFixture struct {
	EventID       string   `json:"eventId"`
	TicketID      string   `json:"ticketId"`
	PublicSignals []string `json:"publicSignals"`
	ProofHex      string   `json:"proofHex"`
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "fixture":
		dir := "."
		if len(os.Args) >= 3 {
			dir = os.Args[2]
		}
		if err := buildFixture(dir); err != nil {
			log.Fatal().Err(err).Msg("fixture generation failed")
		}
	case "verify":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		if err := runVerify(os.Args[2], os.Args[3]); err != nil {
			log.Fatal().Err(err).Msg("verification failed")
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

// buildFixture mints one ticket at index 0, enrolls a biometric commitment,
// assembles and proves a check-in witness at wall-clock t with a 60s nonce
// expiry, and writes the resulting fixture to dir as
// ticket_proof_fixture.json. The accumulator and root history are not
// written.
func buildFixture(dir string) error {
	attrs := ticket.Attributes{
		TokenID:       ticket.NewFq(big.NewInt(1)),
		EventID:       ticket.NewFq(big.NewInt(12345)),
		Tier:          ticket.NewFq(big.NewInt(0)),
		OriginalPrice: ticket.NewFq(new(big.Int).SetUint64(100_000_000_000_000_000)),
	}
	salt, err := ticket.RandomFq()
	if err != nil {
		return fmt.Errorf("draw ticket salt: %w", err)
	}
	attrs.Salt = salt

	accum, err := merkle.NewAccumulator(nil)
	if err != nil {
		return fmt.Errorf("build accumulator: %w", err)
	}
	leafIndex, err := accum.Append(attrs.Leaf().BigInt())
	if err != nil {
		return fmt.Errorf("append leaf: %w", err)
	}

	rawTemplate := make([]float64, 128)
	for i := range rawTemplate {
		rawTemplate[i] = float64(i) / 37.0
	}
	templateHash, err := biometric.ProcessTemplate(rawTemplate)
	if err != nil {
		return fmt.Errorf("process template: %w", err)
	}
	commitment, err := biometric.MakeCommitment(templateHash, nil, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("make commitment: %w", err)
	}

	nonce, err := ticket.RandomFq()
	if err != nil {
		return fmt.Errorf("draw nonce: %w", err)
	}
	now := time.Now().Unix()

	witnessInput := circuitticket.WitnessInput{
		Attributes:       attrs,
		LeafIndex:        leafIndex,
		Accum:            accum,
		TemplateHash:     templateHash,
		BiometricSalt:    commitment.Salt,
		Commitment:       commitment.Value,
		EventID:          attrs.EventID,
		CurrentTimestamp: now,
		Nonce:            nonce,
		NonceExpiry:      now + 60,
	}

	result, err := assembler.Assemble(witnessInput)
	if err != nil {
		return fmt.Errorf("assemble witness: %w", err)
	}

	drv := prover.NewDriver(dir, "ticket")
	pkg, err := drv.Prove(result)
	if err != nil {
		return fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := pkg.Proof.WriteTo(&buf); err != nil {
		return fmt.Errorf("serialize proof: %w", err)
	}

	fixture := ProofFixture{
		EventID:       attrs.EventID.BigInt().String(),
		TicketID:      "unknown",
		PublicSignals: signalStrings(pkg.PublicSignals),
		ProofHex:      hex.EncodeToString(buf.Bytes()),
	}

	out, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	path := filepath.Join(dir, "ticket_proof_fixture.json")
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}

	log.Info().Str("path", path).Msg("fixture written")
	return nil
}

// runVerify loads a fixture written by "fixture" and runs it through the
// full nine-gate verifier, logging the outcome. dir must contain the
// circuit's exported keys and manifest (see cmd/circuitctl).
func runVerify(dir, fixturePath string) error {
	raw, err := os.ReadFile(fixturePath)
	if err != nil {
		return fmt.Errorf("read fixture: %w", err)
	}
	var fixture ProofFixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("unmarshal fixture: %w", err)
	}

	ctx, err := context.New(dir, "ticket")
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}

	proofBytes, err := hex.DecodeString(fixture.ProofHex)
	if err != nil {
		return fmt.Errorf("decode proof hex: %w", err)
	}
	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("deserialize proof: %w", err)
	}

	signals, err := parseSignals(fixture.PublicSignals)
	if err != nil {
		return fmt.Errorf("parse public signals: %w", err)
	}

	eventID, ok := new(big.Int).SetString(fixture.EventID, 10)
	if !ok {
		return fmt.Errorf("parse event id %q", fixture.EventID)
	}

	audit := verifier.NewAuditLog(os.Stdout)
	v := verifier.New(ctx, audit)
	v.RootHistoryFor(eventID).RecordRoot(signals[1])

	req := verifier.Request{
		EventID:       eventID,
		TicketID:      fixture.TicketID,
		Proof:         &prover.ProofPackage{Proof: proof, PublicSignals: signals},
		WallClockUnix: time.Now().Unix(),
	}

	if err := v.Verify(req); err != nil {
		log.Warn().Err(err).Msg("verification rejected")
		return err
	}
	log.Info().Msg("verification accepted")
	return nil
}

func signalStrings(signals [7]*big.Int) []string {
	out := make([]string, 7)
	for i, s := range signals {
		out[i] = s.String()
	}
	return out
}

func parseSignals(strs []string) ([7]*big.Int, error) {
	var out [7]*big.Int
	if len(strs) != 7 {
		return out, fmt.Errorf("expected 7 public signals, got %d", len(strs))
	}
	for i, s := range strs {
		n, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return out, fmt.Errorf("signal %d: invalid decimal %q", i, s)
		}
		out[i] = n
	}
	return out, nil
}

func printUsage() {
	fmt.Println(`Usage:
  go run ./cmd/verifyctl fixture [dir]            Build an S1-style proof fixture (needs ticket keys in dir)
  go run ./cmd/verifyctl verify <dir> <fixture>   Run a fixture through the nine-gate verifier

Keys must exist in dir (run: go run ./cmd/circuitctl ticket dev).
Prefer go test for the full property and scenario suite:
  go test ./pkg/verifier/... -v`)
}
