// Command circuitctl is the circuit registry CLI: dev setup, MPC ceremony
// subcommands, and key export for every circuit this repository compiles.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	circuitownership "github.com/trueticket/zkverify/circuits/ownership"
	circuitticket "github.com/trueticket/zkverify/circuits/ticket"
	"github.com/consensys/gnark/frontend"

	"github.com/trueticket/zkverify/pkg/setup"
)

func init() {
	out := colorable.NewColorableStdout()
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
}

// circuitEntry pairs a circuit constructor with its proof backend.
type circuitEntry struct {
	NewCircuit func() frontend.Circuit
	Backend    setup.Backend
}

// circuitRegistry maps circuit names to this repository's two circuits: the
// Groth16 check-in relation and the PLONK enrollment-key-ownership relation.
var circuitRegistry = map[string]circuitEntry{
	"ticket":    {NewCircuit: func() frontend.Circuit { return &circuitticket.Circuit{} }, Backend: setup.Groth16Backend},
	"ownership": {NewCircuit: func() frontend.Circuit { return &circuitownership.Circuit{} }, Backend: setup.PlonkBackend},
}

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	circuitName := os.Args[1]
	entry, ok := circuitRegistry[circuitName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown circuit: %s\n", circuitName)
		fmt.Fprintf(os.Stderr, "Available circuits: ")
		for name := range circuitRegistry {
			fmt.Fprintf(os.Stderr, "%s ", name)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}

	switch os.Args[2] {
	case "dev":
		switch entry.Backend {
		case setup.Groth16Backend:
			if err := setup.DevSetup(entry.NewCircuit(), ".", circuitName); err != nil {
				log.Fatal().Err(err).Msg("dev setup failed")
			}
		case setup.PlonkBackend:
			if err := setup.PlonkDevSetup(entry.NewCircuit(), ".", circuitName); err != nil {
				log.Fatal().Err(err).Msg("dev setup failed")
			}
		}
	case "ceremony":
		if entry.Backend != setup.Groth16Backend {
			log.Fatal().Msgf("MPC ceremony is only supported for Groth16 circuits. %q uses PLONK (universal SRS).", circuitName)
		}
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		handleCeremony(circuitName, entry.NewCircuit)
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleCeremony(circuitName string, newCircuit func() frontend.Circuit) {
	switch os.Args[3] {
	case "p1-init":
		if err := setup.CeremonyP1Init(newCircuit()); err != nil {
			log.Fatal().Err(err).Msg("ceremony phase 1 init failed")
		}
	case "p1-contribute":
		if err := setup.CeremonyP1Contribute(); err != nil {
			log.Fatal().Err(err).Msg("ceremony phase 1 contribution failed")
		}
	case "p1-verify":
		if len(os.Args) < 5 {
			log.Fatal().Msgf("usage: go run ./cmd/circuitctl %s ceremony p1-verify BEACON_HEX", circuitName)
		}
		if err := setup.CeremonyP1Verify(newCircuit(), os.Args[4]); err != nil {
			log.Fatal().Err(err).Msg("ceremony phase 1 verification failed")
		}
	case "p2-init":
		if err := setup.CeremonyP2Init(newCircuit()); err != nil {
			log.Fatal().Err(err).Msg("ceremony phase 2 init failed")
		}
	case "p2-contribute":
		if err := setup.CeremonyP2Contribute(); err != nil {
			log.Fatal().Err(err).Msg("ceremony phase 2 contribution failed")
		}
	case "p2-verify":
		if len(os.Args) < 5 {
			log.Fatal().Msgf("usage: go run ./cmd/circuitctl %s ceremony p2-verify BEACON_HEX", circuitName)
		}
		if err := setup.CeremonyP2Verify(newCircuit(), os.Args[4], ".", circuitName); err != nil {
			log.Fatal().Err(err).Msg("ceremony phase 2 verification failed")
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage:
  go run ./cmd/circuitctl <circuit> dev                        Dev mode (single-party/unsafe setup, NOT for production)

  go run ./cmd/circuitctl <circuit> ceremony p1-init           Initialize Phase 1 (Powers of Tau)
  go run ./cmd/circuitctl <circuit> ceremony p1-contribute     Add a Phase 1 contribution
  go run ./cmd/circuitctl <circuit> ceremony p1-verify HEX     Verify Phase 1 & seal with random beacon

  go run ./cmd/circuitctl <circuit> ceremony p2-init           Initialize Phase 2 (circuit-specific)
  go run ./cmd/circuitctl <circuit> ceremony p2-contribute     Add a Phase 2 contribution
  go run ./cmd/circuitctl <circuit> ceremony p2-verify HEX     Verify Phase 2, seal & export keys

Available circuits: ticket (Groth16), ownership (PLONK)

Note: MPC ceremony is only available for Groth16 circuits.
      PLONK circuits use a universal SRS and only need "dev" setup.

Ceremony workflow (Groth16 only):
  1. p1-init          Coordinator creates the initial Phase 1 state
  2. p1-contribute    Each participant contributes (repeat N times)
  3. p1-verify        Coordinator verifies all & seals with a public beacon
  4. p2-init          Coordinator initializes Phase 2 with the circuit
  5. p2-contribute    Each participant contributes (repeat M times)
  6. p2-verify        Coordinator verifies all, seals, and exports final keys

Security: 1-of-N honest — if any single contributor is honest, the setup is secure.
Beacon: use a public randomness source (e.g. League of Entropy) evaluated AFTER the last contribution.`)
}
