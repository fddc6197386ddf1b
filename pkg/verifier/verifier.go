// Package verifier implements the ordered nine-gate check of a proof
// package, the nonce ledger that makes each successful proof single-use,
// and the audit log.
package verifier

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/trueticket/zkverify/pkg/context"
	"github.com/trueticket/zkverify/pkg/merkle"
	"github.com/trueticket/zkverify/pkg/prover"
)

// Request is a verification attempt for one proof package against one
// event.
type Request struct {
	EventID       *big.Int
	TicketID      string // optional wire field; never bound into the proof and never recorded in the audit log
	Proof         *prover.ProofPackage
	WallClockUnix int64
}

// Verifier holds everything gates 3–9 need per event: the current root
// history and the shared nonce ledger, plus the immutable circuit artifacts
// owned by Context.
type Verifier struct {
	ctx *context.Context

	ledger *NonceLedger
	audit  *AuditLog

	// ExpiryMargin is subtracted from wall-clock time at gate 4 to tolerate
	// clock skew. It must never be added.
	ExpiryMargin int64

	// PurgeMargin is added to a nonce's expiry before it is eligible for
	// purge.
	PurgeMargin int64

	rootsMu sync.Mutex
	roots   map[string]*merkle.RootHistory
}

// New builds a Verifier bound to ctx, with a fresh nonce ledger and audit
// sink.
func New(ctx *context.Context, audit *AuditLog) *Verifier {
	return &Verifier{
		ctx:    ctx,
		ledger: NewNonceLedger(),
		audit:  audit,
		roots:  make(map[string]*merkle.RootHistory),
	}
}

// RootHistoryFor returns (creating if absent) the root history tracked for
// eventID, bounded to ctx.RootHistorySize.
func (v *Verifier) RootHistoryFor(eventID *big.Int) *merkle.RootHistory {
	v.rootsMu.Lock()
	defer v.rootsMu.Unlock()

	key := eventID.Text(16)
	h, ok := v.roots[key]
	if !ok {
		h = merkle.NewRootHistory(v.ctx.RootHistorySize)
		v.roots[key] = h
	}
	return h
}

// Verify runs the nine ordered gates below. A failure at any gate is
// terminal with the distinct error kind from errors.go; first failure wins.
func (v *Verifier) Verify(req Request) error {
	signals := req.Proof.PublicSignals

	// Gate 1: signal shape. [7]*big.Int with every entry set already
	// guarantees length and "valid field element" for any value built by
	// this codebase; a nil entry is the only way a malformed request slips
	// through the type system.
	for i, s := range signals {
		if s == nil {
			return v.reject(req, "shape", fmt.Errorf("%w: public signal %d is nil", ErrInputShape, i))
		}
	}

	// Gate 2: output.
	if signals[0].Cmp(big.NewInt(1)) != 0 {
		return v.reject(req, "output", fmt.Errorf("%w: circuit output valid != 1", ErrInvalidProof))
	}

	// Gate 3: event binding.
	if signals[3].Cmp(req.EventID) != 0 {
		return v.reject(req, "event", fmt.Errorf("%w: proof bound to a different event", ErrEventMismatch))
	}

	// Gate 4: expiry, with a clock-skew margin only ever subtracted.
	nonceExpiry := signals[6]
	adjustedNow := req.WallClockUnix - v.ExpiryMargin
	if big.NewInt(adjustedNow).Cmp(nonceExpiry) > 0 {
		return v.reject(req, "expiry", fmt.Errorf("%w: nonce expiry %s has passed", ErrExpired, nonceExpiry))
	}

	// Gate 5: freshness of the proved timestamp.
	provedTimestamp := signals[4]
	delta := new(big.Int).Sub(big.NewInt(req.WallClockUnix), provedTimestamp)
	delta.Abs(delta)
	if delta.Cmp(big.NewInt(int64(v.ctx.FreshnessWindow/time.Second))) > 0 {
		return v.reject(req, "freshness", fmt.Errorf("%w: proved timestamp outside freshness window", ErrExpired))
	}

	// Gate 6: root acceptance.
	merkleRoot := signals[1]
	history := v.RootHistoryFor(req.EventID)
	if !history.Accepts(merkleRoot) {
		return v.reject(req, "root", fmt.Errorf("%w: merkle root not within retained history", ErrStaleRoot))
	}

	// Gate 7: replay.
	nonce := signals[5]
	if v.ledger.Contains(req.EventID, nonce) {
		return v.reject(req, "replay", fmt.Errorf("%w: nonce already committed", ErrReplay))
	}

	// Gate 8: cryptographic verification. Any internal cause is flattened to
	// ErrInvalidProof so validator internals never leak.
	if err := prover.VerifyOffChain(v.ctx, req.Proof); err != nil {
		log.Debug().Err(err).Msg("groth16 verification failed")
		return v.reject(req, "proof", ErrInvalidProof)
	}

	// Gate 9: commit. Insert and audit append happen back to back; a failed
	// insert never reaches the audit append, and the inverse ordering would
	// let an audited-but-uncommitted proof replay, so insert must go first.
	proofHash := computeProofHash(req.Proof)
	rec := &NonceRecord{Nonce: nonce, Expiry: nonceExpiry.Int64(), Event: req.EventID, ProofHash: proofHash}
	if !v.ledger.Insert(rec) {
		return v.reject(req, "replay", fmt.Errorf("%w: nonce already committed", ErrReplay))
	}

	if v.audit != nil {
		err := v.audit.Append(AuditRecord{
			EventID:                req.EventID.String(),
			TicketID:               "unknown",
			ProofHash:              fmt.Sprintf("%x", proofHash),
			PublicSignalsCanonical: canonicalSignals(signals),
			VerifiedOnChain:        false,
			Timestamp:              req.WallClockUnix,
		})
		if err != nil {
			// The nonce is already committed; a failed audit write must not
			// let the verifier retry gate 9 for the same nonce. Insert already
			// guarantees that independently of the audit log's own durability.
			return fmt.Errorf("%w: audit log write failed: %v", ErrLedgerUnavailable, err)
		}
	}

	log.Info().Str("event", req.EventID.String()).Hex("proofHash", proofHash[:]).Msg("proof committed")
	return nil
}

// reject logs a gate rejection at warn level and passes the error through
// unchanged.
func (v *Verifier) reject(req Request, gate string, err error) error {
	log.Warn().Str("event", req.EventID.String()).Str("gate", gate).Err(err).Msg("verification rejected")
	return err
}

// PurgeExpired sweeps nonce records whose expiry plus the configured margin
// has passed. Purge is a separate sweep: a committed nonce never transitions
// back to absent within its retention window.
func (v *Verifier) PurgeExpired(nowUnix int64) {
	v.ledger.Purge(nowUnix, v.PurgeMargin)
}

// computeProofHash is a fixed function of the proof bytes and public signals
// used solely for deduplication and audit — any cryptographic hash of the
// canonical serialization suffices.
func computeProofHash(pkg *prover.ProofPackage) [32]byte {
	h := sha256.New()
	if pkg.Proof != nil {
		pkg.Proof.WriteTo(h)
	}
	for _, s := range pkg.PublicSignals {
		b := s.Bytes()
		h.Write(b)
	}
	return [32]byte(h.Sum(nil))
}
