package verifier

import (
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// AuditRecord is the append-only forensics entry: never read back by the
// verifier's decision path, used solely for post-incident review. TicketID
// is always the literal "unknown": the verifier never learns ticket
// identity, and the audit log must not record it.
type AuditRecord struct {
	EventID                string   `cbor:"eventId"`
	TicketID               string   `cbor:"ticketId"`
	ProofHash              string   `cbor:"proofHash"`
	PublicSignalsCanonical []string `cbor:"publicSignalsCanonical"`
	VerifiedOnChain        bool     `cbor:"verifiedOnChain"`
	Timestamp              int64    `cbor:"timestamp"`
}

// AuditLog is an append-only sink encoding each record with CBOR, a compact
// schema-stable format well-suited to a write-mostly forensics log.
type AuditLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewAuditLog wraps w (an append-mode file, typically) as an AuditLog.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w}
}

// Append encodes rec as a length-prefixed CBOR item and writes it to the
// underlying sink. Writers must never read this stream back as part of a
// verification decision.
func (a *AuditLog) Append(rec AuditRecord) error {
	b, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("verifier: encode audit record: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var lenPrefix [4]byte
	n := len(b)
	lenPrefix[0] = byte(n >> 24)
	lenPrefix[1] = byte(n >> 16)
	lenPrefix[2] = byte(n >> 8)
	lenPrefix[3] = byte(n)
	if _, err := a.w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("verifier: write audit length prefix: %w", err)
	}
	if _, err := a.w.Write(b); err != nil {
		return fmt.Errorf("verifier: write audit record: %w", err)
	}
	return nil
}

// canonicalSignals renders the 7 public signals as decimal strings, the
// canonical wire and audit representation.
func canonicalSignals(signals [7]*big.Int) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.String()
	}
	return out
}
