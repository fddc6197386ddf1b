package verifier

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// NonceRecord is the persisted entry backing the nonce ledger's commit step.
type NonceRecord struct {
	Nonce     *big.Int
	Expiry    int64
	Event     *big.Int
	ProofHash [32]byte
}

// nonceLedgerBitsetSize bounds the fast-path filter; a collision only costs
// an extra authoritative lookup, never a missed replay.
const nonceLedgerBitsetSize = 1 << 20

// NonceLedger is the authoritative unique-key store for spent nonces. A
// sync.Map holds the source of truth; a bitset.BitSet in front of it gives
// cheap, may-false-positive, never-false-negative rejection of nonces that
// were definitely never seen, short-circuiting the authoritative path under
// load.
type NonceLedger struct {
	mu      sync.Mutex // serializes the check-then-set race on a single bit
	seen    *bitset.BitSet
	records sync.Map // key: decimal string of nonce -> *NonceRecord
}

// NewNonceLedger constructs an empty ledger.
func NewNonceLedger() *NonceLedger {
	return &NonceLedger{seen: bitset.New(nonceLedgerBitsetSize)}
}

// nonceKey scopes a nonce by its event: the same nonce value in two
// different events must be free to commit independently.
func nonceKey(event, nonce *big.Int) string {
	return event.Text(16) + ":" + nonce.Text(16)
}

func nonceBit(event, nonce *big.Int) uint {
	h := sha256.New()
	eb := event.Bytes()
	nb := nonce.Bytes()
	h.Write(eb)
	h.Write(nb)
	sum := h.Sum(nil)
	return uint(binary.BigEndian.Uint64(sum[:8]) % nonceLedgerBitsetSize)
}

// Contains reports whether (event, nonce) already has a committed record.
// The bitset is consulted first: if its bit is unset, the pair is definitely
// absent and the authoritative map is never touched.
func (l *NonceLedger) Contains(event, nonce *big.Int) bool {
	l.mu.Lock()
	hit := l.seen.Test(nonceBit(event, nonce))
	l.mu.Unlock()
	if !hit {
		return false
	}
	_, ok := l.records.Load(nonceKey(event, nonce))
	return ok
}

// Insert commits rec as a unique-key insert: a conflict on insert is itself
// the replay-detection signal. Returns false if (event, nonce) was already
// committed by a prior caller — the caller must treat this as ErrReplay.
func (l *NonceLedger) Insert(rec *NonceRecord) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := nonceKey(rec.Event, rec.Nonce)
	if _, loaded := l.records.LoadOrStore(key, rec); loaded {
		return false
	}
	l.seen.Set(nonceBit(rec.Event, rec.Nonce))
	return true
}

// Purge removes every record whose expiry (plus margin) has passed; records
// are retained until at least expiry + safety margin before being purged.
// The bitset is never cleared: once a bit is set it stays set, which only
// costs a wasted authoritative lookup for any future nonce hashing to the
// same bit — never a false negative.
func (l *NonceLedger) Purge(nowUnix int64, margin int64) {
	l.records.Range(func(key, value interface{}) bool {
		rec := value.(*NonceRecord)
		if rec.Expiry+margin < nowUnix {
			l.records.Delete(key)
		}
		return true
	})
}
