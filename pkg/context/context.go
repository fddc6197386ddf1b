// Package context replaces module-level globals with an explicit,
// constructed value: circuit keys, the artifact manifest, and tunable
// verifier windows are loaded once at construction and passed by shared
// borrow to every caller. Poseidon parameters are not held here: they stay
// in the package variable poseidon.CurrentParams, and New only checks the
// manifest's fingerprint of them.
package context

import (
	"fmt"
	"time"

	"github.com/consensys/gnark/backend/groth16"

	"github.com/trueticket/zkverify/pkg/merkle"
	"github.com/trueticket/zkverify/pkg/setup"
)

// Context owns everything a prover or verifier needs that must stay
// consistent for the lifetime of a deployment: the compiled circuit, its
// keys and manifest, and the configurable gates the verifier checks.
type Context struct {
	CircuitName string

	ProvingKey   groth16.ProvingKey
	VerifyingKey groth16.VerifyingKey
	Manifest     setup.ArtifactManifest

	// RootHistorySize bounds how many past roots per event the verifier's
	// root-acceptance gate retains. Configurable; defaults to at least 16.
	RootHistorySize int

	// FreshnessWindow bounds |currentTimestamp - wallclock| the verifier
	// accepts at the freshness gate. Defaults to 300s.
	FreshnessWindow time.Duration
}

// Option configures a Context at construction time.
type Option func(*Context)

// WithRootHistorySize overrides the default root-history retention window.
func WithRootHistorySize(n int) Option {
	return func(c *Context) { c.RootHistorySize = n }
}

// WithFreshnessWindow overrides the default proof-freshness tolerance.
func WithFreshnessWindow(d time.Duration) Option {
	return func(c *Context) { c.FreshnessWindow = d }
}

// New loads the named circuit's keys and manifest from dir and builds a
// Context, failing loudly if the manifest's bound Poseidon parameters
// disagree with this binary's runtime parameters.
func New(dir, circuitName string, opts ...Option) (*Context, error) {
	pk, vk, err := setup.LoadKeys(dir, circuitName)
	if err != nil {
		return nil, fmt.Errorf("context: load keys for %q: %w", circuitName, err)
	}

	manifest, err := setup.LoadManifest(dir, circuitName)
	if err != nil {
		return nil, fmt.Errorf("context: load manifest for %q: %w", circuitName, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	c := &Context{
		CircuitName:     circuitName,
		ProvingKey:      pk,
		VerifyingKey:    vk,
		Manifest:        manifest,
		RootHistorySize: merkle.DefaultRootHistorySize,
		FreshnessWindow: 300 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}
