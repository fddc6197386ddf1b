package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blang/semver/v4"

	"github.com/trueticket/zkverify/pkg/poseidon"
)

// ArtifactManifest records a compiled circuit's name and semver version
// together with the fingerprint of the Poseidon parameters (ParamsHash) its
// exported key files were built against. context.New and the prover driver
// validate the fingerprint when they load the keys; the version is recorded
// but not compared.
type ArtifactManifest struct {
	CircuitName string `json:"circuitName"`
	Version     string `json:"version"`
	ParamsHash  string `json:"paramsHash"`
}

// NewManifest builds a manifest for circuitName at version, binding in the
// current Poseidon parameter fingerprint.
func NewManifest(circuitName string, version semver.Version) ArtifactManifest {
	ph := poseidon.ParamsHash()
	return ArtifactManifest{
		CircuitName: circuitName,
		Version:     version.String(),
		ParamsHash:  fmt.Sprintf("%x", ph),
	}
}

// WriteManifest writes the manifest alongside the circuit's exported keys as
// <circuitName>_manifest.json.
func WriteManifest(outputDir, circuitName string, m ArtifactManifest) error {
	path := filepath.Join(outputDir, circuitName+"_manifest.json")
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads and parses a manifest previously written by WriteManifest.
func LoadManifest(dir, circuitName string) (ArtifactManifest, error) {
	path := filepath.Join(dir, circuitName+"_manifest.json")
	b, err := os.ReadFile(path)
	if err != nil {
		return ArtifactManifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m ArtifactManifest
	if err := json.Unmarshal(b, &m); err != nil {
		return ArtifactManifest{}, fmt.Errorf("unmarshal manifest: %w", err)
	}
	return m, nil
}

// Validate fails loudly if the loaded manifest's parameter hash disagrees
// with the Poseidon parameters this binary was built against.
func (m ArtifactManifest) Validate() error {
	current := fmt.Sprintf("%x", poseidon.ParamsHash())
	if m.ParamsHash != current {
		return fmt.Errorf("setup: artifact manifest for %q was bound to Poseidon params %s, runtime is %s", m.CircuitName, m.ParamsHash, current)
	}
	return nil
}

