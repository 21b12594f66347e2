package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/edekker/vigil/pkg/failure"
)

// policyDocument is the on-disk shape of a standalone failure-policy file.
// It reuses the failure section of the main configuration.
type policyDocument struct {
	Failure FailureConfig `yaml:"failure"`
}

// LoadPolicyFile loads a standalone failure-policy document. Unlike the
// main configuration it is strict: unknown keys are rejected so a typo in a
// policy never silently disables a recovery strategy.
func LoadPolicyFile(path string) (failure.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return failure.Config{}, fmt.Errorf("reading policy file: %w", err)
	}

	var doc policyDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return failure.Config{}, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	cfg := &Config{Failure: doc.Failure}
	out, err := cfg.FailureConfig()
	if err != nil {
		return failure.Config{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return out, nil
}
