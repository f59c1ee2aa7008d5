package sched

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// PolicyBundle is the YAML scheduler configuration. Pointer fields are nil
// when unset so callers can tell "0" from "not given" and let CLI flags win.
type PolicyBundle struct {
	Window  WindowBundle  `yaml:"window"`
	Metrics MetricsBundle `yaml:"metrics"`
	Run     RunBundle     `yaml:"run"`
	Log     string        `yaml:"log"`
}

// WindowBundle configures the lookahead window.
type WindowBundle struct {
	Capacity *int `yaml:"capacity"`
}

// MetricsBundle configures Prometheus telemetry.
type MetricsBundle struct {
	Enabled   *bool  `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// RunBundle configures the offline driver loop.
type RunBundle struct {
	Picks  *int  `yaml:"picks"`
	Refuzz *bool `yaml:"refuzz"`
}

// LoadPolicyBundle reads and strictly decodes a YAML policy bundle.
// Unknown keys are an error.
func LoadPolicyBundle(path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy bundle: %w", err)
	}
	var bundle PolicyBundle
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing policy bundle %s: %w", path, err)
	}
	return &bundle, nil
}

var validLogLevels = map[string]bool{
	"": true, "trace": true, "debug": true, "info": true, "warn": true,
	"warning": true, "error": true, "fatal": true, "panic": true,
}

// Validate checks value ranges. Unset fields are always valid.
func (b *PolicyBundle) Validate() error {
	if b.Window.Capacity != nil {
		if c := *b.Window.Capacity; c < 1 || c > WindowCapacity {
			return fmt.Errorf("window.capacity must be in [1, %d], got %d", WindowCapacity, c)
		}
	}
	if b.Run.Picks != nil && *b.Run.Picks < 0 {
		return fmt.Errorf("run.picks must be >= 0, got %d", *b.Run.Picks)
	}
	if !validLogLevels[b.Log] {
		return fmt.Errorf("unknown log level %q", b.Log)
	}
	return nil
}
