package workflow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, parses, and validates the workflow definition at path.
//
// The loader is strict and deterministic:
//   - Unknown fields are rejected (no silent divergence from the model).
//   - A second YAML document in the same file is rejected.
//   - No environment variables or process state are consulted.
func Load(path string) (*Workflow, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	w, err := Parse(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	if w.Name == "" {
		w.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return w, nil
}

// Parse decodes and validates a workflow definition from r.
func Parse(r io.Reader) (*Workflow, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var w Workflow
	if err := dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, schemaf("empty document")
		}
		return nil, &DefinitionError{Kind: ErrSchema, Msg: err.Error()}
	}

	// Reject trailing documents; one file defines one workflow.
	var trailing any
	if err := dec.Decode(&trailing); !errors.Is(err, io.EOF) {
		if err == nil {
			return nil, schemaf("multiple documents in one file")
		}
		return nil, &DefinitionError{Kind: ErrSchema, Msg: err.Error()}
	}

	if err := Validate(&w); err != nil {
		return nil, err
	}
	return &w, nil
}
