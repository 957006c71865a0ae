// Package compiler parses a declarative YAML schedule-request document into
// the ir.Node/ir.EffectfulNode graph the scheduler package searches over.
//
// This is not the DAG-from-source front-end spec.md §1 scopes out of the
// core (that front-end builds a DAG from a real program's source); it is a
// fixture/tooling loader, the same role the teacher's YAML-to-IR compiler
// plays for SIGMA rules, repointed at this module's own declarative format.
package compiler

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/huytran/evmsched/pkg/errors"
)

// document is the raw shape of a schedule-request YAML file.
type document struct {
	InputSymbols []string              `yaml:"input_symbols"`
	Nodes        map[string]nodeSpec   `yaml:"nodes"`
	OutputStack  []string              `yaml:"output_stack"`
	DoneEffects  []string              `yaml:"done_effects"`
}

// nodeSpec is one entry under a document's `nodes` map: a named
// EffectfulNode-to-be, referencing its operands and post-effects by the
// names of other entries (or of a declared input symbol).
type nodeSpec struct {
	// Op is the node's mnemonic (e.g. "sload", "add", "0x04"). It need
	// not be unique across entries; the map key is the unique reference
	// name, Op is what ends up in the emitted instruction stream.
	Op string `yaml:"op"`
	// Const marks a rematerializable leaf. Const entries must not
	// declare operands.
	Const bool `yaml:"const"`
	// Operands names other `nodes` entries (or input symbols), ordered
	// with operand 0 deepest-consumed, per spec.md §3.
	Operands []string `yaml:"operands"`
	// PostEffects names other `nodes` entries that must execute before
	// this one in forward order, per spec.md's EffectfulNode model.
	PostEffects []string `yaml:"post_effects"`
}

// parseDocument unmarshals source into a document, wrapping YAML errors in
// the module's own error kind rather than surfacing yaml.v3's directly.
func parseDocument(source []byte) (*document, error) {
	var doc document
	if err := yaml.Unmarshal(source, &doc); err != nil {
		return nil, errors.NewYAMLError("failed to parse schedule request", err)
	}
	return &doc, nil
}

// validate checks the shape invariants a resolver can't catch mid-walk:
// non-empty input symbols or nodes, no entry masquerading as both a
// constant and an operation with operands, and no input symbol silently
// shadowed by a `nodes` entry of the same name.
func (d *document) validate() error {
	if len(d.InputSymbols) == 0 && len(d.Nodes) == 0 {
		return errors.NewInvalidInput("schedule request must declare at least one input symbol or node")
	}
	for name, spec := range d.Nodes {
		if spec.Op == "" {
			return errors.NewInvalidInput(fmt.Sprintf("node %q: op must not be empty", name))
		}
		if spec.Const && len(spec.Operands) > 0 {
			return errors.NewInvalidInput(fmt.Sprintf("node %q: const nodes must not declare operands", name))
		}
	}
	inputSet := make(map[string]bool, len(d.InputSymbols))
	for _, s := range d.InputSymbols {
		inputSet[s] = true
	}
	for name := range d.Nodes {
		if inputSet[name] {
			return errors.NewInvalidInput(fmt.Sprintf("name %q is declared both as an input symbol and a node", name))
		}
	}
	return nil
}
