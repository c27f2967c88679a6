// Package flows holds the production flow definitions per workpiece type.
package flows

import (
	"fmt"

	"github.com/kilianp07/factoryccu/core/model"
)

// Operation is one processing command on a module type.
type Operation struct {
	Module  model.ModuleType `json:"module" yaml:"module"`
	Command model.Command    `json:"command" yaml:"command"`
}

// Definition is the ordered list of operations producing a workpiece type.
type Definition struct {
	Operations []Operation `json:"steps" yaml:"steps"`
}

// Set maps workpiece types to their flows.
type Set map[model.WorkpieceType]Definition

// Validate rejects unknown workpiece types and operations the warehouse and
// delivery station cannot perform as processing steps.
func (s Set) Validate() error {
	for wp, def := range s {
		if !wp.Valid() {
			return fmt.Errorf("flow for unknown workpiece type %q", wp)
		}
		for i, op := range def.Operations {
			switch op.Module {
			case model.ModuleMill, model.ModuleDrill, model.ModuleOven, model.ModuleAIQS:
			default:
				return fmt.Errorf("flow %s step %d: module %q cannot process", wp, i, op.Module)
			}
			if op.Command == "" {
				return fmt.Errorf("flow %s step %d: missing command", wp, i)
			}
		}
	}
	return nil
}

// Provider resolves the flow of a workpiece type.
type Provider interface {
	ProductionDefinitionFor(wp model.WorkpieceType) (Definition, bool)
}

// MemoryProvider is a replaceable in-memory Provider. It is not safe for
// concurrent use.
type MemoryProvider struct {
	flows Set
}

// NewMemoryProvider returns a provider serving s.
func NewMemoryProvider(s Set) *MemoryProvider {
	return &MemoryProvider{flows: s}
}

// ProductionDefinitionFor implements Provider.
func (p *MemoryProvider) ProductionDefinitionFor(wp model.WorkpieceType) (Definition, bool) {
	def, ok := p.flows[wp]
	return def, ok && len(def.Operations) > 0
}

// Replace swaps every definition at once.
func (p *MemoryProvider) Replace(s Set) error {
	if err := s.Validate(); err != nil {
		return err
	}
	p.flows = s
	return nil
}
