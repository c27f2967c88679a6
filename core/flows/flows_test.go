package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/factoryccu/core/model"
)

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider(Set{
		model.WorkpieceBlue: {Operations: []Operation{{Module: model.ModuleDrill, Command: model.CommandDrill}}},
		model.WorkpieceRed:  {},
	})
	def, ok := p.ProductionDefinitionFor(model.WorkpieceBlue)
	require.True(t, ok)
	assert.Len(t, def.Operations, 1)

	_, ok = p.ProductionDefinitionFor(model.WorkpieceRed)
	assert.False(t, ok, "an empty flow is not a flow")
	_, ok = p.ProductionDefinitionFor(model.WorkpieceWhite)
	assert.False(t, ok)

	require.NoError(t, p.Replace(Set{model.WorkpieceWhite: {Operations: []Operation{{Module: model.ModuleOven, Command: model.CommandFire}}}}))
	_, ok = p.ProductionDefinitionFor(model.WorkpieceBlue)
	assert.False(t, ok)
	_, ok = p.ProductionDefinitionFor(model.WorkpieceWhite)
	assert.True(t, ok)
}

func TestSetValidate(t *testing.T) {
	assert.Error(t, Set{"GREEN": {}}.Validate())
	assert.Error(t, Set{model.WorkpieceRed: {Operations: []Operation{{Module: model.ModuleHBW, Command: model.CommandPick}}}}.Validate())
	assert.Error(t, Set{model.WorkpieceRed: {Operations: []Operation{{Module: model.ModuleMill}}}}.Validate())

	p := NewMemoryProvider(nil)
	assert.Error(t, p.Replace(Set{"GREEN": {}}))
	assert.NoError(t, Set{model.WorkpieceRed: {Operations: []Operation{{Module: model.ModuleMill, Command: model.CommandMill}}}}.Validate())
}
