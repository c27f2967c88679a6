package dispatch

import (
	"github.com/kilianp07/factoryccu/core/flows"
	"github.com/kilianp07/factoryccu/core/model"
)

// stepChain builds a linear step list where each step depends on the one
// appended before it.
type stepChain struct {
	newID func() string
	steps []*model.Step
}

func (c *stepChain) last() string {
	if len(c.steps) == 0 {
		return ""
	}
	return c.steps[len(c.steps)-1].ID
}

func (c *stepChain) move(source, target model.ModuleType) {
	c.steps = append(c.steps, model.NewMoveStep(c.newID(), source, target, c.last()))
}

func (c *stepChain) produce(module model.ModuleType, cmd model.Command) {
	c.steps = append(c.steps, model.NewProduceStep(c.newID(), module, cmd, c.last()))
}

// expandProduction turns a flow into steps: fetch the workpiece from the
// warehouse, visit each processing module once per run of consecutive
// operations on it, then deliver to the delivery station.
func expandProduction(def flows.Definition, newID func() string) []*model.Step {
	c := &stepChain{newID: newID}
	c.move("", model.ModuleHBW)
	c.produce(model.ModuleHBW, model.CommandDrop)
	prev := model.ModuleHBW
	ops := def.Operations
	for i := 0; i < len(ops); {
		module := ops[i].Module
		c.move(prev, module)
		c.produce(module, model.CommandPick)
		for ; i < len(ops) && ops[i].Module == module; i++ {
			c.produce(module, ops[i].Command)
		}
		c.produce(module, model.CommandDrop)
		prev = module
	}
	c.move(prev, model.ModuleDPS)
	c.produce(model.ModuleDPS, model.CommandPick)
	return c.steps
}

// expandStorage moves a delivered workpiece from the delivery station into
// the warehouse.
func expandStorage(newID func() string) []*model.Step {
	c := &stepChain{newID: newID}
	c.move("", model.ModuleDPS)
	c.produce(model.ModuleDPS, model.CommandDrop)
	c.move(model.ModuleDPS, model.ModuleHBW)
	c.produce(model.ModuleHBW, model.CommandPick)
	return c.steps
}
