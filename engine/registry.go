package engine

import (
	"context"
	"encoding/json"

	"github.com/konecto/actuator-agent/core"
)

// Tool is one callable operation exposed to the decision function. Invoke
// never returns an error: adapters render every failure as a descriptive
// string so the loop has a single result shape to feed back.
type Tool interface {
	Spec() core.ToolSpec
	Invoke(ctx context.Context, args json.RawMessage) string
}

// ToolRegistry holds the tool catalog in registration order.
type ToolRegistry struct {
	order []string
	tools map[string]Tool
}

func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *ToolRegistry) Register(t Tool) {
	name := t.Spec().Name
	if _, ok := r.tools[name]; !ok {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Catalog returns the tool specs in registration order.
func (r *ToolRegistry) Catalog() []core.ToolSpec {
	specs := make([]core.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, r.tools[name].Spec())
	}
	return specs
}
