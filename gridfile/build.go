package gridfile

import (
	"context"
	"fmt"

	taskgrid "github.com/vk/taskgrid"
)

// Build wires the spec's tasks and dependency edges into the given graph
// and returns the created nodes keyed by task name. Each node runs its
// handler with the arguments decoded at load time; the handler's return
// value becomes the node's result.
//
// Build does not check for dependency cycles — a grid file can legally
// describe one. Callers should run graph.HasCycle before Execute.
func (s *Spec) Build(g *taskgrid.Graph) (map[string]*taskgrid.Task[any], error) {
	nodes := make(map[string]*taskgrid.Task[any], len(s.Tasks))

	for _, ts := range s.Tasks {
		h, input := ts.handler, ts.input
		if h == nil {
			return nil, fmt.Errorf("gridfile: task %q was not loaded through Load", ts.Name)
		}
		nodes[ts.Name] = taskgrid.NewTask(g, ts.Name, func(ctx context.Context) (any, error) {
			return h.Run(ctx, input)
		})
	}

	for _, ts := range s.Tasks {
		for _, dep := range ts.DependsOn {
			nodes[ts.Name].DependsOn(nodes[dep])
		}
	}

	return nodes, nil
}
