package taskgrid

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/pool"
)

// Graph owns a set of task nodes and the worker pool that runs them. Nodes
// are created through the factories below and live as long as the graph.
// One graph supports one Execute at a time.
type Graph struct {
	pool *pool.Pool

	mu        sync.Mutex
	cond      *sync.Cond
	nodes     []Node
	completed int
	runCtx    context.Context
}

// New creates a graph with a pool of the given worker count. A count below
// one is treated as one.
func New(workers int) *Graph {
	g := &Graph{pool: pool.New(workers)}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// NewTask creates a result-bearing node owned by g and returns its handle.
func NewTask[T any](g *Graph, name string, fn func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{fn: fn}
	t.name = name
	t.graph = g
	t.self = t
	g.add(t)
	return t
}

// NewAction creates a void node owned by g and returns its handle.
func NewAction(g *Graph, name string, fn func(ctx context.Context) error) *Action {
	a := &Action{fn: fn}
	a.name = name
	a.graph = g
	a.self = a
	g.add(a)
	return a
}

func (g *Graph) add(n Node) {
	g.mu.Lock()
	g.nodes = append(g.nodes, n)
	g.mu.Unlock()
}

// Len returns the number of nodes owned by the graph.
func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes)
}

// Pool exposes the graph's worker pool for resizing and instrumentation.
func (g *Graph) Pool() *pool.Pool { return g.pool }

// HasCycle reports whether the dependency graph contains a cycle reachable
// from any node. Detection is advisory: Execute never checks, and running
// a cyclic graph blocks forever.
func (g *Graph) HasCycle() bool {
	g.mu.Lock()
	nodes := slices.Clone(g.nodes)
	g.mu.Unlock()

	for _, root := range nodes {
		// Fresh marking per root, like the traversal is specified: a node
		// settled under one root may still sit on a cycle under another.
		state := make(map[*nodeCore]visitState)
		if visitFindsCycle(root, state) {
			return true
		}
	}
	return false
}

type visitState int

const (
	unvisited visitState = iota
	inProgress
	settled
)

// visitFindsCycle is a depth-first search over descendant edges; a
// back-edge to an in-progress node is a cycle.
func visitFindsCycle(n Node, state map[*nodeCore]visitState) bool {
	c := n.base()
	state[c] = inProgress
	for _, d := range c.descendants {
		switch state[d.base()] {
		case unvisited:
			if visitFindsCycle(d, state) {
				return true
			}
		case inProgress:
			return true
		}
	}
	state[c] = settled
	return false
}

// Execute runs the graph: it submits every node whose pending-parent count
// is currently zero, then blocks until all nodes have reported completion.
// An empty graph returns immediately. Cancelling ctx abandons the wait and
// returns ctx.Err(); in-flight tasks are not aborted and the graph must be
// Reset before it can run again. Execute performs no cycle or reachability
// checks — a malformed graph blocks instead of erroring.
func (g *Graph) Execute(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("run_id", uuid.NewString())
	ctx = ctxlog.WithLogger(ctx, logger)

	g.mu.Lock()
	total := len(g.nodes)
	if total == 0 {
		g.mu.Unlock()
		return nil
	}
	g.runCtx = ctx

	var ready []Node
	for _, n := range g.nodes {
		if n.base().pending.Load() == 0 {
			ready = append(ready, n)
		}
	}
	g.mu.Unlock()

	logger.Debug("Seeding ready set.", "nodes", total, "ready", len(ready))
	for _, n := range ready {
		g.submit(n)
	}

	waitDone := make(chan struct{})
	defer close(waitDone)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				g.mu.Lock()
				g.cond.Broadcast()
				g.mu.Unlock()
			case <-waitDone:
			}
		}()
	}

	g.mu.Lock()
	for g.completed < total && ctx.Err() == nil {
		g.cond.Wait()
	}
	finished := g.completed >= total
	g.mu.Unlock()

	if !finished {
		logger.Debug("Graph run abandoned.", "error", ctx.Err())
		return ctx.Err()
	}
	logger.Debug("Graph run complete.", "completed", total)
	return nil
}

// Reset returns the graph to its unexecuted state: every node's pending
// count is restored to its declared edge count, result slots and errors
// are cleared, and the completion counter is zeroed. Idempotent. Required
// before re-running an executed graph.
func (g *Graph) Reset() {
	g.mu.Lock()
	nodes := slices.Clone(g.nodes)
	g.completed = 0
	g.mu.Unlock()

	for _, n := range nodes {
		n.resetNode()
	}
}

// Close drains and stops the graph's worker pool. The graph cannot execute
// afterwards.
func (g *Graph) Close() {
	g.pool.Stop(true)
}

// submit hands a node to the pool. Called once per node per run: by
// Execute for the initial ready set, by parentDone for everything else.
func (g *Graph) submit(n Node) {
	g.mu.Lock()
	ctx := g.runCtx
	g.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	pool.Submit(g.pool, func(worker int) (struct{}, error) {
		runNode(ctx, n, worker)
		return struct{}{}, nil
	})
}

// nodeDone is the per-node completion report: bump the counter and wake
// the Execute waiter. Invoked exactly once per node per run.
func (g *Graph) nodeDone() {
	g.mu.Lock()
	g.completed++
	g.cond.Broadcast()
	g.mu.Unlock()
}
