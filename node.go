package taskgrid

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/taskgrid/internal/ctxlog"
)

// Node is the capability surface shared by every task variant in a graph.
// Implementations are created through the graph's factories and owned by
// the graph for its lifetime; the caller keeps a typed handle for wiring
// edges and reading results.
type Node interface {
	// Name returns the diagnostic name given at creation. Names are not
	// required to be unique.
	Name() string

	// Pending returns the node's current pending-parent count: the number
	// of declared dependencies that have not completed yet this run.
	Pending() int

	// Err returns the error recorded by the node's last run, or nil.
	Err() error

	base() *nodeCore
	invoke(ctx context.Context) error
	resetNode()
}

// nodeCore carries the dependency bookkeeping every variant shares: the
// pending-parent counter, the dependent notification list, the descendant
// list used for cycle detection, and the owning-graph back-reference.
type nodeCore struct {
	name  string
	graph *Graph
	self  Node

	// pending counts not-yet-completed declared parents. It starts at zero
	// and is incremented only by DependsOn; reaching zero during a run is
	// a one-shot submit trigger.
	pending atomic.Int64

	// parents is the total number of registered dependency edges, used to
	// restore pending on reset. Edges are wired before the first Execute,
	// so plain reads are safe at run time.
	parents int64

	// dependents holds zero-argument completion callbacks fired in
	// registration order when this node finishes.
	dependents []func()

	// descendants mirrors dependents as node handles. Used only by cycle
	// detection, never for scheduling.
	descendants []Node

	mu  sync.Mutex
	err error
}

func (c *nodeCore) base() *nodeCore { return c }

func (c *nodeCore) Name() string { return c.name }

func (c *nodeCore) Pending() int { return int(c.pending.Load()) }

// Err returns the error recorded by the node's last run, or nil.
func (c *nodeCore) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DependsOn declares parent as a dependency of this node: the node will
// not be scheduled until parent has completed. Each call wires one edge;
// calling it twice with the same parent counts the dependency twice.
// All edges must be wired before the owning graph's first Execute.
func (c *nodeCore) DependsOn(parent Node) {
	c.parents++
	c.pending.Add(1)

	pc := parent.base()
	pc.dependents = append(pc.dependents, c.parentDone)
	pc.descendants = append(pc.descendants, c.self)
}

// parentDone is the completion callback registered with every parent. The
// decrement to zero fires at most once per run, submitting the node to the
// owning graph's pool.
func (c *nodeCore) parentDone() {
	if c.pending.Add(-1) == 0 {
		c.graph.submit(c.self)
	}
}

func (c *nodeCore) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// resetCore restores the pending counter to the declared edge count and
// clears the recorded error.
func (c *nodeCore) resetCore() {
	c.pending.Store(c.parents)
	c.setErr(nil)
}

// runNode drives one node through a complete execution on a pool worker:
// invoke the callable, record its outcome, notify every dependent in
// registration order whether or not a value was produced, then report
// completion to the owning graph exactly once.
func runNode(ctx context.Context, n Node, worker int) {
	logger := ctxlog.FromContext(ctx).With("node", n.Name(), "worker", worker)
	logger.Debug("Node picked up for execution.")

	c := n.base()
	err := invokeSafely(ctx, n)
	c.setErr(err)
	if err != nil {
		logger.Debug("Node run failed.", "error", err)
	}

	for _, notify := range c.dependents {
		notify()
	}

	c.graph.nodeDone()
	logger.Debug("Node completed.")
}

// invokeSafely runs the node's callable, converting a panic into an error
// so the worker loop is never killed by user code.
func invokeSafely(ctx context.Context, n Node) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("taskgrid: task %q panicked: %v", n.Name(), r)
		}
	}()
	return n.invoke(ctx)
}
