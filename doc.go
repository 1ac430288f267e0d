// Package taskgrid is an embeddable task-graph execution engine. Units of
// work are declared as graph nodes with explicit dependency edges; the
// graph detects cycles, executes the resulting DAG concurrently on a
// bounded worker pool, and lets the caller read per-node results after the
// run.
//
// A graph is built through its node factories, wired with DependsOn, and
// driven by Execute, which seeds every node with no pending dependencies
// and blocks until the whole graph has completed. Execute performs no
// structural validation: running a cyclic graph blocks forever, so call
// HasCycle first. A graph that has been executed must be Reset before it
// can run again.
package taskgrid
