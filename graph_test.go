package taskgrid

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteEmptyGraph(t *testing.T) {
	g := New(1)
	defer g.Close()
	assert.NoError(t, g.Execute(context.Background()))
}

// A single-worker pool turns submission order into run order, so a wired
// chain produces its side effects in declared dependency order.
func TestLinearChainSingleWorkerOrder(t *testing.T) {
	g := New(1)
	defer g.Close()

	var out string
	task1 := NewAction(g, "task1", func(ctx context.Context) error { out = "task1->"; return nil })
	task2 := NewAction(g, "task2", func(ctx context.Context) error { out += "task2->"; return nil })
	task3 := NewAction(g, "task3", func(ctx context.Context) error { out += "task3->"; return nil })
	task4 := NewAction(g, "task4", func(ctx context.Context) error { out += "task4"; return nil })

	task2.DependsOn(task1)
	task4.DependsOn(task1)
	task2.DependsOn(task3)
	task4.DependsOn(task3)
	task3.DependsOn(task1)

	require.False(t, g.HasCycle())
	require.NoError(t, g.Execute(context.Background()))
	assert.Equal(t, "task1->task3->task2->task4", out)
}

func TestResultPropagation(t *testing.T) {
	g := New(1)
	defer g.Close()

	var num int
	task1 := NewTask(g, "task1", func(ctx context.Context) (int, error) { num = 0; return 13, nil })
	task2 := NewAction(g, "task2", func(ctx context.Context) error { num = 1; return nil })
	task3 := NewAction(g, "task3", func(ctx context.Context) error { num += 2; return nil })
	task4 := NewAction(g, "task4", func(ctx context.Context) error { num *= 2; return nil })
	task5 := NewAction(g, "task5", func(ctx context.Context) error { num %= 5; return nil })

	task2.DependsOn(task1)
	task3.DependsOn(task2)
	task4.DependsOn(task2)
	task5.DependsOn(task3)
	task5.DependsOn(task4)

	require.False(t, g.HasCycle())
	require.NoError(t, g.Execute(context.Background()))

	v, err := task1.Value()
	require.NoError(t, err)
	assert.Equal(t, 13, v)
	assert.Equal(t, 1, num)
}

// Fan-in: a node with a slow and a fast parent starts only after both have
// completed, whatever their completion order.
func TestFanInWaitsForAllParents(t *testing.T) {
	g := New(2)
	defer g.Close()

	var slowDone, fastDone atomic.Bool
	slow := NewAction(g, "slow", func(ctx context.Context) error {
		time.Sleep(50 * time.Millisecond)
		slowDone.Store(true)
		return nil
	})
	fast := NewAction(g, "fast", func(ctx context.Context) error {
		fastDone.Store(true)
		return nil
	})

	var sawSlow, sawFast bool
	child := NewAction(g, "child", func(ctx context.Context) error {
		sawSlow = slowDone.Load()
		sawFast = fastDone.Load()
		return nil
	})
	child.DependsOn(slow)
	child.DependsOn(fast)

	require.NoError(t, g.Execute(context.Background()))
	assert.True(t, sawSlow, "child ran before its slow parent completed")
	assert.True(t, sawFast, "child ran before its fast parent completed")
}

// Two independent reductions on a 2-worker pool feeding an averaging node
// must match the single-threaded result of the same closures.
func TestParallelReduction(t *testing.T) {
	g := New(2)
	defer g.Close()

	const n = 200_000
	var n0, n1 []float64
	var n0Min, n1Max, average float64

	fill0 := NewAction(g, "fill-n0", func(ctx context.Context) error {
		n0 = make([]float64, n)
		for i := range n0 {
			n0[i] = float64(i) - n/2
		}
		return nil
	})
	fill1 := NewAction(g, "fill-n1", func(ctx context.Context) error {
		n1 = make([]float64, n)
		for i := range n1 {
			n1[i] = float64(i) - n/2
		}
		return nil
	})
	minOf0 := NewAction(g, "min-n0", func(ctx context.Context) error {
		n0Min = math.Inf(1)
		for _, v := range n0 {
			n0Min = math.Min(n0Min, v)
		}
		return nil
	})
	maxOf1 := NewAction(g, "max-n1", func(ctx context.Context) error {
		n1Max = math.Inf(-1)
		for _, v := range n1 {
			n1Max = math.Max(n1Max, v)
		}
		return nil
	})
	avg := NewAction(g, "average", func(ctx context.Context) error {
		average = n0Min + 0.5*(n1Max-n0Min)
		return nil
	})

	minOf0.DependsOn(fill0)
	maxOf1.DependsOn(fill1)
	avg.DependsOn(maxOf1)
	avg.DependsOn(minOf0)

	require.False(t, g.HasCycle())
	require.NoError(t, g.Execute(context.Background()))

	wantMin := float64(0) - n/2
	wantMax := float64(n-1) - n/2
	assert.Equal(t, wantMin+0.5*(wantMax-wantMin), average)
}

func TestEveryNodeCompletesExactlyOnce(t *testing.T) {
	g := New(4)
	defer g.Close()

	const layers, width = 4, 5
	counters := make([]*atomic.Int64, 0, layers*width)
	var prev []*Action
	for l := 0; l < layers; l++ {
		var cur []*Action
		for w := 0; w < width; w++ {
			c := new(atomic.Int64)
			counters = append(counters, c)
			a := NewAction(g, "node", func(ctx context.Context) error {
				c.Add(1)
				return nil
			})
			for _, p := range prev {
				a.DependsOn(p)
			}
			cur = append(cur, a)
		}
		prev = cur
	}

	require.NoError(t, g.Execute(context.Background()))
	for i, c := range counters {
		assert.EqualValues(t, 1, c.Load(), "node %d", i)
	}
}

func TestHasCycle(t *testing.T) {
	t.Run("empty graph", func(t *testing.T) {
		g := New(1)
		defer g.Close()
		assert.False(t, g.HasCycle())
	})

	t.Run("acyclic diamond", func(t *testing.T) {
		g := New(1)
		defer g.Close()
		a := NewAction(g, "a", noop)
		b := NewAction(g, "b", noop)
		c := NewAction(g, "c", noop)
		d := NewAction(g, "d", noop)
		b.DependsOn(a)
		c.DependsOn(a)
		d.DependsOn(b)
		d.DependsOn(c)
		assert.False(t, g.HasCycle())
	})

	t.Run("self dependency", func(t *testing.T) {
		g := New(1)
		defer g.Close()
		a := NewAction(g, "a", noop)
		a.DependsOn(a)
		assert.True(t, g.HasCycle())
	})

	t.Run("two node cycle", func(t *testing.T) {
		g := New(1)
		defer g.Close()
		a := NewAction(g, "a", noop)
		b := NewAction(g, "b", noop)
		b.DependsOn(a)
		a.DependsOn(b)
		assert.True(t, g.HasCycle())
	})

	t.Run("cycle in disjoint component", func(t *testing.T) {
		g := New(1)
		defer g.Close()
		a := NewAction(g, "a", noop)
		b := NewAction(g, "b", noop)
		b.DependsOn(a)

		x := NewAction(g, "x", noop)
		y := NewAction(g, "y", noop)
		z := NewAction(g, "z", noop)
		y.DependsOn(x)
		z.DependsOn(y)
		y.DependsOn(z)
		assert.True(t, g.HasCycle())
	})
}

func TestResetAndRerun(t *testing.T) {
	g := New(2)
	defer g.Close()

	var runs atomic.Int64
	parent := NewTask(g, "parent", func(ctx context.Context) (int64, error) {
		return runs.Add(1), nil
	})
	child := NewAction(g, "child", func(ctx context.Context) error { return nil })
	child.DependsOn(parent)

	require.NoError(t, g.Execute(context.Background()))
	v, err := parent.Value()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)

	// Reset twice: idempotent, and the result slot is cleared.
	g.Reset()
	g.Reset()
	_, err = parent.Value()
	assert.ErrorIs(t, err, ErrNoResult)
	assert.Equal(t, 1, child.Pending())

	require.NoError(t, g.Execute(context.Background()))
	v, err = parent.Value()
	require.NoError(t, err)
	assert.EqualValues(t, 2, v)
	assert.EqualValues(t, 2, runs.Load())
}

// A failed parent still releases its dependents; the failure stays
// readable on the node and Execute itself succeeds.
func TestTaskErrorReleasesDependents(t *testing.T) {
	g := New(1)
	defer g.Close()

	bad := NewTask(g, "bad", func(ctx context.Context) (int, error) {
		return 0, assert.AnError
	})
	var childRan bool
	child := NewAction(g, "child", func(ctx context.Context) error { childRan = true; return nil })
	child.DependsOn(bad)

	require.NoError(t, g.Execute(context.Background()))
	assert.True(t, childRan)
	assert.ErrorIs(t, bad.Err(), assert.AnError)
	_, err := bad.Value()
	assert.ErrorIs(t, err, assert.AnError)
}

func TestTaskPanicIsRecorded(t *testing.T) {
	g := New(1)
	defer g.Close()

	angry := NewAction(g, "angry", func(ctx context.Context) error { panic("tantrum") })
	require.NoError(t, g.Execute(context.Background()))
	require.Error(t, angry.Err())
	assert.Contains(t, angry.Err().Error(), "tantrum")
}

func TestExecuteContextCancelAbandonsWait(t *testing.T) {
	g := New(1)
	defer g.Close()

	started := make(chan struct{})
	gate := make(chan struct{})
	NewAction(g, "stuck", func(ctx context.Context) error {
		close(started)
		<-gate
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := g.Execute(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Unblock the in-flight task so Close can drain the pool.
	close(gate)
}

func noop(ctx context.Context) error { return nil }
