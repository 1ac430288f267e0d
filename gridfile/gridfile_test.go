package gridfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	taskgrid "github.com/vk/taskgrid"
)

func writeGrid(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

// recorder returns a registry with a "record" handler that appends the
// task's id argument to a shared slice.
func recorder(t *testing.T) (*Registry, func() []string) {
	t.Helper()

	type recordInput struct {
		ID string `hcl:"id"`
	}

	var mu sync.Mutex
	var order []string

	reg := NewRegistry()
	require.NoError(t, reg.Register("record", &Handler{
		NewInput: func() any { return new(recordInput) },
		Run: func(ctx context.Context, input any) (any, error) {
			id := input.(*recordInput).ID
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return id, nil
		},
	}))

	return reg, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), order...)
	}
}

func TestLoadBuildExecute(t *testing.T) {
	path := writeGrid(t, `
task "record" "first" {
  arguments {
    id = "first"
  }
}

task "record" "second" {
  depends_on = ["first"]
  arguments {
    id = "second"
  }
}

task "record" "third" {
  depends_on = ["first", "second"]
  arguments {
    id = "third"
  }
}
`)

	reg, order := recorder(t)
	spec, err := Load(path, reg)
	require.NoError(t, err)
	require.Len(t, spec.Tasks, 3)

	g := taskgrid.New(1)
	defer g.Close()
	nodes, err := spec.Build(g)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	require.False(t, g.HasCycle())
	require.NoError(t, g.Execute(context.Background()))

	assert.Equal(t, []string{"first", "second", "third"}, order())

	v, err := nodes["second"].Value()
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestLoadEnvInterpolation(t *testing.T) {
	t.Setenv("GRIDFILE_TEST_GREETING", "hello from the environment")

	path := writeGrid(t, `
task "print" "greet" {
  arguments {
    message = env.GRIDFILE_TEST_GREETING
  }
}
`)

	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))

	spec, err := Load(path, reg)
	require.NoError(t, err)

	g := taskgrid.New(1)
	defer g.Close()
	nodes, err := spec.Build(g)
	require.NoError(t, err)
	require.NoError(t, g.Execute(context.Background()))

	v, err := nodes["greet"].Value()
	require.NoError(t, err)
	assert.Equal(t, "hello from the environment", v)
}

func TestLoadErrors(t *testing.T) {
	reg, _ := recorder(t)

	t.Run("invalid hcl is rejected", func(t *testing.T) {
		path := writeGrid(t, `task "record" {`)
		_, err := Load(path, reg)
		assert.Error(t, err)
	})

	t.Run("unknown handler", func(t *testing.T) {
		path := writeGrid(t, `
task "nonexistent" "a" {
}
`)
		_, err := Load(path, reg)
		assert.ErrorContains(t, err, "unknown handler")
	})

	t.Run("duplicate task name", func(t *testing.T) {
		path := writeGrid(t, `
task "record" "a" {
  arguments { id = "a" }
}
task "record" "a" {
  arguments { id = "a" }
}
`)
		_, err := Load(path, reg)
		assert.ErrorContains(t, err, "duplicate task name")
	})

	t.Run("unknown dependency", func(t *testing.T) {
		path := writeGrid(t, `
task "record" "a" {
  depends_on = ["ghost"]
  arguments { id = "a" }
}
`)
		_, err := Load(path, reg)
		assert.ErrorContains(t, err, "unknown task")
	})

	t.Run("self dependency", func(t *testing.T) {
		path := writeGrid(t, `
task "record" "a" {
  depends_on = ["a"]
  arguments { id = "a" }
}
`)
		_, err := Load(path, reg)
		assert.ErrorContains(t, err, "depends on itself")
	})
}

func TestCycleSurfacesThroughHasCycle(t *testing.T) {
	path := writeGrid(t, `
task "record" "a" {
  depends_on = ["b"]
  arguments { id = "a" }
}
task "record" "b" {
  depends_on = ["a"]
  arguments { id = "b" }
}
`)

	reg, _ := recorder(t)
	spec, err := Load(path, reg)
	require.NoError(t, err)

	g := taskgrid.New(1)
	defer g.Close()
	_, err = spec.Build(g)
	require.NoError(t, err)
	assert.True(t, g.HasCycle())
}

func TestRegisterDuplicateHandler(t *testing.T) {
	reg := NewRegistry()
	h := &Handler{Run: func(ctx context.Context, input any) (any, error) { return nil, nil }}
	require.NoError(t, reg.Register("h", h))
	assert.ErrorContains(t, reg.Register("h", h), "already registered")
}
