package gridfile

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// gridConfig is the top-level HCL schema of a grid file.
type gridConfig struct {
	Tasks []*taskBlock `hcl:"task,block"`
}

// taskBlock is one task declaration: handler and task name as labels, an
// optional dependency list, and an optional arguments block whose body is
// decoded into the handler's input struct.
type taskBlock struct {
	Handler   string     `hcl:"handler,label"`
	Name      string     `hcl:"name,label"`
	DependsOn []string   `hcl:"depends_on,optional"`
	Arguments *argsBlock `hcl:"arguments,block"`
}

type argsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// TaskSpec is one validated task from a grid file, with its arguments
// already decoded.
type TaskSpec struct {
	Name      string
	Handler   string
	DependsOn []string

	handler *Handler
	input   any
}

// Spec is a validated grid file, ready to be wired into a graph.
type Spec struct {
	Tasks []*TaskSpec
}

// Load parses the grid file at path and validates it against the
// registry: every handler must be registered, task names must be unique,
// and every depends_on entry must name another task in the file.
func Load(path string, reg *Registry) (*Spec, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("gridfile: parsing %s: %w", path, diags)
	}

	evalCtx := baseEvalContext()

	var cfg gridConfig
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("gridfile: decoding %s: %w", path, diags)
	}

	spec := &Spec{}
	byName := make(map[string]*TaskSpec)
	for _, t := range cfg.Tasks {
		if _, dup := byName[t.Name]; dup {
			return nil, fmt.Errorf("gridfile: duplicate task name %q", t.Name)
		}

		h, ok := reg.lookup(t.Handler)
		if !ok {
			return nil, fmt.Errorf("gridfile: task %q uses unknown handler %q", t.Name, t.Handler)
		}

		var input any
		if h.NewInput != nil {
			input = h.NewInput()
			if t.Arguments != nil {
				if diags := gohcl.DecodeBody(t.Arguments.Body, evalCtx, input); diags.HasErrors() {
					return nil, fmt.Errorf("gridfile: arguments of task %q: %w", t.Name, diags)
				}
			}
		}

		ts := &TaskSpec{
			Name:      t.Name,
			Handler:   t.Handler,
			DependsOn: t.DependsOn,
			handler:   h,
			input:     input,
		}
		spec.Tasks = append(spec.Tasks, ts)
		byName[t.Name] = ts
	}

	for _, ts := range spec.Tasks {
		for _, dep := range ts.DependsOn {
			if dep == ts.Name {
				return nil, fmt.Errorf("gridfile: task %q depends on itself", ts.Name)
			}
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("gridfile: task %q depends on unknown task %q", ts.Name, dep)
			}
		}
	}

	return spec, nil
}

// baseEvalContext exposes the process environment to grid expressions as
// the `env` object.
func baseEvalContext() *hcl.EvalContext {
	envVals := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok && k != "" {
			envVals[k] = cty.StringVal(v)
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(envVals),
		},
	}
}
