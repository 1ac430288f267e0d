package gridfile

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vk/taskgrid/internal/ctxlog"
)

// PrintInput defines the arguments for the print handler.
type PrintInput struct {
	Message string `hcl:"message"`
}

// DelayInput defines the arguments for the delay handler.
type DelayInput struct {
	Duration string `hcl:"duration"`
}

// EnvInput defines the arguments for the env handler.
type EnvInput struct {
	Name    string `hcl:"name"`
	Default string `hcl:"default,optional"`
}

// RegisterBuiltins registers the handlers shipped with the CLI: print,
// delay and env.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]*Handler{
		"print": {
			NewInput: func() any { return new(PrintInput) },
			Run: func(ctx context.Context, input any) (any, error) {
				in := input.(*PrintInput)
				ctxlog.FromContext(ctx).Info("print task", "message", in.Message)
				fmt.Println(in.Message)
				return in.Message, nil
			},
		},
		"delay": {
			NewInput: func() any { return new(DelayInput) },
			Run: func(ctx context.Context, input any) (any, error) {
				in := input.(*DelayInput)
				d, err := time.ParseDuration(in.Duration)
				if err != nil {
					return nil, fmt.Errorf("delay: %w", err)
				}
				select {
				case <-time.After(d):
					return d.String(), nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		},
		"env": {
			NewInput: func() any { return new(EnvInput) },
			Run: func(ctx context.Context, input any) (any, error) {
				in := input.(*EnvInput)
				if v, ok := os.LookupEnv(in.Name); ok {
					return v, nil
				}
				return in.Default, nil
			},
		},
	}

	for name, h := range builtins {
		if err := r.Register(name, h); err != nil {
			return err
		}
	}
	return nil
}
