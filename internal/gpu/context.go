// Package gpu wraps a GoMLX backend and compiles the executables the hybrid accelerator
// dispatches against (spec components C9-C10); the GPU-native Othello engine does not use
// this package. GoMLX/gopjrt
// (XLA) stand in for the literal WGSL compute-shader layer the original source describes;
// see DESIGN.md (Open Question OQ-1) for the full justification. `Exec.Call` already
// blocks until the device computation materializes its output tensor, which is this
// module's equivalent of "submit then host-side wait for the fence" (spec §5).
package gpu

import (
	"sync"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/graph"
	"github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// sharedBackend is process-wide, matching the teacher's internal/ai/gomlx singleton
// pattern (one GoMLX backend per process, regardless of how many Context values exist).
var sharedBackend = sync.OnceValue(func() backends.Backend {
	b := backends.New()
	klog.V(1).Infof("gpu: backend %q ready", b.Name())
	return b
})

// Context pairs the shared GoMLX backend with a GoMLX context and compiles executables
// through NewExec; it does not hold them itself (hybrid.Accelerator keeps the executables
// it compiles).
type Context struct {
	backend backends.Backend
	ctx     *context.Context
}

// New builds a Context against the process-wide shared backend.
func New() *Context {
	return &Context{backend: sharedBackend(), ctx: context.New()}
}

// Backend exposes the underlying GoMLX backend.
func (c *Context) Backend() backends.Backend { return c.backend }

// NewExec compiles graphFn once into a reusable executable, mirroring the teacher's
// `context.NewExec(backend(), ctx, func(ctx *context.Context, inputs []*graph.Node) *graph.Node {...})`
// pattern (internal/ai/gomlx/boardscorer.go in the original source tree).
func (c *Context) NewExec(graphFn func(ctx *context.Context, inputs []*graph.Node) *graph.Node) *context.Exec {
	return context.NewExec(c.backend, c.ctx, graphFn)
}

// SafeCall invokes exec.Call(inputs...) and recovers any panic GoMLX/XLA raises on a shape
// or dtype mismatch into a plain error (the spec's GpuError taxonomy, §7), the way the
// teacher wraps its own training-step graph calls in exceptions.TryCatch
// (cmd/a0trainer/ai.go, internal/ai/gomlx/policyscorer.go) rather than letting a single bad
// batch crash the whole search.
func SafeCall(exec *context.Exec, inputs ...*tensors.Tensor) ([]*tensors.Tensor, error) {
	var outputs []*tensors.Tensor
	err := exceptions.TryCatch[error](func() {
		outputs = exec.Call(anySlice(inputs)...)
	})
	if err != nil {
		return nil, errors.Wrap(err, "gpu: executable call failed")
	}
	return outputs, nil
}

func anySlice(inputs []*tensors.Tensor) []any {
	out := make([]any, len(inputs))
	for i, in := range inputs {
		out[i] = in
	}
	return out
}
