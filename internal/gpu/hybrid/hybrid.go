// Package hybrid implements the GPU-accelerated batched PUCT scoring and batched leaf
// evaluation of spec §4.9/§4.10 (components C9, C10), on top of internal/gpu's GoMLX
// Context. Below a configurable batch-size threshold, both operations fall back to the
// plain CPU implementation (internal/puct, internal/mcts) rather than pay dispatch
// overhead for a batch too small to amortize it — the spec's "documented CPU-fallback
// threshold" (§4.10).
package hybrid

import (
	"sync"

	"github.com/gomlx/gomlx/graph"
	gomlxctx "github.com/gomlx/gomlx/ml/context"
	"github.com/gomlx/gomlx/types/shapes"
	"github.com/gomlx/gomlx/types/tensors"
	"github.com/gomlx/gopjrt/dtypes"
	"k8s.io/klog/v2"

	"github.com/janpfeifer/mcts-arena/internal/gpu"
	"github.com/janpfeifer/mcts-arena/internal/gpu/shaderinc"
	"github.com/janpfeifer/mcts-arena/internal/puct"
)

// kernelSources documents the two GoMLX executables below as the #include-expandable
// descriptors of internal/gpu/shaderinc, preserved for the independently-testable
// include/cycle-detection contract even though the actual kernels are GoMLX graphs.
var kernelSources = shaderinc.Sources{
	"common_puct": "// q = wins / (2*visits), 0 if unvisited\n" +
		"// u = c_puct * prior * sqrt(parent_visits) / (1 + visits + virtual_losses)",
	"batch_puct": "#include \"common_puct\"\n" +
		"// in:  visits[N], virtual_losses[N], wins[N], prior[N], parent_visits[N], c_puct[N]\n" +
		"// out: score[N] = q + u",
	"batch_evaluate_material": "// in: boards[N][cells] valued {0, +1, -1}, already signed to the player to move\n" +
		"// out: score[N] in [-1, 1], (own_count - opp_count) / total_count from that player's view",
}

// KernelSources exposes the descriptor set, e.g. for a diagnostic command that wants to
// print the fully expanded kernel documentation.
func KernelSources() shaderinc.Sources { return kernelSources }

// DefaultFallbackThreshold is the batch size below which BatchPUCT/BatchEvaluate run on
// CPU instead of dispatching to the GPU context.
const DefaultFallbackThreshold = 32

// Accelerator owns the compiled GoMLX executables for batched PUCT and batched material
// evaluation. Once wired into Searcher.PUCTScorer/a GridEvaluator (spec §4.9/§4.10), every
// worker goroutine in the pool dispatches through the same Accelerator concurrently; GoMLX
// does not document concurrent Exec.Call against one compiled executable as safe, so
// dispatchMu serializes the two call sites the way a single GPU queue naturally would.
type Accelerator struct {
	FallbackThreshold int

	ctx        *gpu.Context
	puctExec   *gomlxctx.Exec
	evalExec   *gomlxctx.Exec
	dispatchMu sync.Mutex
}

// New compiles the hybrid accelerator's executables against ctx.
func New(ctx *gpu.Context) *Accelerator {
	a := &Accelerator{FallbackThreshold: DefaultFallbackThreshold, ctx: ctx}
	a.puctExec = ctx.NewExec(puctGraph)
	a.evalExec = ctx.NewExec(materialGraph)
	return a
}

// puctGraph builds the vectorized PUCT score graph: inputs are
// [visits, virtual_losses, wins, prior, parent_visits, c_puct], each a [N]float32 node
// (visits/virtual_losses/wins/parent_visits arrive pre-cast to float32 by the caller).
func puctGraph(_ *gomlxctx.Context, inputs []*graph.Node) *graph.Node {
	visits, virtualLosses, wins, prior, parentVisits, cPuct := inputs[0], inputs[1], inputs[2], inputs[3], inputs[4], inputs[5]

	// wins is 0 whenever visits is 0, so wins / (2*max(visits,1)) is exactly 0 in that
	// case too — no separate unvisited branch needed. The exploration term below needs no
	// branch either: at N=0 its 1+N denominator is 1, which matches the unvisited case of
	// puct.Score exactly.
	safeVisits := graph.MaxScalar(visits, 1)
	q := graph.Div(wins, graph.MulScalar(safeVisits, 2))

	effectiveVisits := graph.Add(visits, virtualLosses)
	sqrtParent := graph.Sqrt(parentVisits)
	denom := graph.AddScalar(effectiveVisits, 1)
	exploration := graph.Div(graph.Mul(graph.Mul(cPuct, prior), sqrtParent), denom)

	return graph.Add(q, exploration)
}

// materialGraph builds the batched Othello-style material-count evaluator graph: input is
// a [N, cells]float32 board (0 empty, 1 own color, -1 opposing color, already re-signed to
// the player to move's perspective by the caller) and returns a [N]float32 score in
// [-1, 1] (spec §4.10: "Return ±4000 by final piece count", normalized here to ±1 to match
// internal/mcts.Evaluator's contract).
func materialGraph(_ *gomlxctx.Context, inputs []*graph.Node) *graph.Node {
	boards := inputs[0]
	own := graph.ReduceSum(graph.PositivePart(boards), -1)
	opp := graph.ReduceSum(graph.PositivePart(graph.Neg(boards)), -1)
	total := graph.AddScalar(graph.Add(own, opp), 1e-6)
	return graph.Div(graph.Sub(own, opp), total)
}

// BatchPUCT scores every input with the vectorized PUCT graph if len(inputs) is at least
// FallbackThreshold, otherwise falls back to internal/puct.Score per element. A GPU
// dispatch failure (shape mismatch, device error) degrades to the CPU path rather than
// propagating, since batched scoring is a throughput optimization, not a correctness
// requirement (spec §7: "the engine never blocks indefinitely on the GPU path").
func (a *Accelerator) BatchPUCT(inputs []puct.Input) []puct.Result {
	if len(inputs) < a.FallbackThreshold {
		return cpuBatchPUCT(inputs)
	}

	n := len(inputs)
	visits := make([]float32, n)
	virtualLosses := make([]float32, n)
	wins := make([]float32, n)
	prior := make([]float32, n)
	parentVisits := make([]float32, n)
	cPuct := make([]float32, n)
	for i, in := range inputs {
		visits[i] = float32(in.Visits)
		virtualLosses[i] = float32(in.VirtualLosses)
		wins[i] = float32(in.Wins)
		prior[i] = in.Prior
		parentVisits[i] = float32(in.ParentVisits)
		cPuct[i] = in.CPuct
	}

	a.dispatchMu.Lock()
	outputs, err := gpu.SafeCall(a.puctExec,
		vectorTensor(visits), vectorTensor(virtualLosses), vectorTensor(wins),
		vectorTensor(prior), vectorTensor(parentVisits), vectorTensor(cPuct),
	)
	a.dispatchMu.Unlock()
	if err != nil {
		klog.Errorf("hybrid: BatchPUCT GPU dispatch failed, falling back to CPU: %v", err)
		return cpuBatchPUCT(inputs)
	}
	scores := outputs[0].Value().([]float32)

	out := make([]puct.Result, n)
	for i, in := range inputs {
		var q float32
		if in.Visits > 0 {
			q = float32(in.Wins) / float32(2*in.Visits)
		}
		out[i] = puct.Result{Q: q, Exploration: scores[i] - q, Score: scores[i]}
	}
	return out
}

func cpuBatchPUCT(inputs []puct.Input) []puct.Result {
	out := make([]puct.Result, len(inputs))
	for i, in := range inputs {
		out[i] = puct.Score(in)
	}
	return out
}

// BatchEvaluate scores N packed Othello-style boards (each a flat []float32 of
// +1/-1/0 cells from the player-to-move's own perspective) via the vectorized material
// graph, falling back to perBoard for small batches or on a GPU dispatch failure.
func (a *Accelerator) BatchEvaluate(boards [][]float32, perBoard func(board []float32) float32) []float32 {
	if len(boards) < a.FallbackThreshold {
		return cpuBatchEvaluate(boards, perBoard)
	}

	n := len(boards)
	cells := len(boards[0])
	flat := make([]float32, n*cells)
	for i, b := range boards {
		copy(flat[i*cells:], b)
	}
	boardsT := tensors.FromShape(shapes.Make(dtypes.Float32, n, cells))
	tensors.MutableFlatData(boardsT, func(dst []float32) { copy(dst, flat) })

	a.dispatchMu.Lock()
	outputs, err := gpu.SafeCall(a.evalExec, boardsT)
	a.dispatchMu.Unlock()
	if err != nil {
		klog.Errorf("hybrid: BatchEvaluate GPU dispatch failed, falling back to CPU: %v", err)
		return cpuBatchEvaluate(boards, perBoard)
	}
	return outputs[0].Value().([]float32)
}

func cpuBatchEvaluate(boards [][]float32, perBoard func(board []float32) float32) []float32 {
	out := make([]float32, len(boards))
	for i, b := range boards {
		out[i] = perBoard(b)
	}
	return out
}

func vectorTensor(data []float32) *tensors.Tensor {
	t := tensors.FromShape(shapes.Make(dtypes.Float32, len(data)))
	tensors.MutableFlatData(t, func(dst []float32) { copy(dst, data) })
	return t
}
