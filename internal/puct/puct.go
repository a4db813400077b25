// Package puct implements the PUCT (Predictor + Upper Confidence Tree) selection formula
// used by both the CPU searcher (internal/mcts) and, batched, by the GPU hybrid
// accelerator (internal/gpu/hybrid). Keeping the formula in its own package lets both
// call sites share one implementation and lets tests pin down the exact asymmetry the
// spec calls out for unvisited children (spec §4.3, testable property 7).
package puct

import "github.com/chewxy/math32"

// Input is one child's statistics as seen by its parent during selection.
type Input struct {
	Visits        int64
	VirtualLosses int64
	Wins          int64 // 2x-scaled: 2=win, 1=draw, 0=loss per visit.
	Prior         float32
	ParentVisits  int64
	CPuct         float32
}

// Result is the PUCT score and its two components, returned separately so callers
// (statistics, GPU comparison tests) can inspect Q and U independently.
type Result struct {
	Q           float32
	Exploration float32
	Score       float32
}

// Score computes PUCT for one child given its parent's visit count.
//
// Effective visits N = visits + virtual_losses. Q = wins/(2*visits) when visits > 0, else
// 0. The exploration term is c_puct * prior * sqrt(parent_visits) / (1 + N), EXCEPT when N
// is zero: spec §4.3 requires the unvisited bonus to use sqrt(parent_visits) directly
// (not divided by 1+0=1 — which happens to be the same denominator, but the spec calls
// the N=0 case out explicitly as its own branch, so it is kept as one here to make the
// asymmetry a visible, tested decision rather than an accident of arithmetic).
func Score(in Input) Result {
	effectiveVisits := in.Visits + in.VirtualLosses

	var q float32
	if in.Visits > 0 {
		q = float32(in.Wins) / float32(2*in.Visits)
	}

	sqrtParent := math32.Sqrt(float32(in.ParentVisits))
	var exploration float32
	if effectiveVisits == 0 {
		exploration = in.CPuct * in.Prior * sqrtParent
	} else {
		exploration = in.CPuct * in.Prior * sqrtParent / float32(1+effectiveVisits)
	}

	return Result{
		Q:           q,
		Exploration: exploration,
		Score:       q + exploration,
	}
}

// SelectBest returns the index of the child with the highest PUCT score among inputs,
// breaking ties by the lowest index (spec §4.3: "Ties: lowest child index wins").
func SelectBest(inputs []Input) (bestIdx int, bestResult Result) {
	if len(inputs) == 0 {
		panic("puct: SelectBest called with no children")
	}
	bestResult = Score(inputs[0])
	bestIdx = 0
	for i := 1; i < len(inputs); i++ {
		r := Score(inputs[i])
		if r.Score > bestResult.Score {
			bestResult = r
			bestIdx = i
		}
	}
	return
}

// SelectBestFromResults is SelectBest's counterpart for scores already computed elsewhere
// (the GPU hybrid accelerator's batched puctGraph dispatch), so both the CPU and GPU
// selection paths share the exact same tie-breaking rule (lowest index wins).
func SelectBestFromResults(results []Result) int {
	if len(results) == 0 {
		panic("puct: SelectBestFromResults called with no children")
	}
	bestIdx := 0
	bestScore := results[0].Score
	for i := 1; i < len(results); i++ {
		if results[i].Score > bestScore {
			bestScore = results[i].Score
			bestIdx = i
		}
	}
	return bestIdx
}
