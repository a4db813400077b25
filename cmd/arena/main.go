// Command arena runs self-play benchmark games through the MCTS search engine, driving
// one of the five supported games to completion while reporting per-move search
// statistics. It is the teacher's cmd/hive entrypoint generalized to every game under
// games/, using the same flag/profiler/spinner conventions.
package main

import (
	"context"
	"flag"
	"fmt"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/janpfeifer/mcts-arena/games/blokus"
	"github.com/janpfeifer/mcts-arena/games/connect4"
	"github.com/janpfeifer/mcts-arena/games/gomoku"
	"github.com/janpfeifer/mcts-arena/games/hive"
	"github.com/janpfeifer/mcts-arena/games/othello"
	"github.com/janpfeifer/mcts-arena/internal/controller"
	"github.com/janpfeifer/mcts-arena/internal/game"
	"github.com/janpfeifer/mcts-arena/internal/gpu"
	"github.com/janpfeifer/mcts-arena/internal/gpu/hybrid"
	"github.com/janpfeifer/mcts-arena/internal/gpu/othellonative"
	"github.com/janpfeifer/mcts-arena/internal/mcts"
	"github.com/janpfeifer/mcts-arena/internal/parameters"
	"github.com/janpfeifer/mcts-arena/internal/profilers"
	"github.com/janpfeifer/mcts-arena/internal/ui/spinning"
)

var (
	flagGame       = flag.String("game", "gomoku", "one of: gomoku, connect4, othello, blokus, hive")
	flagIterations = flag.Int("iterations", 10000, "MCTS iterations per move")
	flagDeadline   = flag.Duration("deadline", 0, "wall-clock budget per move, 0 for unbounded")
	flagConfig     = flag.String("config", "", "extra engine parameters, comma-separated key=value (threads, max_nodes, c_puct, virtual_loss, shared_tree)")
	flagVerbose    = flag.Bool("v_tsv", false, "print the per-move TSV diagnostic line (spec §6) in addition to the summary")
	flagSeed       = flag.Int64("seed", 42, "rollout RNG seed")

	flagGPU            = flag.Bool("gpu", false, "batch PUCT selection and leaf evaluation through the GoMLX hybrid accelerator (spec C9/C10); gomoku/connect4/othello only")
	flagGPUThreshold   = flag.Int("gpu_fallback_threshold", hybrid.DefaultFallbackThreshold, "batch size below which -gpu falls back to the CPU path")
	flagGPUNative      = flag.Bool("gpu_native", false, "drive -game=othello through the GPU-native engine (spec C11) instead of the generic searcher")
	flagGPUNativeBatch = flag.Int("gpu_native_batch", 64, "simulated device threads per -gpu_native dispatch")
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	profilers.Setup(ctx)
	defer profilers.OnQuit()
	spinning.SafeInterrupt(cancel, 2*time.Second)

	flag.Parse()
	params := parameters.NewFromConfigString(*flagConfig)
	threads, err := parameters.PopParamOr(params, "threads", 4)
	if err != nil {
		klog.Fatal(err)
	}
	maxNodes, err := parameters.PopParamOr(params, "max_nodes", 2_000_000)
	if err != nil {
		klog.Fatal(err)
	}
	cPuct, err := parameters.PopParamOr(params, "c_puct", float32(1.4))
	if err != nil {
		klog.Fatal(err)
	}
	virtualLoss, err := parameters.PopParamOr(params, "virtual_loss", 3)
	if err != nil {
		klog.Fatal(err)
	}
	sharedTree, err := parameters.PopParamOr(params, "shared_tree", true)
	if err != nil {
		klog.Fatal(err)
	}

	cfg := mcts.Config{
		Threads:           threads,
		VirtualLossWeight: int64(virtualLoss),
	}

	if *flagGame == "othello" && *flagGPUNative {
		runOthelloNativeSelfPlay(ctx, maxNodes, cfg, cPuct)
		return
	}

	// -gpu batches PUCT selection and leaf evaluation through the GoMLX hybrid accelerator
	// (spec C9/C10) — only the three rectangular two-player games' BoardView packs into the
	// accelerator's +1/-1/0 perspective projection (internal/gpu/hybrid.packBoard); Blokus's
	// per-player rewards and Hive's non-rectangular board keep the CPU rollout evaluator.
	var accel *hybrid.Accelerator
	gpuEligible := *flagGame == "gomoku" || *flagGame == "connect4" || *flagGame == "othello"
	if *flagGPU && gpuEligible {
		accel = hybrid.New(gpu.New())
		accel.FallbackThreshold = *flagGPUThreshold
	} else if *flagGPU {
		klog.Warningf("-gpu has no effect for -game=%s (not a rectangular two-player grid game)", *flagGame)
	}

	switch *flagGame {
	case "gomoku":
		runSelfPlay(ctx, gomoku.New(15, 5), maxNodes, cfg, sharedTree, cPuct, accel)
	case "connect4":
		runSelfPlay(ctx, connect4.New(), maxNodes, cfg, sharedTree, cPuct, accel)
	case "othello":
		runSelfPlay(ctx, othello.New(), maxNodes, cfg, sharedTree, cPuct, accel)
	case "blokus":
		runSelfPlay(ctx, blokus.New(), maxNodes, cfg, sharedTree, cPuct, accel)
	case "hive":
		runSelfPlay(ctx, hive.New(), maxNodes, cfg, sharedTree, cPuct, accel)
	default:
		klog.Fatalf("unknown -game=%q", *flagGame)
	}
}

// runSelfPlay drives one game to completion, searching every ply with one evaluator and
// searcher built at the start of the game, and reporting move-by-move statistics. M is inferred from the initial state's type, so
// one generic function covers all five games without per-game boilerplate. accel is non-nil
// only for the three grid games when -gpu is set (see main); every other caller passes nil
// and gets the plain CPU searcher exactly as before.
func runSelfPlay[M comparable](ctx context.Context, initial game.State[M], maxNodes int, cfg mcts.Config, sharedTree bool, cPuct float32, accel *hybrid.Accelerator) {
	ctrl := controller.New(initial)
	rollout := mcts.NewRandomRolloutEvaluator[M](200, *flagSeed)

	var searcher *mcts.Searcher[M]
	if accel != nil {
		searcher = mcts.NewSearcher[M](hybrid.NewGridEvaluator[M](accel), cfg)
		searcher.PUCTScorer = accel.BatchPUCT
	} else {
		searcher = mcts.NewSearcher[M](rollout, cfg)
	}

	pool := mcts.NewTreePool[M](sharedTree, func(player int) *mcts.Tree[M] {
		return mcts.NewTree[M](ctrl.State(), maxNodes, cPuct, mcts.MaxVisits, cfg.VirtualLossWeight)
	})

	ply := 0
	for {
		s := ctrl.State()
		if s.IsTerminal() {
			break
		}
		spin := spinning.New(ctx)
		move, ok, stats, err := pool.SearchMove(ctx, searcher, s.CurrentPlayer(), s, *flagIterations, *flagDeadline)
		spin.Done()
		if err != nil {
			klog.Fatalf("search failed at ply %d: %v", ply, err)
		}
		if !ok {
			klog.Fatalf("search returned no move at ply %d with legal moves available", ply)
		}

		result, aiErr := ctrl.TryAiMove(move)
		if aiErr != nil {
			klog.Fatal(aiErr)
		}
		fmt.Printf("ply %d (player %d): %v — %s\n", ply, s.CurrentPlayer(), move, stats.Summary())
		if *flagVerbose {
			fmt.Println(stats.TSV(fmt.Sprintf("ply-%d", ply)))
		}
		if result.Outcome == controller.GameOver {
			break
		}
		ply++
	}

	final := ctrl.State()
	if winner, ok := final.Winner(); ok {
		fmt.Printf("game over after %d plies: player %d wins\n", ply, winner)
	} else {
		fmt.Printf("game over after %d plies: draw\n", ply)
	}
	fmt.Println(ctrl.FormatHistory())
}

// runOthelloNativeSelfPlay drives an Othello game end-to-end through othellonative.Engine
// (spec component C11) instead of the generic mcts.Searcher — the "GPU-native" Othello
// search mode the spec describes as delegable per-game, bypassing internal/controller
// entirely since the engine tracks its own states/moves arena. Each ply reuses the
// previous tree via AdvanceRoot when the move played matches a known child (root-advance
// tree reuse, spec §4.11), exactly like mcts.TreePool does for the generic searcher.
func runOthelloNativeSelfPlay(ctx context.Context, maxNodes int, cfg mcts.Config, cPuct float32) {
	cur := othello.New()
	eng := othellonative.New(cur, othellonative.Config{
		MaxNodes:     maxNodes,
		BatchSize:    *flagGPUNativeBatch,
		CPuct:        cPuct,
		VirtualLoss:  cfg.VirtualLossWeight,
		MaxRolloutPl: 64,
		Seed:         *flagSeed,
	})

	ply := 0
	for !cur.IsTerminal() {
		spin := spinning.New(ctx)
		stop := deadlineStop(ctx, *flagDeadline)
		move, ok := eng.BestMove(*flagIterations, stop)
		spin.Done()
		if !ok {
			klog.Fatalf("gpu-native search returned no move at ply %d with legal moves available", ply)
		}

		next := cur.Apply(move).(*othello.State)
		eng.AdvanceRoot(move, next)
		visits, wins, numChildren := eng.RootStats()
		fmt.Printf("ply %d (player %d): %v — nodes=%d visits=%d wins=%d children=%d saturated=%v\n",
			ply, cur.CurrentPlayer(), move, eng.TotalNodes(), visits, wins, numChildren, eng.Saturated())
		cur = next
		ply++
	}

	if winner, ok := cur.Winner(); ok {
		fmt.Printf("game over after %d plies: player %d wins\n", ply, winner)
	} else {
		fmt.Printf("game over after %d plies: draw\n", ply)
	}
}

// deadlineStop returns an *atomic.Bool that flips true once deadline elapses or ctx is
// cancelled, mirroring the stop signal othellonative.Engine.BestMove polls between
// dispatches — it has no context.Context parameter of its own since its dispatch loop
// isn't a single blocking call to select on.
func deadlineStop(ctx context.Context, deadline time.Duration) *atomic.Bool {
	stop := &atomic.Bool{}
	if deadline <= 0 {
		go func() {
			<-ctx.Done()
			stop.Store(true)
		}()
		return stop
	}
	timer := time.AfterFunc(deadline, func() { stop.Store(true) })
	go func() {
		<-ctx.Done()
		timer.Stop()
		stop.Store(true)
	}()
	return stop
}
