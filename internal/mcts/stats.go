package mcts

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// TSV formats stats as the tab-separated diagnostic line described in spec §6:
// phase, total_visits, root_q, visit_diff, best_move, best_visits, best_q, best_u,
// second_move, second_visits, second_q, second_u. "Best"/"second" rank children by
// visits. Stats does not retain the exploration component of any PUCT score, so
// best_u/second_u are always written as 0.0000.
// phase is supplied by the caller since Stats itself doesn't know which move-number in the
// game it corresponds to.
func (st Stats) TSV(phase string) string {
	children := append([]ChildStat(nil), st.Children...)
	// Stable sort by visits descending; ties keep original (index) order, matching the
	// lowest-index tie-break used everywhere else in selection.
	for i := 1; i < len(children); i++ {
		for j := i; j > 0 && children[j].Visits > children[j-1].Visits; j-- {
			children[j], children[j-1] = children[j-1], children[j]
		}
	}

	visitDiff := int64(0)
	if len(children) >= 2 {
		visitDiff = children[0].Visits - children[1].Visits
	} else if len(children) == 1 {
		visitDiff = children[0].Visits
	}

	var best, second ChildStat
	if len(children) >= 1 {
		best = children[0]
	}
	if len(children) >= 2 {
		second = children[1]
	}

	fields := []string{
		phase,
		fmt.Sprintf("%d", st.RootVisits),
		fmt.Sprintf("%.4f", st.RootValue),
		fmt.Sprintf("%d", visitDiff),
		best.Move,
		fmt.Sprintf("%d", best.Visits),
		fmt.Sprintf("%.4f", best.Q),
		"0.0000",
		second.Move,
		fmt.Sprintf("%d", second.Visits),
		fmt.Sprintf("%.4f", second.Q),
		"0.0000",
	}
	return strings.Join(fields, "\t")
}

// Summary renders a one-line human-readable digest (elapsed time, throughput, node count)
// for CLI/log output, using go-humanize the way the teacher formats durations and counts
// elsewhere in its CLI layer.
func (st Stats) Summary() string {
	throughput := 0.0
	if st.Elapsed > 0 {
		throughput = float64(st.IterationsRun) / st.Elapsed.Seconds()
	}
	return fmt.Sprintf("search %s: %s nodes, %s iterations in %s (%.0f it/s), root_value=%.3f",
		st.SearchID, humanize.Comma(int64(st.TotalNodes)), humanize.Comma(st.IterationsRun),
		st.Elapsed.Round(time.Millisecond), throughput, st.RootValue)
}
