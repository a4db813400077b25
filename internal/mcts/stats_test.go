package mcts

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestStatsTSVOrdersChildrenByVisitsDescending(t *testing.T) {
	st := Stats{
		SearchID:  uuid.New(),
		RootVisits: 30,
		RootValue:  0.25,
		Children: []ChildStat{
			{Move: "a", Visits: 5, Q: 0.1},
			{Move: "b", Visits: 20, Q: 0.5},
			{Move: "c", Visits: 5, Q: 0.2},
		},
	}
	line := st.TSV("move-3")
	fields := strings.Split(line, "\t")
	require.Equal(t, "move-3", fields[0])
	require.Equal(t, "30", fields[1])
	require.Equal(t, "b", fields[4], "highest-visit child must be reported first")
	require.Equal(t, "20", fields[5])
}

func TestStatsTSVHandlesNoChildren(t *testing.T) {
	st := Stats{SearchID: uuid.New()}
	line := st.TSV("p0")
	fields := strings.Split(line, "\t")
	require.Equal(t, "0", fields[3], "visit_diff with no children is 0")
	require.Equal(t, "", fields[4])
}

func TestStatsSummaryIncludesCounts(t *testing.T) {
	st := Stats{
		SearchID:      uuid.New(),
		TotalNodes:    1234,
		IterationsRun: 5000,
		Elapsed:       250 * time.Millisecond,
		RootValue:     0.5,
	}
	summary := st.Summary()
	require.Contains(t, summary, "1,234")
	require.Contains(t, summary, "5,000")
	require.Contains(t, summary, "root_value=0.500")
}
