package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/moolen/primeline/internal/analysis"
	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/spf13/cobra"
)

var (
	statsEventsPath string
	statsSessionID  string
	statsSessionDir string
	statsTopN       int
	statsOneBased   bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the statistics digest for a session without the full battery",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsEventsPath, "events", "", "Path to an events artifact (alternative to --session)")
	statsCmd.Flags().StringVar(&statsSessionID, "session", "", "Session id within the session directory")
	statsCmd.Flags().StringVar(&statsSessionDir, "session-dir", "", "Session directory (default from config)")
	statsCmd.Flags().IntVar(&statsTopN, "top", 0, "Offender ranking depth (default 10)")
	statsCmd.Flags().BoolVar(&statsOneBased, "one-based", false, "Treat artifact caller/callee indices as 1-based")
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, logger := setup("stats")

	eventsPath, _, err := resolveEvents(cfg, statsEventsPath, statsSessionID, statsSessionDir)
	if err != nil {
		HandleError(err, "Cannot locate events artifact")
	}

	events, loadReport, err := artifact.LoadEvents(eventsPath, loadOptions(cfg, statsOneBased)...)
	if err != nil {
		HandleError(err, "Failed to load events artifact")
	}
	warnLoadReport(logger, loadReport)

	dec, err := codec.NewCodec(events.Space)
	if err != nil {
		HandleError(err, "Invalid label space in artifact")
	}

	topN := statsTopN
	if topN == 0 {
		topN = cfg.Analysis.TopN
	}
	st, err := analysis.BuildStats(events.Events, events.Components, dec, topN)
	if err != nil {
		HandleError(err, "Stats failed")
	}

	fmt.Printf("%d events, %d carrying error labels, total log weight %.4g\n",
		st.TotalEvents, st.ErrorEvents, st.TotalWeight)

	if len(st.Labels) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Label\tCount")
		for _, lc := range st.Labels {
			fmt.Fprintf(w, "%s\t%d\n", lc.Label, lc.Count)
		}
		w.Flush()
	}

	printComponentStats("Top callers", st.TopCallers)
	printComponentStats("Top callees", st.TopCallees)
}

func printComponentStats(title string, stats []analysis.ComponentStat) {
	if len(stats) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Component\tEvents\tWeight")
	for _, cs := range stats {
		fmt.Fprintf(w, "%s\t%d\t%.4g\n", cs.Component, cs.Events, cs.Weight)
	}
	w.Flush()
}
