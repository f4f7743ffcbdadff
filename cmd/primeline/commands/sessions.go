package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/moolen/primeline/internal/session"
	"github.com/spf13/cobra"
)

var sessionsDir string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sessions in the session directory",
	Run:   runSessionsList,
}

func init() {
	sessionsListCmd.Flags().StringVar(&sessionsDir, "session-dir", "", "Session directory (default from config)")

	sessionsCmd.AddCommand(sessionsListCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) {
	cfg, _ := setup("sessions")

	store, err := session.NewStore(resolveSessionDir(cfg, sessionsDir))
	if err != nil {
		HandleError(err, "Failed to open session directory")
	}
	infos, err := store.List()
	if err != nil {
		HandleError(err, "Failed to list sessions")
	}
	if len(infos) == 0 {
		fmt.Printf("no sessions in %s\n", store.Dir())
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Session\tStart\tEvents\tComponents\tAdjacency\tAnalyzed")
	for _, info := range infos {
		start := "-"
		if !info.Start.IsZero() {
			start = info.Start.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			info.ID,
			start,
			info.EventCount,
			info.Components,
			yesNo(info.HasAdjacency),
			yesNo(info.HasAnalysis))
	}
	w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
