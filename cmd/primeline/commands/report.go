package commands

import (
	"fmt"

	"github.com/moolen/primeline/internal/analysis"
	"github.com/moolen/primeline/internal/report"
	"github.com/moolen/primeline/internal/session"
	"github.com/spf13/cobra"
)

var (
	reportAnalysisPath string
	reportSessionID    string
	reportSessionDir   string
	reportRaw          bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Render an analysis report for the terminal",
	Long: `Report renders a previously written analysis report as styled
markdown. When stdout is not a terminal, or with --raw, the plain
markdown is printed instead so the output stays pipeable.`,
	Run: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportAnalysisPath, "analysis", "", "Path to an analysis report (alternative to --session)")
	reportCmd.Flags().StringVar(&reportSessionID, "session", "", "Session id within the session directory")
	reportCmd.Flags().StringVar(&reportSessionDir, "session-dir", "", "Session directory (default from config)")
	reportCmd.Flags().BoolVar(&reportRaw, "raw", false, "Print plain markdown without terminal styling")
}

func runReport(cmd *cobra.Command, args []string) {
	cfg, _ := setup("report")

	path := reportAnalysisPath
	switch {
	case path != "" && reportSessionID != "":
		HandleError(fmt.Errorf("--analysis and --session are mutually exclusive"), "Invalid arguments")
	case path == "" && reportSessionID == "":
		HandleError(fmt.Errorf("either --analysis or --session is required"), "Invalid arguments")
	case reportSessionID != "":
		store, err := session.NewStore(resolveSessionDir(cfg, reportSessionDir))
		if err != nil {
			HandleError(err, "Failed to open session directory")
		}
		sess, err := store.Get(reportSessionID)
		if err != nil {
			HandleError(err, "Unknown session")
		}
		path = sess.AnalysisPath()
	}

	rep, err := analysis.ReadReport(path)
	if err != nil {
		HandleError(err, "Failed to read analysis report (run 'primeline analyze' first)")
	}

	markdown := report.Build(rep)
	if reportRaw {
		fmt.Print(markdown)
		return
	}

	rendered, err := report.Render(markdown)
	if err != nil {
		HandleError(err, "Failed to render report")
	}
	fmt.Print(rendered)
}
