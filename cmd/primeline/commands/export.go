package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/moolen/primeline/internal/export"
	"github.com/spf13/cobra"
)

var (
	exportEventsPath string
	exportSessionID  string
	exportSessionDir string
	exportFormat     string
	exportOutPath    string
	exportStart      string
	exportEnd        string
	exportErrors     []string
	exportComponent  string
	exportIndex      string
	exportOneBased   bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export decoded session events as CSV, JSONL, or an Elasticsearch bulk body",
	Long: `Export decodes every event of a session back into its label set and
writes the rows in the chosen format. Filters restrict the output to a
time window, to events carrying given error labels, or to events
touching one component.`,
	Run: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportEventsPath, "events", "", "Path to an events artifact (alternative to --session)")
	exportCmd.Flags().StringVar(&exportSessionID, "session", "", "Session id within the session directory")
	exportCmd.Flags().StringVar(&exportSessionDir, "session-dir", "", "Session directory (default from config)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, jsonl, or elastic")
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "Write to this file instead of stdout")
	exportCmd.Flags().StringVar(&exportStart, "start", "", "Only events at or after this time (RFC3339 or natural language)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "Only events before this time (RFC3339 or natural language)")
	exportCmd.Flags().StringSliceVar(&exportErrors, "errors", nil, "Only events carrying at least one of these labels")
	exportCmd.Flags().StringVar(&exportComponent, "component", "", "Only events where this component is caller or callee")
	exportCmd.Flags().StringVar(&exportIndex, "index", "", "Elasticsearch index for the elastic format (default from config)")
	exportCmd.Flags().BoolVar(&exportOneBased, "one-based", false, "Treat artifact caller/callee indices as 1-based")
}

func runExport(cmd *cobra.Command, args []string) {
	cfg, logger := setup("export")

	format := export.Format(exportFormat)
	switch format {
	case export.FormatCSV, export.FormatJSONL, export.FormatElastic:
	default:
		HandleError(fmt.Errorf("unknown format %q, expected csv, jsonl, or elastic", exportFormat), "Invalid arguments")
	}

	eventsPath, _, err := resolveEvents(cfg, exportEventsPath, exportSessionID, exportSessionDir)
	if err != nil {
		HandleError(err, "Cannot locate events artifact")
	}

	events, loadReport, err := artifact.LoadEvents(eventsPath, loadOptions(cfg, exportOneBased)...)
	if err != nil {
		HandleError(err, "Failed to load events artifact")
	}
	warnLoadReport(logger, loadReport)

	dec, err := codec.NewCodec(events.Space)
	if err != nil {
		HandleError(err, "Invalid label space in artifact")
	}

	filter := export.Filter{
		Labels:    exportErrors,
		Component: exportComponent,
	}
	if exportStart != "" {
		t, err := export.ParseTimeBound(exportStart, "start")
		if err != nil {
			HandleError(err, "Invalid --start")
		}
		filter.Start = t
	}
	if exportEnd != "" {
		t, err := export.ParseTimeBound(exportEnd, "end")
		if err != nil {
			HandleError(err, "Invalid --end")
		}
		filter.End = t
	}

	rows, err := export.NewExporter(dec).Rows(events, filter)
	if err != nil {
		HandleError(err, "Export failed")
	}

	index := exportIndex
	if index == "" {
		index = cfg.Export.ElasticIndex
	}

	var out io.Writer = os.Stdout
	if exportOutPath != "" {
		f, err := os.Create(exportOutPath)
		if err != nil {
			HandleError(err, "Failed to create output file")
		}
		defer f.Close()
		out = f
	}

	if err := export.Write(out, format, rows, index); err != nil {
		HandleError(err, "Failed to write export")
	}
	if exportOutPath != "" {
		logger.Info("Exported %d of %d events to %s", len(rows), len(events.Events), exportOutPath)
	}
}
