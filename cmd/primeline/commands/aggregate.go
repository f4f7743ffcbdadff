package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/moolen/primeline/internal/aggregate"
	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/session"
	"github.com/spf13/cobra"
)

var (
	aggregateOutPath    string
	aggregateAdjOutPath string
	aggregateOneBased   bool
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate --out FILE EVENTS_FILE...",
	Short: "Merge event artifacts from several nodes into one session",
	Long: `Aggregate merges per-node event artifacts into a single session:
components are namespaced by node, timestamps are lifted onto a shared
absolute timeline, and prime maps are unioned. An artifact named
events_<id>.json picks up a sibling adjacency_<id>.json automatically;
merged adjacency is written when --adjacency-out is given.`,
	Run: runAggregate,
}

func init() {
	aggregateCmd.Flags().StringVar(&aggregateOutPath, "out", "", "Path for the merged events artifact (required)")
	aggregateCmd.Flags().StringVar(&aggregateAdjOutPath, "adjacency-out", "", "Path for the merged adjacency artifact")
	aggregateCmd.Flags().BoolVar(&aggregateOneBased, "one-based", false, "Treat artifact caller/callee indices as 1-based")

	aggregateCmd.MarkFlagRequired("out")
}

func runAggregate(cmd *cobra.Command, args []string) {
	cfg, logger := setup("aggregate")

	if len(args) == 0 {
		HandleError(fmt.Errorf("at least one events artifact is required"), "Invalid arguments")
	}

	inputs := make([]aggregate.NodeInput, 0, len(args))
	for _, path := range args {
		inputs = append(inputs, nodeInputFromPath(path))
	}

	result, err := aggregate.NewMerger().Merge(cmd.Context(), inputs, loadOptions(cfg, aggregateOneBased)...)
	if err != nil {
		HandleError(err, "Aggregation failed")
	}
	for node, rep := range result.Reports {
		if len(rep.Rejected) > 0 {
			logger.Warn("node %s: %d records were rejected during load", node, len(rep.Rejected))
		}
	}

	result.Events.SessionID = uuid.NewString()
	if err := artifact.WriteEvents(aggregateOutPath, result.Events); err != nil {
		HandleError(err, "Failed to write merged events")
	}

	if aggregateAdjOutPath != "" {
		if result.Adjacency == nil {
			logger.Warn("no input carried an adjacency artifact, skipping --adjacency-out")
		} else {
			result.Adjacency.SessionID = result.Events.SessionID
			if err := artifact.WriteAdjacency(aggregateAdjOutPath, result.Adjacency); err != nil {
				HandleError(err, "Failed to write merged adjacency")
			}
		}
	}

	fmt.Printf("merged %d nodes into session %s: %d events across %d components\n",
		len(inputs), result.Events.SessionID, len(result.Events.Events), len(result.Events.Components))
	fmt.Printf("events written to %s\n", aggregateOutPath)
	if aggregateAdjOutPath != "" && result.Adjacency != nil {
		fmt.Printf("adjacency written to %s\n", aggregateAdjOutPath)
	}
}

// nodeInputFromPath derives the node id from the artifact file name and
// pairs store-named artifacts with their adjacency sibling.
func nodeInputFromPath(path string) aggregate.NodeInput {
	base := filepath.Base(path)
	input := aggregate.NodeInput{EventsPath: path}

	if id, ok := session.IDFromEventsFile(base); ok {
		input.NodeID = id
		sibling := (&session.Session{ID: id, Dir: filepath.Dir(path)}).AdjacencyPath()
		if _, err := os.Stat(sibling); err == nil {
			input.AdjacencyPath = sibling
		}
		return input
	}

	input.NodeID = strings.TrimSuffix(base, filepath.Ext(base))
	return input
}
