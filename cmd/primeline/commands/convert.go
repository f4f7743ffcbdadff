package commands

import (
	"fmt"
	"math"
	"strings"

	"github.com/moolen/primeline/internal/artifact"
	"github.com/moolen/primeline/internal/codec"
	"github.com/spf13/cobra"
)

var (
	convertLabels     []string
	convertValue      uint64
	convertLog        float64
	convertEventsPath string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert between label sets, composites, and log values",
	Long: `Convert translates a single value through the prime codec: a label set
to its composite and log value, a composite back to labels, or a stored
log value back to the composite it encodes. The label space comes from
an events artifact when --events is given, otherwise the built-in
default space is used.`,
	Run: runConvert,
}

func init() {
	convertCmd.Flags().StringSliceVar(&convertLabels, "labels", nil, "Label set to encode, e.g. timeout,network_error")
	convertCmd.Flags().Uint64Var(&convertValue, "value", 0, "Composite to factor back into labels")
	convertCmd.Flags().Float64Var(&convertLog, "log", 0, "Log value to recover and factor")
	convertCmd.Flags().StringVar(&convertEventsPath, "events", "", "Events artifact providing the label space")
}

func runConvert(cmd *cobra.Command, args []string) {
	_, logger := setup("convert")

	modes := 0
	if len(convertLabels) > 0 {
		modes++
	}
	if cmd.Flags().Changed("value") {
		modes++
	}
	if cmd.Flags().Changed("log") {
		modes++
	}
	if modes != 1 {
		HandleError(fmt.Errorf("exactly one of --labels, --value, or --log is required"), "Invalid arguments")
	}

	space := codec.DefaultLabelSpace()
	if convertEventsPath != "" {
		events, _, err := artifact.LoadEvents(convertEventsPath)
		if err != nil {
			HandleError(err, "Failed to load events artifact")
		}
		space = events.Space
		logger.Debug("label space with %d labels loaded from %s", space.Len(), convertEventsPath)
	}

	dec, err := codec.NewCodec(space)
	if err != nil {
		HandleError(err, "Invalid label space")
	}

	switch {
	case len(convertLabels) > 0:
		composite, err := dec.Encode(convertLabels)
		if err != nil {
			HandleError(err, "Encoding failed")
		}
		printConversion(convertLabels, composite)

	case cmd.Flags().Changed("value"):
		labels, err := dec.Decode(convertValue)
		if err != nil {
			HandleError(err, "Decoding failed")
		}
		printConversion(labels, convertValue)

	case cmd.Flags().Changed("log"):
		labels, err := dec.DecodeLog(convertLog)
		if err != nil && !codec.IsPrecisionBoundaryError(err) {
			HandleError(err, "Decoding failed")
		}
		composite := uint64(math.Round(math.Exp(convertLog)))
		printConversion(labels, composite)
		if codec.IsPrecisionBoundaryError(err) {
			fmt.Printf("note:      %v, decode is best-effort\n", err)
		}
	}
}

func printConversion(labels []string, composite uint64) {
	fmt.Printf("labels:    %s\n", strings.Join(labels, ", "))
	fmt.Printf("composite: %d\n", composite)
	fmt.Printf("log value: %.12g\n", codec.LogValue(composite))
	if composite > codec.PrecisionBoundary {
		fmt.Printf("note:      composite exceeds 2^53, the log form is approximate\n")
	}
}
