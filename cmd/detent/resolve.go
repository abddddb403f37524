package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aretw0/detent/internal/resolver"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <detent>...",
	Short: "Resolve detent specs into concrete heights",
	Long: `Resolves detents the way the engine does at mount time.

Detents are written as in config files: a number is a fixed height, "NN%"
is a share of the max height, and "small", "medium", "large" and "auto" are
named sizes. Auto needs --content (and optionally --footer) to be final.`,
	Example: `  detent resolve 50% large --max-height 800
  detent resolve auto 600 --content 300 --footer 50 --position 350`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := make([]any, len(args))
		for i, a := range args {
			raw[i] = a
		}
		specs, err := resolver.ParseAll(raw)
		if err != nil {
			return err
		}

		maxHeight, _ := cmd.Flags().GetFloat64("max-height")
		medium, _ := cmd.Flags().GetFloat64("medium-height")
		bounds := resolver.Bounds{MaxHeight: maxHeight, MediumHeight: medium}

		var measured resolver.Measurements
		if cmd.Flags().Changed("content") {
			v, _ := cmd.Flags().GetFloat64("content")
			measured.ContentHeight = &v
		}
		if cmd.Flags().Changed("footer") {
			v, _ := cmd.Flags().GetFloat64("footer")
			measured.FooterHeight = &v
		}

		res, err := resolver.Resolve(specs, bounds, measured)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tDETENT\tHEIGHT\tPOSITION")
		for i, spec := range specs {
			h := res.Detents[i]
			fmt.Fprintf(w, "%d\t%s\t%g\t%g\n", i, spec, h, resolver.PositionFor(h, maxHeight))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if res.Provisional {
			fmt.Fprintln(out, "\nauto is provisional until content is measured (--content)")
		}
		if len(specs) > resolver.MaxNativeDetents {
			fmt.Fprintf(out, "\nwarning: more than %d detents may not snap natively\n", resolver.MaxNativeDetents)
		}

		if cmd.Flags().Changed("position") {
			pos, _ := cmd.Flags().GetFloat64("position")
			s := resolver.Sample(res.Detents, resolver.HeightFor(pos, maxHeight), maxHeight, false)
			fmt.Fprintf(out, "\nposition %g: index %.3f, nearest %d (%g)\n", pos, s.Index, s.NearestIndex, s.Detent)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().Float64("max-height", 800, "Height available to the sheet")
	resolveCmd.Flags().Float64("medium-height", 0, "Platform medium height (default half of max)")
	resolveCmd.Flags().Float64("content", 0, "Measured content height for auto detents")
	resolveCmd.Flags().Float64("footer", 0, "Measured footer height for auto detents")
	resolveCmd.Flags().Float64("position", 0, "Also report the continuous index at this top offset")
}
