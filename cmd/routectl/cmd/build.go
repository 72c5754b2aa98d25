package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"freightgraph/internal/graph"
)

var (
	buildFrom string
	buildTo   string
	buildDate string
	buildOut  string
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a multimodal graph between two coordinates",
	Long: `Build a road/air/sea graph between two coordinates and print it as JSON.

Examples:
  routectl build --from 9.93,76.27 --to 52.37,4.90 --date 2025-05-01
  routectl build --from 9.93,76.27 --to 52.37,4.90 -o graph.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		origin, err := parseLatLng(buildFrom)
		if err != nil {
			return err
		}
		dest, err := parseLatLng(buildTo)
		if err != nil {
			return err
		}
		start, err := parseDate(buildDate)
		if err != nil {
			return err
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.Builder().Build(cmd.Context(), graph.Request{Origin: origin, Destination: dest, StartDate: start})
		if err != nil {
			return err
		}
		if buildOut == "" {
			return printJSON(cmd.OutOrStdout(), g)
		}
		f, err := os.Create(buildOut)
		if err != nil {
			return err
		}
		if err := printJSON(f, g); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %d nodes, %d edges, %d journeys\n", buildOut, len(g.Nodes), len(g.Edges), len(g.Journeys))
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVar(&buildFrom, "from", "", "origin as lat,lng")
	buildCmd.Flags().StringVar(&buildTo, "to", "", "destination as lat,lng")
	buildCmd.Flags().StringVarP(&buildDate, "date", "d", "", "start date YYYY-MM-DD (default today)")
	buildCmd.Flags().StringVarP(&buildOut, "out", "o", "", "write the graph to a file instead of stdout")
	_ = buildCmd.MarkFlagRequired("from")
	_ = buildCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(buildCmd)
}
