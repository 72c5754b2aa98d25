package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"freightgraph/internal/model"
	"freightgraph/internal/route"
)

var (
	pathGraph     string
	pathFrom      string
	pathTo        string
	pathCriterion string
	pathWeights   string
	pathBlocked   []string
)

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Find the shortest path in a saved graph",
	Long: `Find the shortest path between two nodes of a graph written by "routectl build".

Examples:
  routectl path --graph graph.json --from origin --to destination --criterion time
  routectl path --graph graph.json --from origin --to destination --criterion weighted --weights 0.6,0.2,0.2
  routectl path --graph graph.json --from origin --to destination --criterion cost --blocked DXB`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(pathGraph)
		if err != nil {
			return err
		}
		var g model.Graph
		if err := json.Unmarshal(data, &g); err != nil {
			return fmt.Errorf("parse graph %s: %w", pathGraph, err)
		}
		opts := route.Options{Criterion: model.Criterion(pathCriterion), Blocked: pathBlocked}
		if pathWeights != "" {
			w, err := parseWeights(pathWeights)
			if err != nil {
				return err
			}
			opts.Weights = &w
		}
		res, err := route.Find(&g, pathFrom, pathTo, opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !res.Reachable() {
			fmt.Fprintf(out, "%s is unreachable from %s\n", pathTo, pathFrom)
			return nil
		}
		for _, e := range res.Path {
			fmt.Fprintf(out, "%-5s %s -> %s  %.1fh  %.2ft  $%.0f\n", e.Mode, e.Source, e.Target, e.DurationHours, e.EmissionsTons, e.Cost)
		}
		fmt.Fprintf(out, "%s: %s\n", pathCriterion, strconv.FormatFloat(float64(res.Distance), 'f', -1, 64))
		return nil
	},
}

// parseWeights reads "duration,emissions,cost".
func parseWeights(s string) (route.Weights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return route.Weights{}, fmt.Errorf("weights %q: want duration,emissions,cost", s)
	}
	var v [3]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) {
			return route.Weights{}, fmt.Errorf("weights %q: %q is not a number", s, p)
		}
		v[i] = f
	}
	return route.Weights{Duration: v[0], Emissions: v[1], Cost: v[2]}, nil
}

func init() {
	pathCmd.Flags().StringVarP(&pathGraph, "graph", "g", "", "graph JSON file")
	pathCmd.Flags().StringVar(&pathFrom, "from", "origin", "start node id")
	pathCmd.Flags().StringVar(&pathTo, "to", "destination", "end node id")
	pathCmd.Flags().StringVar(&pathCriterion, "criterion", "time", "time, cost, co2 or weighted")
	pathCmd.Flags().StringVar(&pathWeights, "weights", "", "weighted criterion blend as duration,emissions,cost")
	pathCmd.Flags().StringSliceVar(&pathBlocked, "blocked", nil, "node ids to avoid")
	_ = pathCmd.MarkFlagRequired("graph")
	rootCmd.AddCommand(pathCmd)
}
