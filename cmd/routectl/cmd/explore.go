package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"freightgraph/internal/explorer"
)

var (
	exploreDate    string
	exploreMaxHops int
	exploreJSON    bool
	exploreVerbose bool
)

var exploreCmd = &cobra.Command{
	Use:   "explore <start-port> [end-port]",
	Short: "Explore multi-hop sea routes from a port",
	Long: `Explore voyages leaving a port and follow them hop by hop.

Examples:
  routectl explore INCOK NLRTM --date 2025-05-01
  routectl explore INCOK --max-hops 2 --json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDate(exploreDate)
		if err != nil {
			return err
		}
		req := explorer.Request{StartPort: strings.ToUpper(args[0]), StartDate: start, MaxHops: exploreMaxHops}
		if len(args) == 2 {
			req.EndPort = strings.ToUpper(args[1])
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var onProgress func(explorer.Progress)
		if exploreVerbose {
			onProgress = func(p explorer.Progress) {
				fmt.Fprintf(cmd.ErrOrStderr(), "port %-6s depth %d processed %d frontier %d routes %d\n", p.Port, p.Depth, p.Processed, p.Frontier, p.CompleteRoutes)
			}
		}
		res, err := a.Explorer().Explore(cmd.Context(), req, onProgress)
		if err != nil {
			return err
		}
		if exploreJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		printRoutes(cmd, res)
		return nil
	},
}

func printRoutes(cmd *cobra.Command, res *explorer.Result) {
	out := cmd.OutOrStdout()
	for _, r := range res.CompleteRoutes {
		fmt.Fprintf(out, "%s  hops %d  %s -> %s\n", strings.Join(r.Path, " > "), r.TotalHops,
			r.Departure.Format(time.DateTime), r.Arrival.Format(time.DateTime))
	}
	s := res.Stats
	fmt.Fprintf(out, "%d routes, %d ports, %d voyages accepted of %d, stopped by %s in %dms\n",
		len(res.CompleteRoutes), s.PortsProcessed, s.VoyagesAccepted, s.VoyagesFetched, s.StoppedBy, s.ElapsedMs)
}

func init() {
	exploreCmd.Flags().StringVarP(&exploreDate, "date", "d", "", "start date YYYY-MM-DD (default today)")
	exploreCmd.Flags().IntVar(&exploreMaxHops, "max-hops", 0, "hop limit (default from config)")
	exploreCmd.Flags().BoolVar(&exploreJSON, "json", false, "print the full result as JSON")
	exploreCmd.Flags().BoolVarP(&exploreVerbose, "verbose", "v", false, "print progress to stderr")
	rootCmd.AddCommand(exploreCmd)
}
