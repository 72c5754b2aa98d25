package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the schedule cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entry counts per namespace",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.Cache.Stats(cmd.Context())
		if err != nil {
			return err
		}
		names := make([]string, 0, len(stats))
		for ns := range stats {
			names = append(names, ns)
		}
		sort.Strings(names)
		for _, ns := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", ns, stats[ns])
		}
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <namespace>",
	Short: "Remove every entry in a namespace",
	Long: `Remove every entry in one namespace: sea_schedules, air_schedules or port_departures.

Example:
  routectl cache clear sea_schedules`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Cache.Invalidate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
