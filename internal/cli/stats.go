package cli

import (
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show online players, queue length and sessions by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result StatsResult

			if err := client.Get("/api/v1/stats", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output).Print(result)
			return nil
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [code]",
		Short: "List live sessions, or show the private session with a room code",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output)

			if len(args) == 1 {
				var result Session
				if err := client.Get("/api/v1/sessions/"+args[0], &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result SessionList
			if err := client.Get("/api/v1/sessions", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}
}
