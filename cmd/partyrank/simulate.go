package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/partyrank/internal/config"
	"github.com/okian/partyrank/internal/simulate"
)

func newSimulateCmd(cfg func() *config.Config) *cobra.Command {
	sc := simulate.DefaultConfig()
	var (
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic party and rank it",
		Long: `Generate a synthetic party with random candidates and swipes and rank it.

With --url the party is also submitted to a running service and the
service's ranking is checked against the local one.

Examples:
  # Rank a 50-candidate party locally
  partyrank simulate --candidates 50 --members 8

  # Drive a running server and verify its ranking
  partyrank simulate --url http://localhost:9080 --seed 7`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("policy") {
				sc.Policy = cfg().AggregationPolicy
			}
			report, err := simulate.Run(cmd.Context(), sc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format != formatJSON {
				fmt.Fprintf(out, "party %s (seed %d): %d candidates, %d members, %d swipes\n",
					report.Party.ID, report.Party.Seed, len(report.Party.Candidates),
					len(report.Party.Members), len(report.Party.Swipes))
				if sc.BaseURL != "" {
					fmt.Fprintf(out, "service ranking verified (%d entries)\n", len(report.Remote))
				}
			}
			return writeRanking(out, format, truncate(report.Local.Ranking, limit))
		},
	}

	f := cmd.Flags()
	f.StringVar(&sc.BaseURL, "url", "", "base URL of a running service; empty ranks locally only")
	f.IntVar(&sc.Candidates, "candidates", sc.Candidates, "number of candidates")
	f.IntVar(&sc.Members, "members", sc.Members, "number of members")
	f.Float64Var(&sc.Coverage, "coverage", sc.Coverage, "probability that a member swipes a candidate")
	f.Uint64Var(&sc.Seed, "seed", 0, "generator seed (0 picks a random one)")
	f.StringVar(&sc.Policy, "policy", sc.Policy, "aggregation policy for the local ranking")
	f.IntVar(&sc.TopN, "top", sc.TopN, "ranking entries fetched from the service")
	f.IntVar(&sc.Workers, "workers", sc.Workers, "concurrent swipe submitters")
	f.DurationVar(&sc.Timeout, "timeout", sc.Timeout, "HTTP request timeout")
	f.DurationVar(&sc.Wait, "wait", sc.Wait, "how long to wait for the service ranking")
	f.StringVarP(&format, "output", "o", formatTable, "output format: table or json")
	f.IntVar(&limit, "limit", 10, "print at most this many entries (0 prints all)")
	return cmd
}
