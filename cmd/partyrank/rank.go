package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	app "github.com/okian/partyrank/internal/app"
	"github.com/okian/partyrank/internal/config"
	"github.com/okian/partyrank/internal/domain/consensus"
	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/types"
)

// Output formats for ranking commands.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// fixture is a party described in YAML.
type fixture struct {
	Policy     string            `yaml:"policy,omitempty"`
	Candidates []model.Candidate `yaml:"candidates"`
	Swipes     []model.Swipe     `yaml:"swipes"`
}

// loadFixture reads and decodes a YAML party fixture.
func loadFixture(path string) (fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return fixture{}, fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close()

	var fx fixture
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return fixture{}, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	for i := range fx.Swipes {
		if err := model.ValidateSwipe(&fx.Swipes[i]); err != nil {
			return fixture{}, fmt.Errorf("fixture swipe %d: %w", i, err)
		}
	}
	return fx, nil
}

func newRankCmd(cfg func() *config.Config) *cobra.Command {
	var (
		file   string
		policy string
		format string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank a party fixture",
		Long: `Rank a party described in a YAML fixture and print the consensus.

The fixture lists candidates and the swipes recorded for them:

  policy: mean            # optional: mean or median
  candidates:
    - {id: a, title: Alien, expected_score: 0.5}
  swipes:
    - {member_id: m1, candidate_id: a, direction: accept}`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fx, err := loadFixture(file)
			if err != nil {
				return err
			}

			c := *cfg()
			switch {
			case policy != "":
				c.AggregationPolicy = policy
			case fx.Policy != "":
				c.AggregationPolicy = fx.Policy
			}

			pipeline, err := app.NewPipeline(serviceOptions(&c)...)
			if err != nil {
				return err
			}
			res, err := pipeline.Run(fx.Candidates, consensus.GroupByMember(fx.Swipes))
			if err != nil {
				return fmt.Errorf("rank fixture: %w", err)
			}
			return writeRanking(cmd.OutOrStdout(), format, truncate(res.Ranking, limit))
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML party fixture")
	f.StringVar(&policy, "policy", "", "aggregation policy: mean or median (overrides config and fixture)")
	f.StringVarP(&format, "output", "o", formatTable, "output format: table or json")
	f.IntVar(&limit, "limit", 0, "print at most this many entries (0 prints all)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func truncate(entries []types.Entry, limit int) []types.Entry {
	if limit > 0 && limit < len(entries) {
		return entries[:limit]
	}
	return entries
}

// writeRanking prints entries as an aligned table or a JSON array.
func writeRanking(w io.Writer, format string, entries []types.Entry) error {
	switch format {
	case formatJSON:
		if entries == nil {
			entries = []types.Entry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case formatTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tTITLE\tRATING\tID")
		for _, e := range entries {
			fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\n", e.Rank, e.Title, e.Rating, e.CandidateID)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
