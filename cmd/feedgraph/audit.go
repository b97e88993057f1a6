package main

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/feedgraph/pkg/dataset"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/recommend"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

// auditRow is the estimated exposure of one content item.
type auditRow struct {
	ID        storage.NodeID
	Candidate float64
	Served    float64
	Scored    bool
}

func runAudit(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	world, err := e.openWorld(cmd)
	if err != nil {
		return err
	}

	user, _ := cmd.Flags().GetString("user")
	p, ok := world.Profiles.UserProfile(storage.NodeID(user))
	if !ok {
		return fmt.Errorf("audit %s: %w", user, recommend.ErrMissingProfile)
	}
	workers, _ := cmd.Flags().GetInt("workers")

	rows, err := audit(cmd.Context(), world, p, e.cfg.Recommender.Count, e.cfg.Recommender.Options, e.rand(), workers)
	if err != nil {
		return err
	}
	return writeAudit(cmd.OutOrStdout(), rows)
}

// audit estimates, for every content item, the probability of being
// generated as a candidate for p, and for one generated candidate set the
// probability of each candidate being served.
//
// Candidate probabilities are computed in parallel; they only read the
// world. Rows are sorted by candidate probability, highest first.
func audit(ctx context.Context, world *dataset.World, p *profile.UserProfile, count int, opts recommend.RecommendationOptions, rng sampling.Rand, workers int) ([]auditRow, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := count * recommend.CandidateFactor

	ids := world.Content.AllContent()
	rows := make([]auditRow, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = auditRow{
				ID:        id,
				Candidate: recommend.CandidateProbability(world.Graph, world.Content, world.Profiles, p, pool, opts.CandidateOptions, id),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := recommend.GenerateCandidates(world.Graph, world.Content, world.Profiles, p, pool, opts.CandidateOptions, rng)
	recommend.AnnotateCandidateProbabilities(world.Graph, world.Content, world.Profiles, p, pool, opts.CandidateOptions, candidates)
	scored, err := recommend.ScoringProbability(world.Graph, world.Content, p.ID, candidates, p, count, opts.ScoringOptions)
	if err != nil {
		return nil, err
	}

	index := make(map[storage.NodeID]int, len(rows))
	for i, r := range rows {
		index[r.ID] = i
	}
	for _, s := range scored {
		if i, ok := index[s.ContentID]; ok {
			rows[i].Served = s.Probability
			rows[i].Scored = true
		}
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Candidate > rows[j].Candidate })
	return rows, nil
}

func writeAudit(w io.Writer, rows []auditRow) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTENT\tP(CANDIDATE)\tP(SERVED)")
	for _, r := range rows {
		served := "-"
		if r.Scored {
			served = fmt.Sprintf("%.4f", r.Served)
		}
		fmt.Fprintf(tw, "%s\t%.4f\t%s\n", r.ID, r.Candidate, served)
	}
	return tw.Flush()
}
