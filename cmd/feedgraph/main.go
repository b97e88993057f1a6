// Package main provides the feedgraph CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/feedgraph/pkg/config"
	"github.com/orneryd/feedgraph/pkg/dataset"
	"github.com/orneryd/feedgraph/pkg/profile"
	"github.com/orneryd/feedgraph/pkg/recommend"
	"github.com/orneryd/feedgraph/pkg/sampling"
	"github.com/orneryd/feedgraph/pkg/storage"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "feedgraph",
		Short: "feedgraph - graph-based feed recommendation",
		Long: `feedgraph generates, scores and selects content recommendations
from an interaction graph of users, content and topics.

Features:
  • Candidate generation by topic affinity, co-engagement, similar users,
    popularity and random exploration
  • Feature-weighted scoring with per-feature significance
  • Rank or score-biased selection
  • Inclusion probability audits for candidates and served items`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "YAML config file (FEEDGRAPH_* variables take precedence)")
	rootCmd.PersistentFlags().String("dataset", "", "Dataset file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "feedgraph v%s (%s)\n", version, commit)
		},
	})

	recommendCmd := &cobra.Command{
		Use:   "recommend",
		Short: "Serve recommendations for a user",
		RunE:  runRecommend,
	}
	addRecommendFlags(recommendCmd)
	recommendCmd.Flags().Bool("metrics", false, "Print recommender metrics after serving")
	rootCmd.AddCommand(recommendCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Estimate candidate and serving probabilities for a user",
		RunE:  runAudit,
	}
	addRecommendFlags(auditCmd)
	auditCmd.Flags().Int("workers", 0, "Parallel probability workers (0 = number of CPUs)")
	rootCmd.AddCommand(auditCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show dataset statistics",
		RunE:  runStats,
	})

	clusterCmd := &cobra.Command{
		Use:   "cluster",
		Short: "Cluster users by taste embedding",
		RunE:  runCluster,
	}
	clusterCmd.Flags().Int("k", 4, "Maximum number of clusters")
	rootCmd.AddCommand(clusterCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Save the dataset graph to the badger snapshot store",
		RunE:  runExport,
	}
	exportCmd.Flags().String("data-dir", "", "Badger data directory (default from config)")
	rootCmd.AddCommand(exportCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load the graph from the badger snapshot store into a JSON snapshot",
		RunE:  runImport,
	}
	importCmd.Flags().String("data-dir", "", "Badger data directory (default from config)")
	importCmd.Flags().String("out", "", "Snapshot file (default from config)")
	rootCmd.AddCommand(importCmd)

	return rootCmd
}

func addRecommendFlags(cmd *cobra.Command) {
	cmd.Flags().String("user", "", "User id, e.g. user:alice")
	cmd.Flags().Int("count", 0, "Number of recommendations (default from config)")
	cmd.Flags().String("selection", "", "Selection policy: rank or distribution")
	cmd.Flags().Uint64("seed", 0, "Random seed (default from config)")
	cmd.Flags().StringSlice("disable", nil, "Scoring features to disable")
	_ = cmd.MarkFlagRequired("user")
}

// env is the loaded configuration and logger of one command run.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFromEnvOrFile(path)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Lookup("user") != nil {
		if err := applyRecommendFlags(cmd, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Memory.ApplyRuntimeMemory()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger.Debug("configuration loaded", zap.Stringer("config", cfg))
	return &env{cfg: cfg, logger: logger}, nil
}

func applyRecommendFlags(cmd *cobra.Command, cfg *config.Config) error {
	rc := &cfg.Recommender
	if count, _ := cmd.Flags().GetInt("count"); count > 0 {
		rc.Count = count
	}
	if sel, _ := cmd.Flags().GetString("selection"); sel != "" {
		rc.Options.Selection = recommend.SelectionPolicy(sel)
	}
	if cmd.Flags().Changed("seed") {
		rc.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	names, _ := cmd.Flags().GetStringSlice("disable")
	features := make([]recommend.Feature, len(names))
	for i, n := range names {
		features[i] = recommend.Feature(n)
	}
	return rc.Options.Disable(features...)
}

func (e *env) rand() sampling.Rand {
	if e.cfg.Recommender.Seed != 0 {
		return sampling.NewRand(e.cfg.Recommender.Seed)
	}
	return sampling.NewTimeSeededRand()
}

func (e *env) openWorld(cmd *cobra.Command) (*dataset.World, error) {
	path, _ := cmd.Flags().GetString("dataset")
	if path == "" {
		return nil, fmt.Errorf("--dataset is required")
	}
	ds, err := dataset.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return ds.Open(e.logger)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	world, err := e.openWorld(cmd)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	svc := recommend.NewService(world.Graph, world.Content, world.Profiles, world.Profiles,
		recommend.WithLogger(e.logger),
		recommend.WithMetrics(recommend.NewMetrics("feedgraph", reg)),
		recommend.WithRand(e.rand()),
	)

	user, _ := cmd.Flags().GetString("user")
	rc := e.cfg.Recommender
	recs, err := svc.GetRecommendations(cmd.Context(), storage.NodeID(user), rc.Count, rc.Options)
	if err != nil {
		return err
	}
	if rc.CacheLimit > 0 {
		svc.TrimRecommendations(rc.CacheLimit)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(recs); err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	if show, _ := cmd.Flags().GetBool("metrics"); show {
		return printMetrics(cmd, reg)
	}
	return nil
}

func printMetrics(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	out := cmd.ErrOrStderr()
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Fprintf(out, "%s%s %g\n", mf.GetName(), labels, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Fprintf(out, "%s%s count=%d sum=%gs\n", mf.GetName(), labels, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	world, err := e.openWorld(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Nodes:          %d\n", world.Graph.NodeCount())
	for _, t := range []storage.NodeType{storage.NodeTypeUser, storage.NodeTypeContent, storage.NodeTypeTopic} {
		fmt.Fprintf(out, "  %-12s  %d\n", t, len(world.Graph.GetNodesByType(t)))
	}
	fmt.Fprintf(out, "Edges:          %d\n", world.Graph.EdgeCount())
	fmt.Fprintf(out, "Profiles:       %d\n", world.Profiles.Len())
	fmt.Fprintf(out, "Max engagement: %g\n", world.Content.MaxContentEngagement())
	return nil
}

func runCluster(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	world, err := e.openWorld(cmd)
	if err != nil {
		return err
	}

	k, _ := cmd.Flags().GetInt("k")
	users := world.Profiles.Users()
	labels := profile.ClusterUsers(world.Profiles, users, k)
	out := cmd.OutOrStdout()
	for _, id := range users {
		if l, ok := labels[id]; ok {
			fmt.Fprintf(out, "%s\t%s\n", id, l.Label)
		}
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	world, err := e.openWorld(cmd)
	if err != nil {
		return err
	}
	snap, err := world.Graph.Snapshot()
	if err != nil {
		return err
	}

	store, err := openSnapshotStore(cmd, e.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Save(snap); err != nil {
		return err
	}
	e.logger.Info("graph exported",
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)))
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	store, err := openSnapshotStore(cmd, e.cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = e.cfg.Storage.SnapshotPath
	}
	if err := storage.SaveSnapshotFile(snap, out); err != nil {
		return err
	}
	e.logger.Info("graph imported",
		zap.String("snapshot", out),
		zap.Int("nodes", len(snap.Nodes)),
		zap.Int("edges", len(snap.Edges)))
	return nil
}

func openSnapshotStore(cmd *cobra.Command, cfg *config.Config) (*storage.BadgerSnapshotStore, error) {
	opts := cfg.Storage.BadgerOptions()
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		opts.DataDir = dir
	}
	return storage.OpenBadgerSnapshotStore(opts)
}
