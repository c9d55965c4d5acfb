package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/faceval/internal/adapters/normalize"
	"github.com/okian/faceval/internal/adapters/repository"
	service "github.com/okian/faceval/internal/app"
	"github.com/okian/faceval/pkg/logger"
)

type normalizeFlags struct {
	format         string
	in             string
	out            string
	model          string
	groundTruth    string
	groundTruthOut string
}

func newNormalizeCmd(c *cli) *cobra.Command {
	f := &normalizeFlags{}
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Convert raw DeepFace or FaceLLM JSONL output into a prediction CSV",
		Long: `normalize reads batch-inference JSONL records, skips entries whose status
is not ok, maps labels onto the canonical taxonomy and writes a prediction
CSV. With --ground-truth and --ground-truth-out the ground truth is filtered
to the subjects that were inferred.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.normalize(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", "", "raw format: deepface or facellm")
	cmd.Flags().StringVar(&f.in, "in", "", "raw JSONL input")
	cmd.Flags().StringVar(&f.out, "out", "", "prediction CSV output")
	cmd.Flags().StringVar(&f.model, "model", "", "model name written to the CSV (defaults to the format)")
	cmd.Flags().StringVar(&f.groundTruth, "ground-truth", "", "ground-truth CSV to filter")
	cmd.Flags().StringVar(&f.groundTruthOut, "ground-truth-out", "", "filtered ground-truth CSV output")
	_ = cmd.MarkFlagRequired("format")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	cmd.MarkFlagsRequiredTogether("ground-truth", "ground-truth-out")
	return cmd
}

func (c *cli) normalize(ctx context.Context, f *normalizeFlags) error {
	dec, err := normalize.ForFormat(f.format)
	if err != nil {
		return err
	}
	h, err := service.HarmonizerFromConfig(c.cfg.Harmonization)
	if err != nil {
		return err
	}

	in, err := os.Open(f.in)
	if err != nil {
		return fmt.Errorf("open %s: %w", f.in, err)
	}
	defer func() { _ = in.Close() }()

	recs, stats, err := normalize.Read(ctx, in, dec,
		normalize.WithHarmonizer(h),
		normalize.WithLogger(c.log.Named("normalize")))
	if err != nil {
		return fmt.Errorf("normalize %s: %w", f.in, err)
	}

	name := f.model
	if name == "" {
		name = dec.Format()
	}
	store := repository.NewCSVStore(repository.WithLogger(c.log.Named("repository")))
	if err := store.SavePredictions(ctx, f.out, name, recs); err != nil {
		return err
	}
	c.log.Info(ctx, "predictions normalized",
		logger.String("in", f.in),
		logger.String("out", f.out),
		logger.Int("lines", stats.Lines),
		logger.Int("normalized", stats.Normalized),
		logger.Int("skipped", stats.Skipped))

	if f.groundTruth == "" {
		return nil
	}
	truth, err := store.LoadTruth(ctx, f.groundTruth)
	if err != nil {
		return err
	}
	kept := repository.FilterBySubjects(truth, repository.SubjectSet(recs))
	if err := store.SaveTruth(ctx, f.groundTruthOut, kept); err != nil {
		return err
	}
	c.log.Info(ctx, "ground truth filtered",
		logger.String("out", f.groundTruthOut),
		logger.Int("kept", len(kept)),
		logger.Int("dropped", len(truth)-len(kept)))
	return nil
}
