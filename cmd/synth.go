package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/faceval/internal/adapters/repository"
	"github.com/okian/faceval/internal/synthetic"
)

func newSynthCmd(c *cli) *cobra.Command {
	var (
		dir      string
		subjects int
		seed     uint64
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic ground truth, predictions and config for smoke tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ds, err := synthetic.Generate(synthetic.Spec{
				Subjects: subjects,
				Seed:     seed,
				Models: []synthetic.ModelSpec{
					{Name: "oracle", Accuracy: 1, Confidences: true},
					{Name: "noisy", Accuracy: 0.6, Confidences: true},
					{Name: "guesser", Accuracy: 0.2},
				},
			})
			if err != nil {
				return err
			}
			store := repository.NewCSVStore(repository.WithLogger(c.log.Named("repository")))
			files, err := synthetic.Write(cmd.Context(), dir, ds, store)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "faceval -c %s evaluate\n", files.Config)
			return err
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "synthetic", "output directory")
	cmd.Flags().IntVar(&subjects, "subjects", 200, "number of subjects")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "random seed")
	return cmd
}
