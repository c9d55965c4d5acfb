package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/faceval/internal/adapters/report"
	service "github.com/okian/faceval/internal/app"
	"github.com/okian/faceval/pkg/logger"
)

func newEvaluateCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score every configured model and print the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out != "" {
				c.cfg.Output = out
			}
			rep, err := c.evaluate(cmd.Context())
			if err != nil {
				return err
			}
			if err := report.WriteText(cmd.OutOrStdout(), rep); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if failed := rep.Failed(); len(failed) > 0 {
				return fmt.Errorf("%w: %s", errModelsFailed, strings.Join(failed, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the JSON report to this path (overrides output)")
	return cmd
}

// evaluate runs the configured evaluation and writes the JSON report when an
// output path is set.
func (c *cli) evaluate(ctx context.Context) (*report.Report, error) {
	svc, err := c.service()
	if err != nil {
		return nil, err
	}
	return c.run(ctx, svc)
}

func (c *cli) service() (*service.Service, error) {
	if c.cfg.GroundTruth == "" {
		return nil, fmt.Errorf("ground_truth is not configured")
	}
	if len(c.cfg.Models) == 0 {
		return nil, fmt.Errorf("no models configured")
	}
	return service.NewFromConfig(c.cfg, service.WithLogger(c.log.Named("service")))
}

func (c *cli) run(ctx context.Context, svc *service.Service) (*report.Report, error) {
	rep, err := svc.Evaluate(ctx, c.cfg.GroundTruth, c.cfg.Models)
	if err != nil {
		return nil, err
	}
	if c.cfg.Output != "" {
		if err := writeReportFile(c.cfg.Output, rep); err != nil {
			return nil, err
		}
		c.log.Info(ctx, "report written", logger.String("path", c.cfg.Output))
	}
	return rep, nil
}

func writeReportFile(path string, rep *report.Report) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()
	if err := report.WriteJSON(f, rep); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
