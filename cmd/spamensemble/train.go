package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/report"
)

func (a *app) trainCmd() *cobra.Command {
	var chart string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the ensemble on the configured corpus and store the artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			rep, err := rt.manager.Train(cmd.Context())
			if err != nil {
				return err
			}
			if chart != "" {
				if err := report.SaveAccuracyChart(rep, chart); err != nil {
					return err
				}
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			printReport(a.out, rep)
			if chart != "" {
				fmt.Fprintf(a.out, "chart saved to %s\n", chart)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&chart, "chart", "", "save an accuracy bar chart (png, svg, pdf or jpg)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the training report as JSON")
	return cmd
}

func printReport(w io.Writer, rep ensemble.Report) {
	bold := color.New(color.Bold)
	bold.Fprintf(w, "bundle %s trained in %s\n", rep.BundleID, rep.Duration.Round(1e6))
	fmt.Fprintf(w, "train=%d test=%d features=%d\n", rep.TrainSize, rep.TestSize, rep.Features)
	for _, name := range ensemble.MemberNames {
		acc, ok := rep.Accuracy[name]
		if !ok {
			continue
		}
		c := color.New(color.FgGreen)
		if acc < 0.8 {
			c = color.New(color.FgYellow)
		}
		fmt.Fprintf(w, "  %-20s ", ensemble.DisplayName(name))
		c.Fprintf(w, "%.3f\n", acc)
	}
	fmt.Fprintf(w, "  linear regression mse=%.4f r2=%.4f\n", rep.LinearMSE, rep.LinearR2)
}
