package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/spamensemble/ensemble"
	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

func (a *app) predictCmd() *cobra.Command {
	var email string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "predict [content...]",
		Short: "Classify one message, training first when no stored artifacts exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, _ := cmd.Flags().GetString("content")
			if content == "" {
				content = strings.Join(args, " ")
			}
			if strings.TrimSpace(content) == "" {
				return errors.NewValidationError("content", "message content is required", content)
			}

			rt, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := rt.manager.EnsureReady(cmd.Context()); err != nil {
				return err
			}
			res, err := rt.manager.Predict(cmd.Context(), email, content)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}
			printResult(a.out, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "sender address")
	cmd.Flags().String("content", "", "message body, positional arguments are used when empty")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the verdict as JSON")
	return cmd
}

func printResult(w io.Writer, res *ensemble.Result) {
	verdict := color.New(color.FgGreen, color.Bold)
	if res.IsSpam {
		verdict = color.New(color.FgRed, color.Bold)
	}
	verdict.Fprintf(w, "%s", res.FinalPrediction)
	fmt.Fprintf(w, " confidence=%.1f%% votes spam=%d ham=%d\n", res.Confidence, res.SpamVotes, res.HamVotes)
	for _, mr := range res.ModelResults {
		fmt.Fprintf(w, "  %-20s %-4s %.1f%%\n", mr.Model, strings.ToUpper(mr.Prediction), mr.Confidence)
	}
	if len(res.Reasons) > 0 {
		faint := color.New(color.Faint)
		for _, r := range res.Reasons {
			faint.Fprintf(w, "  - %s\n", r)
		}
	}
}
