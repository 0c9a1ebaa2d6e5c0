// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-brief/internal/search"
)

var planCmd = &cobra.Command{
	Use:   "plan <topic>",
	Short: "Plan search queries for a topic and run them",
	Long: `Plan asks the model for sub-questions and search queries, then runs the
queries against the web and academic backends. Results are printed as a
table (or JSON) and can be saved to a YAML file for later inspection.

Use --load to print a previously saved search without calling any API.`,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if load, _ := cmd.Flags().GetString("load"); load != "" {
		qf, err := search.ReadQueryFile(load)
		if err != nil {
			return err
		}
		return printSearch(qf.Output(), jsonOutput)
	}

	topic, err := topicFromArgs(cmd, args)
	if err != nil {
		return err
	}
	p, log, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	res, err := p.PlanAndSearch(context.Background(), topic)
	if err != nil {
		return err
	}

	out := search.Output{
		Records:       res.Records,
		BackendErrors: res.BackendErrors,
		Degraded:      res.Degraded,
		Unreachable:   res.Unreachable,
	}
	if !jsonOutput {
		for i, q := range res.Queries {
			fmt.Fprintf(os.Stdout, "%d. [%s] %s\n", i+1, q.SourceKind, q.Text)
		}
		fmt.Fprintln(os.Stdout)
	}
	if err := printSearch(out, jsonOutput); err != nil {
		return err
	}

	if save, _ := cmd.Flags().GetString("save"); save != "" {
		if err := search.WriteQueryFile(save, topic, res.Plan, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved search to %s\n", save)
	}
	return nil
}

func printSearch(out search.Output, jsonOutput bool) error {
	if jsonOutput {
		return search.FormatJSON(out, os.Stdout)
	}
	search.FormatTable(out, os.Stdout)
	return nil
}

func init() {
	planCmd.Flags().Bool("json", false, "output results as JSON")
	planCmd.Flags().String("save", "", "save the plan and results to a YAML file")
	planCmd.Flags().String("load", "", "print a saved search instead of running one")

	rootCmd.AddCommand(planCmd)
}
