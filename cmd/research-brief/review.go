// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-brief/internal/archive"
	"github.com/pdiddy/research-brief/internal/search"
	"github.com/pdiddy/research-brief/internal/synth"
)

var reviewCmd = &cobra.Command{
	Use:   "review <topic>",
	Short: "Write an academic literature review for a topic",
	Long: `Review searches OpenAlex and Semantic Scholar (translating the topic to
English when needed), merges papers that share a DOI, ranks them by
citation count, and writes a literature review with key themes and
research gaps in the --language you choose.

--csl exports the ranked papers as CSL YAML for reference managers.`,
	RunE: runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	topic, err := topicFromArgs(cmd, args)
	if err != nil {
		return err
	}
	p, log, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	review, err := p.RunAcademicReview(context.Background(), topic)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(review); err != nil {
			return err
		}
	} else {
		if err := synth.FormatReview(os.Stdout, review, topic.Language); err != nil {
			return err
		}
		for _, e := range review.BackendErrors {
			fmt.Fprintf(os.Stderr, "warning: %s\n", e)
		}
		for _, w := range review.Brief.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
	}

	if path, _ := cmd.Flags().GetString("csl"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating CSL file: %w", err)
		}
		if err := search.FormatCSL(review.Papers, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Wrote %d papers to %s\n", len(review.Papers), path)
	}

	if save, _ := cmd.Flags().GetBool("archive"); save {
		return saveRun(cmd, archive.FromReview(topic, review))
	}
	return nil
}

func init() {
	reviewCmd.Flags().Bool("json", false, "output the review as JSON")
	reviewCmd.Flags().String("csl", "", "write the ranked papers to a CSL YAML file")
	reviewCmd.Flags().Bool("archive", false, "store the review in the local archive")
	reviewCmd.Flags().String("archive-dir", defaultArchiveDir, "archive directory")

	rootCmd.AddCommand(reviewCmd)
}
