// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-brief/internal/archive"
	"github.com/pdiddy/research-brief/internal/pipeline"
	"github.com/pdiddy/research-brief/internal/synth"
)

var researchCmd = &cobra.Command{
	Use:   "research <topic>",
	Short: "Research a topic and print a cited brief",
	Long: `Research runs the full pipeline: plan, search, fetch, extract notes under
the token budget, and synthesize a markdown brief with numbered references.

--context-file adds your own material (for example meeting notes or an
internal report) as the first source.`,
	RunE: runResearch,
}

func runResearch(cmd *cobra.Command, args []string) error {
	topic, err := topicFromArgs(cmd, args)
	if err != nil {
		return err
	}

	var contextText string
	if path, _ := cmd.Flags().GetString("context-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading context file: %w", err)
		}
		contextText = string(data)
	}

	p, log, err := buildPipeline(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	res, err := p.RunResearch(context.Background(), topic, contextText)
	if err != nil {
		var nse *pipeline.NoSourcesError
		if errors.As(err, &nse) {
			return fmt.Errorf("every search backend failed; check API keys and network: %w", err)
		}
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		if err := synth.WriteMarkdown(os.Stdout, res.Brief); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\n%d notes, %d references, %d/%d tokens\n",
			len(res.Notes), len(res.References), res.Budget.Consumed, res.Budget.HardCap)
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
	}

	if save, _ := cmd.Flags().GetBool("archive"); save {
		return saveRun(cmd, archive.FromResearch(res))
	}
	return nil
}

func init() {
	researchCmd.Flags().String("context-file", "", "file whose text is used as an extra source")
	researchCmd.Flags().Bool("json", false, "output the full result as JSON")
	researchCmd.Flags().Bool("archive", false, "store the run in the local archive")
	researchCmd.Flags().String("archive-dir", defaultArchiveDir, "archive directory")

	rootCmd.AddCommand(researchCmd)
}
