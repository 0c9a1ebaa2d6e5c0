// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/research-brief/internal/archive"
)

const defaultArchiveDir = ".research-brief"

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List, search, and export archived runs",
	Long: `Archive manages a local SQLite database of runs saved with --archive.
Notes are indexed for full-text search.`,
}

var archiveListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived runs, newest first",
	RunE:  runArchiveList,
}

var archiveSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over archived notes",
	RunE:  runArchiveSearch,
}

var archiveExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export one archived run to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runArchiveExport,
}

func openArchive(cmd *cobra.Command) (*archive.Store, error) {
	dir, _ := cmd.Flags().GetString("archive-dir")
	if dir == "" {
		dir = defaultArchiveDir
	}
	limit, _ := cmd.Flags().GetInt("limit")
	return archive.Open(dir, limit)
}

// saveRun stores run in the archive named by --archive-dir.
func saveRun(cmd *cobra.Command, run archive.Run) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Save(context.Background(), run)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Archived run %s\n", id)
	return nil
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(context.Background(), 0)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No archived runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-36s  %-8s  %-16s  %-5s  %-5s  %s\n", "ID", "Kind", "Created", "Refs", "Notes", "Topic")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%-36s  %-8s  %-16s  %-5d  %-5d  %s\n",
			r.ID, r.Kind, r.CreatedAt.Local().Format("2006-01-02 15:04"), r.References, r.Notes, clip(r.Topic.Text, 40))
	}
	fmt.Fprintf(os.Stdout, "\n%d runs\n", len(runs))
	return nil
}

func runArchiveSearch(cmd *cobra.Command, args []string) error {
	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	hits, err := store.Search(context.Background(), strings.Join(args, " "), 0)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-10s  %-60s  %s\n", "Rank", "Kind", "Note", "Source")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 110))
	for i, h := range hits {
		fmt.Fprintf(os.Stdout, "%-4d  %-10s  %-60s  %s\n", i+1, h.Note.Kind, clip(h.Note.Text, 60), h.Note.SourceURL)
	}
	fmt.Fprintf(os.Stdout, "\n%d results\n", len(hits))
	return nil
}

func runArchiveExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openArchive(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	switch format {
	case "yaml", "":
		return store.ExportYAML(context.Background(), args[0], os.Stdout)
	case "json":
		return store.ExportJSON(context.Background(), args[0], os.Stdout)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

// clip shortens s to n runes with an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	archiveCmd.PersistentFlags().String("archive-dir", defaultArchiveDir, "archive directory")
	archiveCmd.PersistentFlags().Int("limit", 20, "maximum rows to show")

	archiveListCmd.Flags().Bool("json", false, "output as JSON")
	archiveSearchCmd.Flags().Bool("json", false, "output as JSON")
	archiveExportCmd.Flags().String("format", "yaml", "export format: yaml or json")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveSearchCmd)
	archiveCmd.AddCommand(archiveExportCmd)

	rootCmd.AddCommand(archiveCmd)
}
