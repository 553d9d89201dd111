package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/researchd/internal/vectorstore"
)

var indexSource string

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Add documents to the knowledge base",
	Long: `Read the given files and index them into the knowledge base. The
file name (without extension) becomes the document title and the file
path becomes its source unless --source is given.`,
	Example: `  researchd index ./docs/raft.md ./docs/paxos.md
  researchd index --source "team wiki" ./notes.txt`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexSource, "source", "", "source label recorded on every document")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	docs := make([]vectorstore.Document, 0, len(args))
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if len(strings.TrimSpace(string(content))) == 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping empty file: %s\n", path)
			continue
		}

		source := indexSource
		if source == "" {
			source = path
		}
		base := filepath.Base(path)
		title := strings.TrimSuffix(base, filepath.Ext(base))

		docs = append(docs, vectorstore.Document{
			Title:     title,
			Content:   string(content),
			Source:    source,
			CreatedAt: time.Now(),
		})
	}
	if len(docs) == 0 {
		return fmt.Errorf("no indexable documents in %d file(s)", len(args))
	}

	ids, err := a.store.AddDocuments(ctx, docs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d document(s)\n", len(ids))
	return nil
}
