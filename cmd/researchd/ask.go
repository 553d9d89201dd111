package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/researchd/internal/citation"
)

var askExport string

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Research a question and print the cited answer",
	Example: `  researchd ask "how does raft handle split votes"
  researchd ask --export bibtex "what is crdt convergence"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askExport, "export", "", "also print citations in the given format (bibtex or ris)")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	switch askExport {
	case "", "bibtex", "ris":
	default:
		return fmt.Errorf("unknown export format: %q", askExport)
	}

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	result, err := a.engine.Research(ctx, query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Answer)
	if result.Bibliography != "" {
		fmt.Fprintf(out, "\nReferences:\n%s\n", result.Bibliography)
	}
	if result.Degraded {
		fmt.Fprintln(out, "\n(answer degraded: synthesis failed, raw evidence shown)")
	} else if result.Forced {
		fmt.Fprintln(out, "\n(answer finalized before the evidence converged)")
	}

	switch askExport {
	case "bibtex":
		fmt.Fprintf(out, "\n%s", citation.BibTeX(result.Citations))
	case "ris":
		fmt.Fprintf(out, "\n%s", citation.RIS(result.Citations))
	}
	return nil
}
