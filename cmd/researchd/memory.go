package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	memoryLimit int
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and manage session memory",
}

var memoryRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recent remembered sessions",
	RunE:  runMemoryRecent,
}

var memoryRecallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Show remembered sessions relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryRecall,
}

var memoryClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all remembered sessions",
	RunE:  runMemoryClear,
}

var memoryExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print all remembered sessions",
	RunE:  runMemoryExport,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory entry count and age bounds",
	RunE:  runMemoryStats,
}

var (
	memoryExportFormat  string
	memoryRecentAsBlock bool
)

func init() {
	memoryCmd.PersistentFlags().IntVar(&memoryLimit, "limit", 5, "maximum entries to show")
	memoryRecentCmd.Flags().BoolVar(&memoryRecentAsBlock, "context", false, "print as a prompt-ready Q/A block")
	memoryExportCmd.Flags().StringVar(&memoryExportFormat, "format", "json", "export format (json or csv)")
	memoryCmd.AddCommand(memoryRecentCmd)
	memoryCmd.AddCommand(memoryRecallCmd)
	memoryCmd.AddCommand(memoryClearCmd)
	memoryCmd.AddCommand(memoryExportCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
}

func runMemoryRecent(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	if memoryRecentAsBlock {
		block := a.memory.RecentContext(ctx, memoryLimit)
		if block == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "no memories")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), block)
		return nil
	}

	entries := a.memory.Recent(ctx, memoryLimit)
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no memories")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n  %s\n", e.CreatedAt.Format("2006-01-02"), e.Query, firstLine(e.Answer))
	}
	return nil
}

func runMemoryRecall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	scored, err := a.memory.Recall(ctx, strings.Join(args, " "), memoryLimit)
	if err != nil {
		return err
	}
	if len(scored) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no relevant memories")
		return nil
	}
	for _, s := range scored {
		fmt.Fprintf(cmd.OutOrStdout(), "%.3f [%s] %s\n  %s\n", s.Score, s.CreatedAt.Format("2006-01-02"), s.Query, firstLine(s.Answer))
	}
	return nil
}

func runMemoryClear(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	n := a.memory.Len()
	if err := a.memory.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cleared %d memory entries\n", n)
	return nil
}

func runMemoryExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	var data []byte
	switch memoryExportFormat {
	case "json":
		data, err = a.memory.Export(ctx)
	case "csv":
		data, err = a.memory.ExportCSV(ctx)
	default:
		return fmt.Errorf("unknown export format: %q", memoryExportFormat)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func runMemoryStats(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	st := a.memory.Stats(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "entries: %d\n", st.Entries)
	if st.Entries > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "oldest:  %s\nnewest:  %s\n",
			st.Oldest.Format("2006-01-02 15:04"), st.Newest.Format("2006-01-02 15:04"))
	}
	return nil
}

// firstLine keeps memory listings to one line per answer.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 120
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
