package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "repctl",
		Short:         "Inspect and recompute listing reputations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(scoreCmd())
	root.AddCommand(sourcesCmd())
	root.AddCommand(rescoreCmd())
	root.AddCommand(migrateCmd())

	return root
}

func scoreCmd() *cobra.Command {
	var (
		file       string
		jsonOutput bool
		saturation int64
	)

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a YAML or JSON signal file without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.InOrStdin(), cmd.OutOrStdout(), file, jsonOutput, saturation)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "signal file keyed by source id (- for stdin)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().Int64Var(&saturation, "saturation", 0, "review volume for full confidence (default: built-in)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func sourcesCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Show the configured rating sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources(cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func rescoreCmd() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "rescore",
		Short: "Recompute the stored reputation of every listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRescore(cmd.Context(), cmd.OutOrStdout(), workers)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent listings (default: RESCORE_WORKERS)")
	return cmd
}

func migrateCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), dir)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "db/migrations", "directory holding *_*.up.sql files")
	return cmd
}
