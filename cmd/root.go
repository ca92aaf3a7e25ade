package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	flagConfig   string
	flagOut      string
	flagRefresh  bool
	flagNoXCache bool
	flagVerbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "aibrief",
	Short: "Daily AI intelligence briefing builder",
	Long: `aibrief pulls items from RSS feeds and X timelines/searches (via public
mirrors with a scrape fallback), scores them, and renders static JSON/HTML
briefing artifacts.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	RunE: runBuild,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.Flags().StringVar(&flagOut, "out", "docs", "output directory for JSON/HTML artifacts")
	rootCmd.Flags().BoolVar(&flagRefresh, "refresh", false, "bypass the X run cache and re-fetch all sources")
	rootCmd.Flags().BoolVar(&flagNoXCache, "no-x-cache", false, "disable the X run cache entirely")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(statsCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("aibrief %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}
