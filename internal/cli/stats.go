package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("stats", err)
	}

	if formatFlag == "text" {
		fmt.Printf("%s (%s)\n", stats.DBPath, humanize.Bytes(uint64(stats.DBSizeBytes)))
		fmt.Printf("%s runs, %s patterns, %s unique\n",
			humanize.Comma(int64(stats.Runs)), humanize.Comma(int64(stats.TotalPatterns)), humanize.Comma(int64(stats.UniquePatterns)))
		for _, k := range stats.Kinds {
			fmt.Printf("  %-10s %s occurrences, %s unique, %s hapax\n", k.Kind,
				humanize.Comma(int64(k.Count)), humanize.Comma(int64(k.Unique)), humanize.Comma(int64(k.Hapax)))
		}
		return
	}
	printJSON(stats)
}
