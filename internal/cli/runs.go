package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List extraction runs, newest first",
		Run:   runRuns,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

// runFilter resolves a --run value. Empty selects every run.
func runFilter(ctx context.Context, s *store.SQLiteStore, ref string) string {
	if ref == "" {
		return ""
	}
	r, err := s.ResolveRun(ctx, ref)
	if err != nil {
		exitErr("resolve run", err)
	}
	return r.ID
}

func runRuns(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	runs, err := s.ListRuns(cmd.Context(), limit)
	if err != nil {
		exitErr("runs", err)
	}

	if formatFlag == "text" {
		for _, r := range runs {
			fmt.Printf("%s\t%s\t%s\t%d sentences\t%d patterns\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Input, r.Sentences, r.Patterns)
		}
		return
	}
	printJSON(runs)
}
