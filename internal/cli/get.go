package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get <encoded>",
		Short: "Show every occurrence of an encoded pattern",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	cmd.Flags().StringP("run", "r", "", "Filter by run id or 'latest'")
	cmd.Flags().String("kind", "", "Filter by kind: base or projected")
	cmd.Flags().Bool("contents-only", false, "Only output the contents, one per line")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	runRef, _ := cmd.Flags().GetString("run")
	kind, _ := cmd.Flags().GetString("kind")
	contentsOnly, _ := cmd.Flags().GetBool("contents-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	patterns, err := s.Get(cmd.Context(), store.GetParams{
		Encoded: args[0],
		RunID:   runFilter(cmd.Context(), s, runRef),
		Kind:    kind,
	})
	if err != nil {
		exitErr("get", err)
	}

	if contentsOnly {
		for _, p := range patterns {
			fmt.Println(p.Content)
		}
		return
	}
	printJSON(patterns)
}
