package cli

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most frequent patterns",
		Run:   runList,
	}

	cmd.Flags().StringP("run", "r", "", "Filter by run id or 'latest'")
	cmd.Flags().String("kind", "", "Filter by kind: base or projected")
	cmd.Flags().Int("min-count", 1, "Minimum number of occurrences")
	cmd.Flags().IntP("limit", "l", 20, "Max results")
	cmd.Flags().StringP("encoder", "e", "", "Saved encoder to decode patterns with")

	RootCmd.AddCommand(cmd)
}

type listEntry struct {
	Encoded string `json:"encoded"`
	Pattern string `json:"pattern,omitempty"`
	Kind    string `json:"kind"`
	Count   int    `json:"count"`
}

func runList(cmd *cobra.Command, args []string) {
	runRef, _ := cmd.Flags().GetString("run")
	kind, _ := cmd.Flags().GetString("kind")
	minCount, _ := cmd.Flags().GetInt("min-count")
	limit, _ := cmd.Flags().GetInt("limit")
	encoderPath, _ := cmd.Flags().GetString("encoder")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	counts, err := s.List(cmd.Context(), store.ListParams{
		RunID:    runFilter(cmd.Context(), s, runRef),
		Kind:     kind,
		MinCount: minCount,
		Limit:    limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	entries := make([]listEntry, len(counts))
	for i, c := range counts {
		entries[i] = listEntry{Encoded: c.Encoded, Kind: c.Kind, Count: c.Count}
	}
	if encoderPath != "" {
		c := loadCodec(encoderPath)
		for i := range entries {
			if p, err := c.DecodeText(entries[i].Encoded); err == nil {
				entries[i].Pattern = p.String()
			}
		}
	}

	if formatFlag == "text" {
		for _, e := range entries {
			fmt.Printf("%d\t%s\t%s\n", e.Count, e.Kind, cmp.Or(e.Pattern, e.Encoded))
		}
		return
	}
	printJSON(entries)
}
