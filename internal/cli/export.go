package cli

import (
	"bufio"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/model"
	"github.com/rcliao/sngram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export patterns as lines",
		Long: "Writes every occurrence as an encoded<TAB>content line ordered by pattern. With " +
			"--grouped each pattern is written once as a JSON line [encoded, [contents]].",
		Run: runExport,
	}

	cmd.Flags().StringP("run", "r", "", "Filter by run id or 'latest'")
	cmd.Flags().String("kind", "", "Filter by kind: base or projected")
	cmd.Flags().Bool("grouped", false, "One JSON line per pattern")
	cmd.Flags().Bool("remove-hapax", false, "Skip patterns seen once (with --grouped)")
	cmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	runRef, _ := cmd.Flags().GetString("run")
	kind, _ := cmd.Flags().GetString("kind")
	grouped, _ := cmd.Flags().GetBool("grouped")
	removeHapax, _ := cmd.Flags().GetBool("remove-hapax")
	outPath, _ := cmd.Flags().GetString("out")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	out := createOutput(outPath)
	defer out.Close()
	w := bufio.NewWriter(out)

	p := store.ExportParams{
		RunID:       runFilter(cmd.Context(), s, runRef),
		Kind:        kind,
		RemoveHapax: removeHapax,
	}
	if grouped {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		err = s.ExportGrouped(cmd.Context(), p, func(g model.Group) error {
			return enc.Encode([]any{g.Encoded, g.Contents})
		})
	} else {
		err = s.ExportAll(cmd.Context(), p, func(m model.Pattern) error {
			_, err := fmt.Fprintf(w, "%s\t%s\n", m.Encoded, m.Content)
			return err
		})
	}
	if err != nil {
		exitErr("export", err)
	}
	if err := w.Flush(); err != nil {
		exitErr("export", err)
	}
}
