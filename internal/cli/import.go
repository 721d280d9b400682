package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/model"
	"github.com/rcliao/sngram/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import encoded<TAB>content lines",
		Long: "Imports lines as written by export or extract --out (stdin or file). Without --run " +
			"a new run is created.",
		Args: cobra.MaximumNArgs(1),
		Run:  runImport,
	}

	cmd.Flags().StringP("run", "r", "", "Add to this run id or 'latest'")
	cmd.Flags().String("kind", model.KindProjected, "Kind of the imported patterns: base or projected")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	runRef, _ := cmd.Flags().GetString("run")
	kind, _ := cmd.Flags().GetString("kind")
	if !model.ValidKinds[kind] {
		exitErr("import", fmt.Errorf("invalid kind %q", kind))
	}

	path := "-"
	if len(args) > 0 {
		path = args[0]
	}
	in := openInput(path)
	defer in.Close()

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx := cmd.Context()
	runID := runFilter(ctx, s, runRef)
	if runID == "" {
		run, err := s.CreateRun(ctx, store.CreateRunParams{Input: path})
		if err != nil {
			exitErr("create run", err)
		}
		runID = run.ID
	}

	imported, err := s.Import(ctx, runID, kind, in)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"run":%q,"imported":%d}`+"\n", runID, imported)
}
