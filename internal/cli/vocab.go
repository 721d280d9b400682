package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/conllu"
	"github.com/rcliao/sngram/internal/miner"
)

func init() {
	cmd := &cobra.Command{
		Use:   "vocab <corpus> [outfile]",
		Short: "Count the vocabulary of every level",
		Long: "Counts the values of the word level and every projection level over a CoNLL-U corpus " +
			"and writes them as JSON. The input may be gzip compressed.",
		Args: cobra.RangeArgs(1, 2),
		Run:  runVocab,
	}

	cmd.Flags().Bool("drop-frequencies", false, "Write forms only, most frequent first")

	RootCmd.AddCommand(cmd)
}

func runVocab(cmd *cobra.Command, args []string) {
	drop, _ := cmd.Flags().GetBool("drop-frequencies")
	cfg := loadConfig()

	conv, err := cfg.NewConversion()
	if err != nil {
		exitErr("conversion", err)
	}

	in, err := conllu.Open(args[0])
	if err != nil {
		exitErr("open corpus", err)
	}
	defer in.Close()

	levels := append([]string{cfg.WordLevel}, cfg.Levels...)
	freqs, err := miner.Vocabulary(conllu.NewReader(in, conllu.Options{NFC: cfg.NFC}), levels, conv)
	if err != nil {
		exitErr("vocabulary", err)
	}

	out := createOutput(secondArg(args))
	defer out.Close()

	var v any = freqs
	if drop {
		v = miner.Forms(freqs)
	}
	if err := json.NewEncoder(out).Encode(v); err != nil {
		exitErr("write vocabulary", err)
	}
}
