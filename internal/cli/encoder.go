package cli

import (
	"bytes"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rcliao/sngram/internal/codec"
)

func init() {
	cmd := &cobra.Command{
		Use:   "encoder <vocabulary> <outfile>",
		Short: "Build and save a pattern encoder",
		Long: "Builds an encoder from a vocabulary written by vocab. Huffman encoders need " +
			"frequencies. Bit encoders take a dictionary of dense ids per level as is, and " +
			"otherwise number frequencies or --drop-frequencies form lists by descending count.",
		Args: cobra.ExactArgs(2),
		Run:  runEncoder,
	}

	cmd.Flags().String("kind", "huffman", "Encoder kind: huffman or bit")
	cmd.Flags().Float64("special-weight", 1, "Frequency of markers and unknowns relative to the most frequent form (huffman)")
	cmd.Flags().Bool("token-aware", true, "Reserve ids for token markers so full patterns can be encoded (bit)")
	cmd.Flags().Bool("base64", false, "Save the encoder armored with base64")

	RootCmd.AddCommand(cmd)
}

func runEncoder(cmd *cobra.Command, args []string) {
	kind, _ := cmd.Flags().GetString("kind")
	weight, _ := cmd.Flags().GetFloat64("special-weight")
	tokenAware, _ := cmd.Flags().GetBool("token-aware")
	armored, _ := cmd.Flags().GetBool("base64")
	cfg := loadConfig()

	in := openInput(args[0])
	data, err := io.ReadAll(in)
	in.Close()
	if err != nil {
		exitErr("read vocabulary", err)
	}

	var c codec.Codec
	switch kind {
	case "huffman":
		freqs, o, err := codec.ParseFrequencies(bytes.NewReader(data))
		if err != nil {
			exitErr("parse vocabulary", err)
		}
		sym, unknown := o.Apply(cfg.Symbols, cfg.Unknown)
		c, err = codec.NewHuffmanEncoder(freqs, codec.HuffmanOptions{Symbols: sym, Unknown: unknown, SpecialWeight: weight})
		if err != nil {
			exitErr("build encoder", err)
		}
	case "bit":
		dict, o, err := bitDictionary(data)
		if err != nil {
			exitErr("parse vocabulary", err)
		}
		sym, unknown := o.Apply(cfg.Symbols, cfg.Unknown)
		c, err = codec.NewBitEncoder(dict, codec.BitOptions{Symbols: sym, Unknown: unknown, TokenAware: tokenAware})
		if err != nil {
			exitErr("build encoder", err)
		}
	default:
		exitErr("encoder", fmt.Errorf("unknown kind %q", kind))
	}
	if armored {
		c = codec.NewBase64(c)
	}

	out := createOutput(args[1])
	if err := c.Save(out); err != nil {
		exitErr("save encoder", err)
	}
	if err := out.Close(); err != nil {
		exitErr("save encoder", err)
	}
}

// bitDictionary reads an id dictionary, falling back to frequencies or
// form lists whose ids follow descending counts.
func bitDictionary(data []byte) (codec.Dictionary, codec.Overrides, error) {
	dict, o, err := codec.ParseDictionary(bytes.NewReader(data))
	if err == nil {
		return dict, o, nil
	}
	freqs, fo, ferr := codec.ParseFrequencies(bytes.NewReader(data))
	if ferr != nil {
		return nil, codec.Overrides{}, fmt.Errorf("%w (as frequencies: %v)", err, ferr)
	}
	return freqs.Dictionary(), fo, nil
}
