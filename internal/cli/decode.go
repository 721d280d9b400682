package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	cmd := &cobra.Command{
		Use:   "decode <encoder> [file]",
		Short: "Decode pattern files to readable patterns",
		Long: "Reads encoded<TAB>content lines, grouped JSON lines as written by export --grouped, " +
			"or bare encoded patterns, and replaces the encoded pattern by its decoded form.",
		Args: cobra.RangeArgs(1, 2),
		Run:  runDecode,
	}

	cmd.Flags().Bool("content", false, "Also decode the content column (projected patterns)")

	RootCmd.AddCommand(cmd)
}

// patternLine splits a line into its encoded pattern and the rest.
func patternLine(line string) (encoded, rest string, err error) {
	if !strings.HasPrefix(line, "[") {
		encoded, rest, _ = strings.Cut(line, "\t")
		return encoded, rest, nil
	}
	var group []json.RawMessage
	if err := json.Unmarshal([]byte(line), &group); err != nil || len(group) == 0 {
		return "", "", fmt.Errorf("expected [encoded, contents], got %q", line)
	}
	if err := json.Unmarshal(group[0], &encoded); err != nil {
		return "", "", fmt.Errorf("encoded pattern: %w", err)
	}
	if len(group) > 1 {
		rest = string(group[1])
	}
	return encoded, rest, nil
}

func runDecode(cmd *cobra.Command, args []string) {
	decodeContent, _ := cmd.Flags().GetBool("content")
	log := newLogger(loadConfig())
	defer log.Sync()

	c := loadCodec(args[0])
	in := openInput(secondArg(args))
	defer in.Close()

	w := bufio.NewWriter(cmd.OutOrStdout())
	defer w.Flush()

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		encoded, rest, err := patternLine(sc.Text())
		if err != nil {
			log.Warn("skip line", zap.Int("line", line), zap.Error(err))
			continue
		}
		p, err := c.DecodeText(encoded)
		if err != nil {
			log.Warn("skip line", zap.Int("line", line), zap.Error(err))
			continue
		}
		if decodeContent && rest != "" {
			if base, err := c.DecodeText(rest); err == nil {
				rest = base.String()
			} else {
				log.Debug("content not decoded", zap.Int("line", line), zap.Error(err))
			}
		}
		if rest == "" {
			fmt.Fprintln(w, p.String())
		} else {
			fmt.Fprintf(w, "%s\t%s\n", p.String(), rest)
		}
	}
	if err := sc.Err(); err != nil {
		w.Flush()
		exitErr("read patterns", err)
	}
}
