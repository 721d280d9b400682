package cli

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/sngram/internal/pattern"
)

func init() {
	cmd := &cobra.Command{
		Use:   "profile <encoder> [file]",
		Short: "Count pattern profiles",
		Long: "Decodes every pattern and counts its profile: the level of each feature and the " +
			"symbol of each marker. Token patterns have no profile and are skipped.",
		Args: cobra.RangeArgs(1, 2),
		Run:  runProfile,
	}

	cmd.Flags().Bool("hash", false, "Report profiles by their hash")
	cmd.Flags().IntP("limit", "l", 0, "Max profiles (0: all)")

	RootCmd.AddCommand(cmd)
}

type profileCount struct {
	Profile string `json:"profile"`
	Count   int    `json:"count"`
}

func runProfile(cmd *cobra.Command, args []string) {
	hash, _ := cmd.Flags().GetBool("hash")
	limit, _ := cmd.Flags().GetInt("limit")
	log := newLogger(loadConfig())
	defer log.Sync()

	c := loadCodec(args[0])
	in := openInput(secondArg(args))
	defer in.Close()

	counts := map[string]int{}
	skipped := 0
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 16<<20)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == "" {
			continue
		}
		encoded, _, err := patternLine(sc.Text())
		if err != nil {
			skipped++
			continue
		}
		p, err := c.DecodeText(encoded)
		if err != nil {
			log.Warn("skip pattern", zap.String("encoded", encoded), zap.Error(err))
			skipped++
			continue
		}
		prof, err := p.Profile(hash)
		if errors.Is(err, pattern.ErrTokenPattern) {
			skipped++
			continue
		}
		if err != nil {
			exitErr("profile", err)
		}
		counts[prof]++
	}
	if err := sc.Err(); err != nil {
		exitErr("read patterns", err)
	}

	out := make([]profileCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, profileCount{Profile: p, Count: n})
	}
	slices.SortFunc(out, func(a, b profileCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), cmp.Compare(a.Profile, b.Profile))
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if skipped > 0 {
		log.Info("skipped patterns", zap.Int("count", skipped))
	}

	if formatFlag == "text" {
		for _, p := range out {
			fmt.Printf("%d\t%s\n", p.Count, p.Profile)
		}
		return
	}
	printJSON(out)
}
