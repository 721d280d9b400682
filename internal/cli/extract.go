package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/sngram/internal/config"
	"github.com/rcliao/sngram/internal/conllu"
	"github.com/rcliao/sngram/internal/extractor"
	"github.com/rcliao/sngram/internal/metrics"
	"github.com/rcliao/sngram/internal/miner"
	"github.com/rcliao/sngram/internal/model"
	"github.com/rcliao/sngram/internal/pipeline"
	"github.com/rcliao/sngram/internal/store"
)

// putBatch is the number of records stored per transaction.
const putBatch = 1000

func init() {
	cmd := &cobra.Command{
		Use:   "extract <corpus>",
		Short: "Extract, encode and store the patterns of a corpus",
		Long: "Extracts the syntactic n-grams of every sentence, projects them onto the configured " +
			"levels and encodes them. Projected patterns are stored with their base pattern, base " +
			"patterns with the sentence number and token positions. With --out the records are " +
			"written as TSV instead.",
		Args: cobra.ExactArgs(1),
		Run:  runExtract,
	}

	cmd.Flags().StringP("encoder", "e", "", "Saved encoder (required)")
	cmd.Flags().StringP("run", "r", "", "Add to this run id or 'latest' instead of creating a run")
	cmd.Flags().String("out", "", "Write projected patterns as encoded<TAB>base lines instead of storing them")
	cmd.Flags().String("out-base", "", "Write base patterns as encoded<TAB>positions lines instead of storing them")
	cmd.Flags().String("keep-word", "", "Only keep patterns containing this word")
	cmd.Flags().String("keep-level", "", "Level compared with --keep-word (default: word level)")
	cmd.Flags().Bool("skip-unknown", false, "Drop projections with elements missing from the encoder")
	cmd.Flags().Bool("only-base", false, "Keep base patterns only")
	cmd.Flags().Int("workers", 0, "Worker goroutines (default: config)")
	cmd.Flags().Int("chunk", 0, "Sentences handed to a worker at once (default: config)")
	cmd.Flags().Bool("unordered", false, "Write results as workers finish them")

	cmd.MarkFlagRequired("encoder")

	RootCmd.AddCommand(cmd)
}

type sentenceJob struct {
	nr   int
	sent *conllu.Sentence
}

type sentenceResult struct {
	nr   int
	recs []miner.Record
	err  error
}

// recordSink receives the records of one sentence at a time.
type recordSink interface {
	write(recs []miner.Record) error
	close() error
}

func runExtract(cmd *cobra.Command, args []string) {
	encoderPath, _ := cmd.Flags().GetString("encoder")
	runRef, _ := cmd.Flags().GetString("run")
	outPath, _ := cmd.Flags().GetString("out")
	outBase, _ := cmd.Flags().GetString("out-base")
	keepWord, _ := cmd.Flags().GetString("keep-word")
	keepLevel, _ := cmd.Flags().GetString("keep-level")
	skipUnknown, _ := cmd.Flags().GetBool("skip-unknown")
	onlyBase, _ := cmd.Flags().GetBool("only-base")
	workers, _ := cmd.Flags().GetInt("workers")
	chunk, _ := cmd.Flags().GetInt("chunk")
	unordered, _ := cmd.Flags().GetBool("unordered")

	ctx := cmd.Context()
	cfg := loadConfig()
	log := newLogger(cfg)
	defer log.Sync()

	extCfg, err := cfg.ExtractorConfig(log)
	if err != nil {
		exitErr("extractor config", err)
	}
	ext, err := extractor.New(extCfg)
	if err != nil {
		exitErr("create extractor", err)
	}
	conv, err := cfg.NewConversion()
	if err != nil {
		exitErr("conversion", err)
	}

	c := loadCodec(encoderPath)
	m := metrics.NewExtraction()
	opts := minerOptions(cfg, conv)
	opts.KeepWord = keepWord
	opts.KeepLevel = keepLevel
	opts.SkipUnknown = skipUnknown
	opts.Metrics = m
	opts.Logger = log
	mn, err := miner.New(ext, c, opts)
	if err != nil {
		exitErr("create miner", err)
	}

	in, err := conllu.Open(args[0])
	if err != nil {
		exitErr("open corpus", err)
	}
	defer in.Close()
	reader := conllu.NewReader(in, conllu.Options{NFC: cfg.NFC})

	var sink recordSink
	var run *model.Run
	if outPath != "" || outBase != "" {
		sink = newTSVSink(outPath, outBase, onlyBase)
	} else {
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		if runRef != "" {
			run, err = s.ResolveRun(ctx, runRef)
			if err != nil {
				exitErr("resolve run", err)
			}
		} else {
			raw, _ := json.Marshal(cfg)
			run, err = s.CreateRun(ctx, store.CreateRunParams{
				Input:  args[0],
				Codec:  c.Inner().Kind().String(),
				Config: string(raw),
			})
			if err != nil {
				exitErr("create run", err)
			}
		}
		sink = &storeSink{ctx: ctx, s: s, runID: run.ID, onlyBase: onlyBase}
	}

	var readErr error
	jobs := func(yield func(sentenceJob) bool) {
		nr := 0
		for s, err := range reader.All() {
			if err != nil {
				readErr = err
				return
			}
			if !yield(sentenceJob{nr: nr, sent: s}) {
				return
			}
			nr++
		}
	}

	popts := pipeline.Options{Workers: cfg.Workers, ChunkSize: cfg.ChunkSize, Ordered: cfg.Ordered && !unordered}
	if workers > 0 {
		popts.Workers = workers
	}
	if chunk > 0 {
		popts.ChunkSize = chunk
	}

	sentences, records := 0, 0
	err = pipeline.Map(ctx, popts, iter.Seq[sentenceJob](jobs),
		func(j sentenceJob) sentenceResult {
			recs, err := mn.Sentence(j.nr, j.sent)
			return sentenceResult{nr: j.nr, recs: recs, err: err}
		},
		func(r sentenceResult) error {
			sentences++
			switch {
			case errors.Is(r.err, extractor.ErrTooManyPaths):
				log.Info("abort sentence", zap.Int("nr", r.nr+1), zap.Error(r.err))
			case r.err != nil:
				log.Warn("skip sentence", zap.Int("nr", r.nr+1), zap.Error(r.err))
			}
			records += len(r.recs)
			return sink.write(r.recs)
		})
	if cerr := sink.close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = readErr
	}
	if err != nil {
		exitErr("extract", err)
	}

	summary := map[string]any{"ok": true, "sentences": sentences, "records": records}
	if run != nil {
		ss := sink.(*storeSink)
		if err := ss.s.FinishRun(ctx, run.ID, run.Sentences+sentences, run.Patterns+records); err != nil {
			exitErr("finish run", err)
		}
		summary["run"] = run.ID
	}
	if snap, err := m.Snapshot(); err == nil {
		summary["metrics"] = snap
	}
	entries, size := mn.Cache().Stats()
	log.Info("item cache", zap.Uint64("entries", entries), zap.Uint64("bytes", size))
	printJSON(summary)
}

// minerOptions reads the levels from cfg. Full patterns keep the source
// level of the conversion under the conversion level's name.
func minerOptions(cfg *config.Config, conv *extractor.ExprConversion) miner.Options {
	opts := miner.DefaultOptions()
	opts.WordLevel = cfg.WordLevel
	opts.Levels = cfg.Levels
	opts.CacheSize = cfg.CacheSize
	opts.TokenLevels = nil
	opts.Aliases = map[string]string{}
	for _, level := range cfg.Levels {
		if conv != nil && level == conv.Level() {
			opts.TokenLevels = append(opts.TokenLevels, conv.Source())
			opts.Aliases[conv.Source()] = level
			continue
		}
		opts.TokenLevels = append(opts.TokenLevels, level)
	}
	return opts
}

type storeSink struct {
	ctx      context.Context
	s        *store.SQLiteStore
	runID    string
	onlyBase bool
	batch    []store.PutParams
}

func (k *storeSink) write(recs []miner.Record) error {
	for _, r := range recs {
		if k.onlyBase && r.Kind != model.KindBase {
			continue
		}
		k.batch = append(k.batch, store.PutParams{Kind: r.Kind, Encoded: r.Encoded, Content: r.Content})
	}
	if len(k.batch) < putBatch {
		return nil
	}
	return k.flush()
}

func (k *storeSink) flush() error {
	_, err := k.s.Put(k.ctx, k.runID, k.batch)
	k.batch = k.batch[:0]
	return err
}

func (k *storeSink) close() error { return k.flush() }

type tsvSink struct {
	patterns, base *bufio.Writer
	closers        []io.Closer
}

func newTSVSink(patternsPath, basePath string, onlyBase bool) *tsvSink {
	k := &tsvSink{}
	if patternsPath != "" && !onlyBase {
		f := createOutput(patternsPath)
		k.patterns = bufio.NewWriter(f)
		k.closers = append(k.closers, f)
	}
	if basePath != "" {
		f := createOutput(basePath)
		k.base = bufio.NewWriter(f)
		k.closers = append(k.closers, f)
	}
	return k
}

func (k *tsvSink) write(recs []miner.Record) error {
	for _, r := range recs {
		w := k.patterns
		if r.Kind == model.KindBase {
			w = k.base
		}
		if w == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", r.Encoded, r.Content); err != nil {
			return err
		}
	}
	return nil
}

func (k *tsvSink) close() error {
	var errs []error
	for _, w := range []*bufio.Writer{k.patterns, k.base} {
		if w != nil {
			errs = append(errs, w.Flush())
		}
	}
	for _, c := range k.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
