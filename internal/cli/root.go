// Package cli implements the sngram commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/sngram/internal/codec"
	"github.com/rcliao/sngram/internal/config"
	"github.com/rcliao/sngram/internal/logging"
	"github.com/rcliao/sngram/internal/store"
)

var (
	dbPath     string
	configPath string
	logLevel   string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "sngram",
	Short: "Mine syntactic n-grams from dependency parsed corpora",
	Long: "Extracts syntactic n-grams from CoNLL-U corpora, encodes them with compact " +
		"prefix or fixed width codes and keeps the results in a SQLite database.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $SNGRAM_DB or ~/.sngram/patterns.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (JSON, YAML or TOML)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("SNGRAM_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sngram", "patterns.db")
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		exitErr("load config", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.Logger {
	log, err := logging.NewLog(&cfg.Log)
	if err != nil {
		exitErr("create logger", err)
	}
	return log
}

// loadCodec restores a saved codec, armored for line oriented text.
func loadCodec(path string) *codec.Base64 {
	f, err := os.Open(path)
	if err != nil {
		exitErr("open encoder", err)
	}
	defer f.Close()

	c, err := codec.Load(f)
	if err != nil {
		exitErr("load encoder", err)
	}
	if b, ok := c.(*codec.Base64); ok {
		return b
	}
	return codec.NewBase64(c)
}

// openInput opens path, or stdin when path is empty or "-".
func openInput(path string) io.ReadCloser {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		exitErr("open input", err)
	}
	return f
}

// createOutput creates path, or returns stdout when path is empty or "-".
func createOutput(path string) io.WriteCloser {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}
	}
	f, err := os.Create(path)
	if err != nil {
		exitErr("create output", err)
	}
	return f
}

// secondArg returns the optional second argument, "" if missing.
func secondArg(args []string) string {
	if len(args) > 1 {
		return args[1]
	}
	return ""
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
