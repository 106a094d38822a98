package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacktea/xgsum/pkg/digest"
	"github.com/jacktea/xgsum/pkg/dispatch"
	"github.com/jacktea/xgsum/pkg/hasher"
	"github.com/jacktea/xgsum/pkg/manifest"
	"github.com/jacktea/xgsum/pkg/report"
)

// errJobsFailed marks a run where at least one file could not be hashed.
// The failures themselves are already logged.
var errJobsFailed = errors.New("one or more files failed")

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:           "xgsum [flags] <file>...",
		Short:         "Compute file digests concurrently",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(viper.GetViper())
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg)
			return runHash(cmd.Context(), cfg, args, cmd.OutOrStdout(), logger)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	initRootFlags()
	initCommands()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errJobsFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("xgsum")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "xgsum"))
		}
	}
	viper.SetEnvPrefix("XGSUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		}
	}
}

func bindConfig(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func initRootFlags() {
	def := defaultRunConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")

	flags.Int("buffer-size", def.BufferSize, "read buffer size in bytes")
	flags.String("algorithm", def.Algorithm, "digest algorithm: "+strings.Join(digest.Algorithms(), "|"))
	flags.Duration("eta-after", def.ETAAfter, "report an ETA for files still hashing after this long")
	flags.Int("jobs", def.Jobs, "maximum files hashed at once (0 = one worker per file)")
	flags.String("output", def.Output, "output format: text|json|yaml")
	flags.String("template", def.Template, "text line template ({digest} {name} {path} {size} {algorithm})")
	flags.String("manifest", def.Manifest, "record digests into this BoltDB file")
	flags.String("log-level", def.LogLevel, "diagnostic log level: debug|info|warn|error")

	bindConfig("buffer_size", flags.Lookup("buffer-size"))
	bindConfig("algorithm", flags.Lookup("algorithm"))
	bindConfig("eta_after", flags.Lookup("eta-after"))
	bindConfig("jobs", flags.Lookup("jobs"))
	bindConfig("output", flags.Lookup("output"))
	bindConfig("template", flags.Lookup("template"))
	bindConfig("manifest", flags.Lookup("manifest"))
	bindConfig("log_level", flags.Lookup("log-level"))
}

func initCommands() {
	rootCmd.AddCommand(
		newManifestCmd(),
		newAlgorithmsCmd(),
	)
}

func newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Print digests recorded in the --manifest file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("manifest")
			if path == "" {
				return errors.New("--manifest is required")
			}
			return doListManifest(cmd.Context(), path, cmd.OutOrStdout())
		},
	}
}

func newAlgorithmsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "algorithms",
		Short: "List supported digest algorithms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range digest.Algorithms() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newLogger(w io.Writer, cfg runConfig) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.level()}))
}

// runHash hashes paths, prints results in input order once every file is
// done, and returns errJobsFailed if any file failed.
func runHash(ctx context.Context, cfg runConfig, paths []string, stdout io.Writer, logger *slog.Logger) error {
	if len(paths) == 0 {
		return errors.New("no input files")
	}
	alg, err := digest.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return err
	}
	out, err := report.New(stdout, report.Options{
		Format:   report.Format(cfg.Output),
		Template: cfg.Template,
	})
	if err != nil {
		return err
	}

	results := dispatch.Run(ctx, paths, dispatch.Options{
		Workers: cfg.Jobs,
		Logger:  logger,
		Task: hasher.Options{
			ChunkSize: cfg.BufferSize,
			Threshold: cfg.ETAAfter,
			Algorithm: alg,
			Logger:    logger,
		},
	})

	report.LogFailures(logger, results)
	if err := out.Write(results); err != nil {
		return err
	}
	if cfg.Manifest != "" {
		if err := recordManifest(ctx, cfg.Manifest, results); err != nil {
			return err
		}
	}
	if failed := dispatch.Failed(results); failed > 0 {
		logger.Warn("run finished with failures", "failed", failed, "total", len(results))
		return errJobsFailed
	}
	return nil
}

func recordManifest(ctx context.Context, path string, results []dispatch.Result) error {
	store, err := manifest.Open(manifest.Config{Path: path})
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Record(ctx, manifest.EntriesFrom(results, time.Now()))
}

func doListManifest(ctx context.Context, path string, w io.Writer) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("manifest %s: %w", path, err)
	}
	store, err := manifest.Open(manifest.Config{Path: path})
	if err != nil {
		return err
	}
	defer store.Close()
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s:%s %s\t%d\n", e.Algorithm, e.Digest, filepath.Clean(e.Path), e.Size)
	}
	return nil
}
