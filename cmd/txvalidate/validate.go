package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/config"
	"github.com/transitkit/validator/engine"
	"github.com/transitkit/validator/render"
	"github.com/transitkit/validator/rules"
	"github.com/transitkit/validator/schema"
)

var (
	flagOutput       string
	flagFormat       string
	flagProfile      string
	flagDisabled     []string
	flagSkipSchema   bool
	flagSchemaSource string
	flagCacheDir     string
	flagWorkers      int
	flagProgress     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <path>...",
	Short: "Validate XML files, directories, or zip archives",
	Long: `Validates each document against the XSD for its detected dialect, then
runs the business-rule library over the dataset. Exit status is 1 when
any error-severity diagnostic is produced.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&flagOutput, "output", "o", "text", "report format: text, csv, or json")
	validateCmd.Flags().StringVar(&flagFormat, "format", "", "force the document dialect (netex or siri) instead of detecting it")
	validateCmd.Flags().StringVar(&flagProfile, "profile", "", "named rule profile from the configuration file")
	validateCmd.Flags().StringSliceVar(&flagDisabled, "disable", nil, "rule names to skip")
	validateCmd.Flags().BoolVar(&flagSkipSchema, "skip-schema", false, "skip XSD validation, run rules only")
	validateCmd.Flags().StringVar(&flagSchemaSource, "schema-source", "", "schema bundle URL template with {schema} and {version} placeholders")
	validateCmd.Flags().StringVar(&flagCacheDir, "cache-dir", "", "schema cache directory")
	validateCmd.Flags().IntVar(&flagWorkers, "workers", 0, "maximum concurrent validation tasks (default: CPU count)")
	validateCmd.Flags().BoolVar(&flagProgress, "progress", false, "print progress events to stderr")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	docs, err := loadDocuments(args)
	if err != nil {
		return err
	}
	if flagFormat != "" {
		format := txv.Format(flagFormat)
		if !format.IsValid() {
			return fmt.Errorf("unknown format %q", flagFormat)
		}
		for i := range docs {
			docs[i].Format = format
		}
	}

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	opts := []txv.Option{txv.WithLogger(logger)}
	if flagProfile != "" {
		opts = append(opts, txv.WithProfile(flagProfile))
	}
	if len(flagDisabled) > 0 {
		opts = append(opts, txv.WithDisabledRules(flagDisabled...))
	}
	if flagSkipSchema {
		opts = append(opts, txv.WithoutSchemaValidation())
	}
	if flagWorkers > 0 {
		opts = append(opts, txv.WithWorkers(flagWorkers))
	}
	if flagProgress {
		opts = append(opts, txv.WithProgress(txv.ProgressFunc(func(event txv.ProgressEvent) {
			if event.FileName != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", event.Phase, event.FileName)
				return
			}
			fmt.Fprintln(cmd.ErrOrStderr(), event.Phase)
		})))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Validate(ctx, docs, opts...)
	if err != nil {
		return err
	}

	if flagVerbose {
		stats := eng.Metrics()
		logger.Debug("run statistics",
			zap.Uint64("documents", stats.Documents),
			zap.Uint64("errors", stats.Errors),
			zap.Uint64("warnings", stats.Warnings),
			zap.Duration("schema_time", stats.SchemaTime))
		for _, rule := range stats.Rules {
			logger.Debug("rule statistics",
				zap.String("rule", rule.Name),
				zap.Uint64("invocations", rule.Invocations),
				zap.Duration("total_time", rule.TotalTime),
				zap.Uint64("diagnostics", rule.Diagnostics))
		}
	}

	out := cmd.OutOrStdout()
	switch flagOutput {
	case "text":
		err = render.Text(out, result)
	case "csv":
		err = render.CSV(out, result)
	case "json":
		err = render.JSON(out, result)
	default:
		return fmt.Errorf("unknown output format %q", flagOutput)
	}
	if err != nil {
		return err
	}

	if !result.Valid() {
		// The report already explains the failures; exit non-zero quietly.
		os.Exit(1)
	}
	return nil
}

// buildEngine wires the rule library, optional profiles, and a schema
// resolver configured from file, environment, and flags.
func buildEngine(cfg *config.Config, logger *zap.Logger) (*engine.Engine, error) {
	source := cfg.SchemaSource
	if flagProfile != "" {
		if p, ok := cfg.ProfileNamed(flagProfile); ok && p.SchemaSource != "" {
			source = p.SchemaSource
		}
	}
	if flagSchemaSource != "" {
		source = flagSchemaSource
	}

	cacheDir := cfg.CacheDir
	if flagCacheDir != "" {
		cacheDir = flagCacheDir
	}

	var resolverOpts []schema.Option
	if source != "" {
		resolverOpts = append(resolverOpts, schema.WithSource(source))
	}
	if cacheDir != "" {
		resolverOpts = append(resolverOpts, schema.WithCacheDir(cacheDir))
	}
	resolverOpts = append(resolverOpts, schema.WithLogger(logger))

	return engine.New(rules.DefaultRegistry(),
		engine.WithSchemaResolver(schema.NewResolver(resolverOpts...)),
		engine.WithProfiles(cfg.Profiles),
		engine.WithLogger(logger),
	)
}
