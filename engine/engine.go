// Package engine coordinates a validation run: format detection, schema
// resolution and validation, rule execution, and deterministic assembly
// of per-file diagnostics.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/config"
	"github.com/transitkit/validator/rules"
	"github.com/transitkit/validator/schema"
	"github.com/transitkit/validator/schemavalidator"
)

// Engine runs rules and schema validation over document sets.
// It is safe for concurrent use; each Validate call is an independent run
// sharing the engine's schema cache and metrics.
type Engine struct {
	registry *rules.Registry
	resolver *schema.Resolver
	schemas  *schemavalidator.Validator
	profiles map[string]config.Profile
	metrics  *txv.Metrics
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSchemaResolver installs the resolver used to locate schema bundles.
// Without one the engine creates a resolver with default settings.
func WithSchemaResolver(r *schema.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithProfiles installs named rule profiles selectable per run.
func WithProfiles(profiles map[string]config.Profile) Option {
	return func(e *Engine) {
		e.profiles = profiles
	}
}

// WithLogger installs the engine's default logger. Per-run loggers set
// through run options take precedence.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine over the given rule registry.
func New(registry *rules.Registry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("engine: nil registry")
	}

	e := &Engine{
		registry: registry,
		metrics:  txv.NewMetrics(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.resolver == nil {
		e.resolver = schema.NewResolver(schema.WithLogger(e.logger))
	}
	e.schemas = schemavalidator.New(e.resolver, schemavalidator.WithLogger(e.logger))

	return e, nil
}

// Registry returns the engine's rule registry.
func (e *Engine) Registry() *rules.Registry {
	return e.registry
}

// Metrics returns a snapshot of run counters.
func (e *Engine) Metrics() txv.Stats {
	return e.metrics.Snapshot()
}

// Close releases compiled schemas held by the engine.
func (e *Engine) Close() {
	e.schemas.Close()
}

// ruleTask is one unit of rule work: a rule applied to a document subset.
type ruleTask struct {
	rule rules.Rule

	// docs is the dataset passed to the rule. Single-document rules get a
	// one-element slice; cross-document rules get the full dataset.
	docs []txv.Document

	// file attributes diagnostics that carry no file name of their own,
	// including panic reports.
	file string

	diags []txv.Diagnostic
}

// Validate runs schema validation and all applicable rules over docs.
// Results are deterministic for a given dataset and option set: files
// appear in input order, schema diagnostics precede rule diagnostics,
// rules contribute in registration order, and each file's diagnostics
// are sorted by ascending line with unknown lines last.
func (e *Engine) Validate(ctx context.Context, docs []txv.Document, opts ...txv.Option) (*txv.ValidationResult, error) {
	options := txv.DefaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	logger := options.Logger
	if logger == nil {
		logger = e.logger
	}

	runID := uuid.NewString()
	logger.Debug("validation run starting",
		zap.String("run_id", runID),
		zap.Int("documents", len(docs)))

	txv.EmitProgress(options.Progress, txv.ProgressEvent{RunID: runID, Phase: txv.PhaseDetecting})

	dataset := detectFormats(docs)
	for i := range dataset {
		logger.Debug("document",
			zap.String("file", dataset[i].FileName),
			zap.String("format", string(dataset[i].Format)))
	}

	selected, err := e.selectRules(dataset, options)
	if err != nil {
		return nil, err
	}

	// Schema resolution happens before rule fan-out so that every task
	// below is pure CPU work over in-memory state.
	var schemaDiags map[string][]txv.Diagnostic
	if !options.SkipSchema {
		txv.EmitProgress(options.Progress, txv.ProgressEvent{RunID: runID, Phase: txv.PhaseResolving})
		schemaDiags = e.validateSchemas(ctx, runID, dataset, options, logger)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validation run %s: %w", runID, err)
	}

	txv.EmitProgress(options.Progress, txv.ProgressEvent{RunID: runID, Phase: txv.PhaseRunning})
	tasks := buildTasks(selected, dataset)
	e.runTasks(ctx, tasks, options)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validation run %s: %w", runID, err)
	}

	result := assemble(runID, dataset, schemaDiags, tasks)
	for _, file := range result.Files {
		errs, warns := 0, 0
		for _, d := range file.Errors {
			switch d.Severity {
			case txv.SeverityError:
				errs++
			case txv.SeverityWarning:
				warns++
			}
		}
		e.metrics.RecordDocument(errs, warns)
	}

	txv.EmitProgress(options.Progress, txv.ProgressEvent{RunID: runID, Phase: txv.PhaseDone})
	logger.Debug("validation run finished",
		zap.String("run_id", runID),
		zap.Int("errors", result.ErrorCount()))
	return result, nil
}

// detectFormats returns a copy of docs with unknown formats resolved by
// root-element sniffing. The caller's slice is not mutated.
func detectFormats(docs []txv.Document) []txv.Document {
	dataset := make([]txv.Document, len(docs))
	copy(dataset, docs)
	for i := range dataset {
		if dataset[i].Format == txv.FormatUnknown {
			dataset[i].Format = txv.DetectFormat(dataset[i].Text)
		}
	}
	return dataset
}

// selectRules returns the rules applicable to the dataset, in registration
// order, after applying profile and disabled-rule filtering. Opt-in rules
// run only when a profile names them.
func (e *Engine) selectRules(dataset []txv.Document, options *txv.Options) ([]rules.Rule, error) {
	var profile config.Profile
	if options.Profile != "" {
		p, ok := e.profiles[options.Profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", options.Profile)
		}
		profile = p
	}

	enabled := map[string]bool{}
	for _, name := range profile.EnabledRules {
		enabled[name] = true
	}
	disabled := map[string]bool{}
	for _, name := range profile.DisabledRules {
		disabled[name] = true
	}

	formats := map[txv.Format]bool{}
	for _, doc := range dataset {
		formats[doc.Format] = true
	}

	var selected []rules.Rule
	for _, name := range e.registry.Names() {
		rule, _ := e.registry.Get(name)
		if options.DisabledRules[name] || disabled[name] {
			continue
		}
		if len(enabled) > 0 && !enabled[name] {
			continue
		}
		if rule.OptIn && !enabled[name] {
			continue
		}
		applies := false
		for format := range formats {
			if rule.AppliesTo(format) {
				applies = true
				break
			}
		}
		if applies {
			selected = append(selected, rule)
		}
	}
	return selected, nil
}

// buildTasks expands selected rules into executable tasks: one per
// document for single-document rules, one per rule for cross-document
// rules. Task order mirrors registration order then input order, which
// fixes the merge order of diagnostics.
func buildTasks(selected []rules.Rule, dataset []txv.Document) []*ruleTask {
	var tasks []*ruleTask
	for _, rule := range selected {
		if rule.Kind == rules.CrossDocument {
			file := ""
			if len(dataset) > 0 {
				file = dataset[0].FileName
			}
			tasks = append(tasks, &ruleTask{rule: rule, docs: dataset, file: file})
			continue
		}
		for i := range dataset {
			if !rule.AppliesTo(dataset[i].Format) {
				continue
			}
			tasks = append(tasks, &ruleTask{
				rule: rule,
				docs: dataset[i : i+1],
				file: dataset[i].FileName,
			})
		}
	}
	return tasks
}

// runTasks executes tasks with bounded parallelism. Each task stores its
// own diagnostics, so completion order does not affect the final result.
func (e *Engine) runTasks(ctx context.Context, tasks []*ruleTask, options *txv.Options) {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(options.Workers)

	for _, task := range tasks {
		task := task
		group.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			start := time.Now()
			task.diags = runRule(gctx, task)
			e.metrics.RecordRule(task.rule.Name, time.Since(start), len(task.diags))
			return nil
		})
	}
	// Tasks never return errors; Wait is a bounded join.
	_ = group.Wait()
}

// runRule executes one rule, converting a panic into a single diagnostic
// attributed to the rule so one failing rule cannot sink the run.
func runRule(ctx context.Context, task *ruleTask) (diags []txv.Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			diags = []txv.Diagnostic{txv.NewDiagnostic(txv.SeverityError, txv.CategoryGeneral).
				Rule(task.rule.Name).
				Message("rule failed: %v", r).
				In(task.file).
				Build()}
		}
	}()
	return task.rule.Run(ctx, task.docs)
}

// validateSchemas resolves and applies the XSD for each document that has
// a known format. A failed resolution becomes one diagnostic on every
// document needing that schema; the run itself continues.
func (e *Engine) validateSchemas(ctx context.Context, runID string, dataset []txv.Document, options *txv.Options, logger *zap.Logger) map[string][]txv.Diagnostic {
	type need struct {
		schemaID string
		version  string
	}

	needs := make([]need, len(dataset))
	distinct := map[need]bool{}
	for i, doc := range dataset {
		cfg, ok := txv.SchemaConfigFor(doc.Format)
		if !ok {
			continue
		}
		version := txv.DetectVersion(doc.Text)
		if version == "" {
			version = cfg.DefaultVersion
		}
		needs[i] = need{schemaID: cfg.SchemaID, version: version}
		distinct[needs[i]] = true
	}

	entries := map[need]*schema.Entry{}
	failures := map[need]error{}
	for n := range distinct {
		entry, err := e.resolver.EnsureFrom(ctx, n.schemaID, n.version, options.SchemaSource)
		if err != nil {
			logger.Warn("schema resolution failed",
				zap.String("schema", n.schemaID),
				zap.String("version", n.version),
				zap.Error(err))
			failures[n] = err
			continue
		}
		entries[n] = entry
	}

	results := make([][]txv.Diagnostic, len(dataset))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(options.Workers)

	for i := range dataset {
		n := needs[i]
		if n.schemaID == "" {
			continue
		}
		if err := failures[n]; err != nil {
			results[i] = []txv.Diagnostic{schemaFailure(n.schemaID, n.version, dataset[i].FileName, err)}
			continue
		}
		entry := entries[n]
		i := i
		group.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			txv.EmitProgress(options.Progress, txv.ProgressEvent{
				RunID:    runID,
				Phase:    txv.PhaseValidating,
				FileName: dataset[i].FileName,
			})
			start := time.Now()
			results[i] = e.schemas.ValidateDocument(gctx, dataset[i], entry)
			e.metrics.RecordSchemaValidation(time.Since(start))
			return nil
		})
	}
	_ = group.Wait()

	byFile := map[string][]txv.Diagnostic{}
	for i := range dataset {
		if len(results[i]) > 0 {
			byFile[dataset[i].FileName] = append(byFile[dataset[i].FileName], results[i]...)
		}
	}
	return byFile
}

func schemaFailure(schemaID, version, file string, err error) txv.Diagnostic {
	category := txv.CategoryGeneral
	if isNotFound(err) {
		category = txv.CategoryNotFound
	}
	return txv.NewDiagnostic(txv.SeverityError, category).
		From(txv.SourceSchema).
		Rule("schemaResolution").
		Message("schema %s %s unavailable: %v", schemaID, version, err).
		In(file).
		Build()
}

func isNotFound(err error) bool {
	return errors.Is(err, schema.ErrEntryNotFound) || errors.Is(err, schema.ErrBundleNotFound)
}

// assemble merges schema and rule diagnostics into the final result:
// files in input order, schema diagnostics ahead of rule diagnostics,
// then a stable per-file sort by line.
func assemble(runID string, dataset []txv.Document, schemaDiags map[string][]txv.Diagnostic, tasks []*ruleTask) *txv.ValidationResult {
	index := map[string]int{}
	files := make([]txv.FileResult, len(dataset))
	for i, doc := range dataset {
		index[doc.FileName] = i
		files[i] = txv.FileResult{
			FileName: doc.FileName,
			Format:   doc.Format,
			Errors:   append([]txv.Diagnostic(nil), schemaDiags[doc.FileName]...),
		}
	}

	for _, task := range tasks {
		for _, diag := range task.diags {
			file := diag.FileName
			if file == "" {
				file = task.file
				diag.FileName = file
			}
			i, ok := index[file]
			if !ok {
				// Diagnostic names a file outside the dataset; pin it to
				// the task's own file so it is not silently dropped.
				i = index[task.file]
				diag.FileName = task.file
			}
			files[i].Errors = append(files[i].Errors, diag)
		}
	}

	for i := range files {
		txv.SortDiagnostics(files[i].Errors)
	}

	return &txv.ValidationResult{RunID: runID, Files: files}
}
