package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	txv "github.com/transitkit/validator"
	"github.com/transitkit/validator/config"
	"github.com/transitkit/validator/rules"
	"github.com/transitkit/validator/schema"
)

const netexDoc = `<PublicationDelivery version="1.15">
  <dataObjects>
    <CompositeFrame id="cf:1">
      <frames>
        <ServiceFrame id="sf:1">
          <lines>
            <Line id="line:1">
              <Name>Route 1</Name>
            </Line>
          </lines>
        </ServiceFrame>
      </frames>
    </CompositeFrame>
  </dataObjects>
</PublicationDelivery>`

func doc(name string) txv.Document {
	return txv.Document{FileName: name, Text: netexDoc, Format: txv.FormatNeTEx}
}

func netexRule(name string, kind rules.Kind, run rules.RunFunc) rules.Rule {
	return rules.Rule{
		Name:    name,
		Formats: []txv.Format{txv.FormatNeTEx},
		Kind:    kind,
		Run:     run,
	}
}

// emit builds a diagnostic the way rules do, with file and line attached.
func emit(rule, file string, line int) txv.Diagnostic {
	return txv.NewDiagnostic(txv.SeverityError, txv.CategoryConsistency).
		Rule(rule).
		Message("problem in %s", file).
		In(file).
		At(line, 0).
		Build()
}

func newEngine(t *testing.T, registry *rules.Registry, opts ...Option) *Engine {
	t.Helper()
	e, err := New(registry, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

func TestValidateFilesInInputOrder(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("noop", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return nil
		}),
	)
	e := newEngine(t, registry)

	docs := []txv.Document{doc("b.xml"), doc("a.xml"), doc("c.xml")}
	result, err := e.Validate(context.Background(), docs, txv.WithoutSchemaValidation())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.RunID == "" {
		t.Error("RunID not set")
	}
	var got []string
	for _, f := range result.Files {
		got = append(got, f.FileName)
	}
	want := []string{"b.xml", "a.xml", "c.xml"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("file order = %v, want %v", got, want)
	}
	if !result.Valid() {
		t.Error("expected valid result")
	}
}

func TestValidateDeterministic(t *testing.T) {
	// Rules emit on distinct lines; runs with different worker counts
	// must produce identical per-file diagnostic sequences.
	registry := rules.NewRegistry(
		netexRule("first", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("first", docs[0].FileName, 7)}
		}),
		netexRule("second", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("second", docs[0].FileName, 3)}
		}),
		netexRule("third", rules.CrossDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			var out []txv.Diagnostic
			for _, d := range docs {
				out = append(out, emit("third", d.FileName, 0))
			}
			return out
		}),
	)

	docs := []txv.Document{doc("a.xml"), doc("b.xml")}
	var runs [][]txv.Diagnostic
	for _, workers := range []int{1, 8} {
		e := newEngine(t, registry)
		result, err := e.Validate(context.Background(), docs,
			txv.WithoutSchemaValidation(), txv.WithWorkers(workers))
		if err != nil {
			t.Fatalf("Validate(workers=%d): %v", workers, err)
		}
		var flat []txv.Diagnostic
		for _, f := range result.Files {
			flat = append(flat, f.Errors...)
		}
		runs = append(runs, flat)
	}
	if !reflect.DeepEqual(runs[0], runs[1]) {
		t.Errorf("runs differ:\n%v\n%v", runs[0], runs[1])
	}

	// Within a file, lines are ascending with zero-line entries last.
	e := newEngine(t, registry)
	result, _ := e.Validate(context.Background(), docs, txv.WithoutSchemaValidation())
	first := result.Files[0].Errors
	if len(first) != 3 {
		t.Fatalf("len(diags) = %d, want 3", len(first))
	}
	if first[0].Line != 3 || first[1].Line != 7 || first[2].Line != 0 {
		t.Errorf("line order = %d,%d,%d, want 3,7,0", first[0].Line, first[1].Line, first[2].Line)
	}
}

func TestRulePanicBecomesDiagnostic(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("explosive", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			panic("boom")
		}),
		netexRule("survivor", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("survivor", docs[0].FileName, 1)}
		}),
	)
	e := newEngine(t, registry)

	result, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")}, txv.WithoutSchemaValidation())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	diags := result.Files[0].Errors
	if len(diags) != 2 {
		t.Fatalf("len(diags) = %d, want 2", len(diags))
	}
	var saw bool
	for _, d := range diags {
		if d.RuleName == "explosive" {
			saw = true
			if d.Category != txv.CategoryGeneral {
				t.Errorf("panic category = %s, want %s", d.Category, txv.CategoryGeneral)
			}
			if !strings.Contains(d.Message, "boom") {
				t.Errorf("panic message = %q", d.Message)
			}
		}
	}
	if !saw {
		t.Error("panicking rule produced no diagnostic")
	}
}

func TestCrossDocumentDistribution(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("spread", rules.CrossDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			// Emit in reverse file order; assembly must still route each
			// diagnostic to its own file.
			var out []txv.Diagnostic
			for i := len(docs) - 1; i >= 0; i-- {
				out = append(out, emit("spread", docs[i].FileName, 1))
			}
			return out
		}),
	)
	e := newEngine(t, registry)

	result, err := e.Validate(context.Background(),
		[]txv.Document{doc("a.xml"), doc("b.xml")}, txv.WithoutSchemaValidation())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, f := range result.Files {
		if len(f.Errors) != 1 {
			t.Errorf("%s: len = %d, want 1", f.FileName, len(f.Errors))
			continue
		}
		if f.Errors[0].FileName != f.FileName {
			t.Errorf("diagnostic for %s filed under %s", f.Errors[0].FileName, f.FileName)
		}
	}
}

func TestDisabledRulesAreSkipped(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("noisy", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("noisy", docs[0].FileName, 1)}
		}),
	)
	e := newEngine(t, registry)

	result, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")},
		txv.WithoutSchemaValidation(), txv.WithDisabledRules("noisy"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if n := len(result.Files[0].Errors); n != 0 {
		t.Errorf("len(diags) = %d, want 0", n)
	}
}

func TestProfileSelectsRules(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("base", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("base", docs[0].FileName, 1)}
		}),
		rules.Rule{
			Name:    "extra",
			Formats: []txv.Format{txv.FormatNeTEx},
			Kind:    rules.SingleDocument,
			OptIn:   true,
			Run: func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
				return []txv.Diagnostic{emit("extra", docs[0].FileName, 2)}
			},
		},
	)
	profiles := map[string]config.Profile{
		"audit": {EnabledRules: []string{"extra"}},
	}
	e := newEngine(t, registry, WithProfiles(profiles))

	// Default: opt-in rule does not run.
	result, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")}, txv.WithoutSchemaValidation())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if n := len(result.Files[0].Errors); n != 1 {
		t.Fatalf("default run: len(diags) = %d, want 1", n)
	}
	if result.Files[0].Errors[0].RuleName != "base" {
		t.Errorf("default run rule = %s", result.Files[0].Errors[0].RuleName)
	}

	// Profile restricts to the opt-in rule.
	result, err = e.Validate(context.Background(), []txv.Document{doc("a.xml")},
		txv.WithoutSchemaValidation(), txv.WithProfile("audit"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if n := len(result.Files[0].Errors); n != 1 {
		t.Fatalf("profile run: len(diags) = %d, want 1", n)
	}
	if result.Files[0].Errors[0].RuleName != "extra" {
		t.Errorf("profile run rule = %s", result.Files[0].Errors[0].RuleName)
	}

	if _, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")},
		txv.WithoutSchemaValidation(), txv.WithProfile("nonesuch")); err == nil {
		t.Error("expected error for unknown profile")
	}
}

func TestFormatDetection(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("count", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return nil
		}),
	)
	e := newEngine(t, registry)

	docs := []txv.Document{{FileName: "a.xml", Text: netexDoc}}
	result, err := e.Validate(context.Background(), docs, txv.WithoutSchemaValidation())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Files[0].Format != txv.FormatNeTEx {
		t.Errorf("format = %q, want %q", result.Files[0].Format, txv.FormatNeTEx)
	}
	if docs[0].Format != txv.FormatUnknown {
		t.Error("caller's document mutated during detection")
	}
}

func TestCancelledContext(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("noop", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return nil
		}),
	)
	e := newEngine(t, registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Validate(ctx, []txv.Document{doc("a.xml")}, txv.WithoutSchemaValidation()); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestSchemaResolutionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	resolver := schema.NewResolver(
		schema.WithCacheDir(t.TempDir()),
		schema.WithSource(server.URL+"/{schema}/{version}.zip"),
	)
	registry := rules.NewRegistry(
		netexRule("still-runs", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("still-runs", docs[0].FileName, 5)}
		}),
	)
	e := newEngine(t, registry, WithSchemaResolver(resolver))

	result, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	diags := result.Files[0].Errors
	if len(diags) != 2 {
		t.Fatalf("len(diags) = %d, want 2: %v", len(diags), diags)
	}
	// Sorting is by line with absent lines last, so the rule's line 5
	// precedes the schema failure's line 0.
	if diags[0].RuleName != "still-runs" {
		t.Errorf("diags[0].RuleName = %s, want still-runs", diags[0].RuleName)
	}
	var failure *txv.Diagnostic
	for i := range diags {
		if diags[i].RuleName == "schemaResolution" {
			failure = &diags[i]
		}
	}
	if failure == nil {
		t.Fatal("no schema resolution diagnostic")
	}
	if failure.Category != txv.CategoryNotFound {
		t.Errorf("category = %s, want %s", failure.Category, txv.CategoryNotFound)
	}
	if failure.Source != txv.SourceSchema {
		t.Errorf("source = %q, want %q", failure.Source, txv.SourceSchema)
	}
}

func TestSchemaSourceOption(t *testing.T) {
	var defaultHits, overrideHits atomic.Int64
	configured := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defaultHits.Add(1)
		http.NotFound(w, r)
	}))
	defer configured.Close()
	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideHits.Add(1)
		http.NotFound(w, r)
	}))
	defer override.Close()

	resolver := schema.NewResolver(
		schema.WithCacheDir(t.TempDir()),
		schema.WithSource(configured.URL+"/{schema}/{version}.zip"),
	)
	e := newEngine(t, rules.NewRegistry(), WithSchemaResolver(resolver))

	_, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")},
		txv.WithSchemaSource(override.URL+"/{schema}/{version}.zip"))
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if overrideHits.Load() == 0 {
		t.Error("schema source override was never fetched")
	}
	if defaultHits.Load() != 0 {
		t.Errorf("configured source hits = %d, want 0", defaultHits.Load())
	}
}

func TestProgressEvents(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("noop", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return nil
		}),
	)
	e := newEngine(t, registry)

	var mu sync.Mutex
	var phases []txv.Phase
	sink := txv.ProgressFunc(func(event txv.ProgressEvent) {
		mu.Lock()
		phases = append(phases, event.Phase)
		mu.Unlock()
	})

	if _, err := e.Validate(context.Background(), []txv.Document{doc("a.xml")},
		txv.WithoutSchemaValidation(), txv.WithProgress(sink)); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := []txv.Phase{txv.PhaseDetecting, txv.PhaseRunning, txv.PhaseDone}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestMetricsRecorded(t *testing.T) {
	registry := rules.NewRegistry(
		netexRule("counted", rules.SingleDocument, func(ctx context.Context, docs []txv.Document) []txv.Diagnostic {
			return []txv.Diagnostic{emit("counted", docs[0].FileName, 1)}
		}),
	)
	e := newEngine(t, registry)

	if _, err := e.Validate(context.Background(),
		[]txv.Document{doc("a.xml"), doc("b.xml")}, txv.WithoutSchemaValidation()); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	stats := e.Metrics()
	if stats.Documents != 2 {
		t.Errorf("Documents = %d, want 2", stats.Documents)
	}
	if stats.Errors != 2 {
		t.Errorf("Errors = %d, want 2", stats.Errors)
	}
	if len(stats.Rules) != 1 || stats.Rules[0].Name != "counted" {
		t.Fatalf("Rules = %+v", stats.Rules)
	}
	if stats.Rules[0].Invocations != 2 {
		t.Errorf("Invocations = %d, want 2", stats.Rules[0].Invocations)
	}
}
