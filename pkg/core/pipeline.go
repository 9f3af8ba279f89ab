package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aymanbagabas/go-udiff"
	"github.com/blackcoderx/probe/pkg/collection"
	"github.com/blackcoderx/probe/pkg/report"
	"github.com/blackcoderx/probe/pkg/runner"
	"github.com/blackcoderx/probe/pkg/storage"
	"github.com/blackcoderx/probe/pkg/transcript"
	"github.com/blackcoderx/probe/pkg/ui"
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(title string) (bool, error)

// Pipeline loads a collection, injects assertions and credentials, runs it
// through newman and summarizes the report.
type Pipeline struct {
	cfg       *Config
	printer   *ui.Printer
	loader    *collection.Loader
	mutator   *collection.Mutator
	injector  *collection.CookieInjector
	extractor *transcript.Extractor
	runner    *runner.Runner
	env       map[string]string
	confirm   ConfirmFunc
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithConfirm sets the prompt used before overwriting a collection file.
func WithConfirm(fn ConfirmFunc) Option {
	return func(p *Pipeline) { p.confirm = fn }
}

// WithLoader replaces the default collection loader.
func WithLoader(l *collection.Loader) Option {
	return func(p *Pipeline) { p.loader = l }
}

// NewPipeline wires the components for cfg. It fails when the assertion
// set or the named environment cannot be loaded.
func NewPipeline(cfg *Config, printer *ui.Printer, opts ...Option) (*Pipeline, error) {
	blocks, err := loadAssertions(cfg, printer)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		printer:  printer,
		loader:   collection.NewLoader(collection.WithRetries(cfg.FetchRetries, cfg.FetchRetryInterval)),
		mutator:  collection.NewMutator(blocks, cfg.MutationMode, printer),
		injector: collection.NewCookieInjector(cfg.Auth.AccountID),
		extractor: transcript.NewExtractor(transcript.Markers{
			Header: cfg.Auth.HeaderMarker,
			Footer: cfg.Auth.FooterMarker,
		}),
		runner: runner.New(cfg.Newman, "", cfg.Timeout),
	}

	if cfg.Environment != "" {
		env, err := storage.LoadEnvironment(storage.GetEnvironmentPath(cfg.BaseDir, cfg.Environment))
		if err != nil {
			return nil, configError(fmt.Sprintf("environment '%s': %v", cfg.Environment, err))
		}
		p.env = env
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// loadAssertions reads the configured assertion file. Without one, the
// file in the base directory is used when present, then the built-in set.
func loadAssertions(cfg *Config, printer *ui.Printer) ([]collection.Block, error) {
	path := cfg.AssertionsFile
	if path == "" {
		path = storage.GetAssertionsPath(cfg.BaseDir)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			printer.Infof("Using built-in assertions (no %s)", path)
			return storage.DefaultAssertions(), nil
		}
	}

	blocks, err := storage.LoadAssertions(path)
	if err != nil {
		return nil, configError(fmt.Sprintf("assertions: %v", err))
	}
	return blocks, nil
}

// Run executes the main collection without a login step.
func (p *Pipeline) Run(ctx context.Context) (*report.Summary, error) {
	c, err := p.load(ctx, p.cfg.Source)
	if err != nil {
		return nil, err
	}
	return p.execute(ctx, c, nil)
}

// RunWithAuth runs the login collection first and injects the session
// cookie it yields into every request of the main collection.
func (p *Pipeline) RunWithAuth(ctx context.Context) (*report.Summary, error) {
	creds, err := p.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	c, err := p.load(ctx, p.cfg.Source)
	if err != nil {
		return nil, err
	}
	return p.execute(ctx, c, &creds)
}

// Authenticate runs the login collection verbosely and extracts the token
// pair, from the JSON report when it carries the response stream and from
// the console transcript otherwise.
func (p *Pipeline) Authenticate(ctx context.Context) (collection.Credentials, error) {
	var none collection.Credentials
	if !p.cfg.Auth.Enabled() {
		return none, configError("no login collection configured (set 'auth.login_source' or pass --login)")
	}

	login, err := p.load(ctx, p.cfg.Auth.LoginSource)
	if err != nil {
		return none, err
	}

	tmp, err := os.MkdirTemp("", "probe-login-*")
	if err != nil {
		return none, newError(KindRunnerInvocationFailed, err, "failed to prepare login run")
	}
	defer os.RemoveAll(tmp)

	envFile, cleanup, err := p.exportEnvironment()
	if err != nil {
		return none, err
	}
	defer cleanup()

	p.printer.Infof("Running login collection")
	res := p.runner.Run(ctx, login, runner.Options{
		Reporters:   []string{runner.ReporterCLI, runner.ReporterJSON},
		JSONExport:  filepath.Join(tmp, "login.json"),
		Verbose:     true,
		Environment: envFile,
	})
	if !res.Success() {
		return none, invocationError("login run failed", res)
	}

	if data, err := os.ReadFile(res.JSONReport); err == nil {
		if creds, err := transcript.FromReport(data); err == nil {
			p.printer.Successf("Tokens extracted from login report")
			return creds, nil
		}
	}

	creds, err := p.extractor.Credentials(res.Stdout)
	if err != nil {
		return none, newError(KindTokenExtractionFailed, err, "no tokens in login output")
	}
	p.printer.Successf("Tokens extracted from login output")
	return creds, nil
}

// DryRun applies the assertions and prints the resulting diff without
// running newman or writing anything.
func (p *Pipeline) DryRun(ctx context.Context) (string, error) {
	c, err := p.load(ctx, p.cfg.Source)
	if err != nil {
		return "", err
	}

	before, err := collection.Marshal(c)
	if err != nil {
		return "", newError(KindDocumentMalformed, err, "failed to serialize %s", p.cfg.Source)
	}
	p.mutate(c)
	after, err := collection.Marshal(c)
	if err != nil {
		return "", newError(KindDocumentMalformed, err, "failed to serialize %s", p.cfg.Source)
	}

	return Diff(filepath.Base(p.cfg.Source), string(before), string(after))
}

// Diff returns a unified diff of two collection renderings, or an empty
// string when they are equal.
func Diff(name, before, after string) (string, error) {
	edits := udiff.Strings(before, after)
	if len(edits) == 0 {
		return "", nil
	}
	return udiff.ToUnified("a/"+name, "b/"+name, before, edits, 3)
}

func (p *Pipeline) execute(ctx context.Context, c *collection.Collection, creds *collection.Credentials) (*report.Summary, error) {
	p.mutate(c)

	if err := p.saveInPlace(c); err != nil {
		return nil, err
	}

	// Tokens go in after the write-back so they never land on disk.
	if creds != nil {
		n := p.injector.InjectAll(c, *creds)
		p.printer.Infof("Injected %s header into %d request(s)", collection.CookieHeader, n)
	}

	envFile, cleanup, err := p.exportEnvironment()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	opts := runner.Options{
		Reporters:   p.cfg.Reporters,
		JSONExport:  p.cfg.JSONReport,
		Verbose:     p.cfg.Verbose,
		Environment: envFile,
	}
	if p.cfg.HasReporter(runner.ReporterHTML) {
		opts.HTMLExport = p.cfg.HTMLReport
	}
	// newman's own cli reporter is shown live.
	if p.cfg.HasReporter(runner.ReporterCLI) {
		opts.Stream = p.printer.Out()
	}

	p.printer.Infof("Running collection with newman")
	res := p.runner.Run(ctx, c, opts)

	if !res.Success() {
		// newman exits 1 when assertions fail; a report still means the
		// run itself completed.
		if res.Kind == runner.KindFailed {
			if s, err := report.Analyze(res.JSONReport); err == nil {
				p.summarize(s, res)
				return s, newError(KindTestsFailed, nil, "%d of %d assertion(s) failed", s.Failed, s.Assertions)
			}
		}
		return nil, invocationError("newman run failed", res)
	}

	s, err := AnalyzeReport(res.JSONReport)
	if err != nil {
		return nil, err
	}
	p.summarize(s, res)
	if !s.AllPassed() {
		return s, newError(KindTestsFailed, nil, "%d of %d assertion(s) failed", s.Failed, s.Assertions)
	}
	return s, nil
}

func (p *Pipeline) mutate(c *collection.Collection) {
	result := p.mutator.Apply(c)
	if n := len(result.Skipped); n > 0 {
		PrintError(p.printer, newError(KindMutationSkipped, nil, "%d item(s) without a request were left unchanged", n))
	}
}

func (p *Pipeline) summarize(s *report.Summary, res *runner.Result) {
	PrintSummary(p.printer, s, p.cfg.Pretty)
	if res.HTMLReport != "" {
		p.printer.Infof("HTML report: %s", res.HTMLReport)
	}
}

// saveInPlace writes the mutated collection back over a local source.
func (p *Pipeline) saveInPlace(c *collection.Collection) error {
	if !p.cfg.InPlace {
		return nil
	}
	source := p.cfg.Source
	if collection.IsRemote(source) {
		p.printer.Warnf("Not writing back %s: remote collections are read-only", source)
		return nil
	}

	if !p.cfg.AssumeYes && p.confirm != nil {
		ok, err := p.confirm(fmt.Sprintf("Overwrite %s with the updated tests?", source))
		if err != nil {
			return newError(KindConfigInvalid, err, "confirmation aborted")
		}
		if !ok {
			p.printer.Warnf("Left %s unchanged", source)
			return nil
		}
	}

	if err := collection.Save(c, source); err != nil {
		return newError(KindDocumentUnavailable, err, "failed to write %s", source)
	}
	p.printer.Successf("Updated %s", source)
	return nil
}

// exportEnvironment writes the selected environment as a newman
// environment file. The returned cleanup is always safe to call.
func (p *Pipeline) exportEnvironment() (string, func(), error) {
	noop := func() {}
	if p.env == nil {
		return "", noop, nil
	}

	f, err := os.CreateTemp("", "probe-env-*.json")
	if err != nil {
		return "", noop, newError(KindRunnerInvocationFailed, err, "failed to prepare environment")
	}
	f.Close()
	cleanup := func() { os.Remove(f.Name()) }

	if err := storage.ExportNewmanEnvironment(p.cfg.Environment, p.env, f.Name()); err != nil {
		cleanup()
		return "", noop, newError(KindRunnerInvocationFailed, err, "failed to prepare environment")
	}
	return f.Name(), cleanup, nil
}

func (p *Pipeline) load(ctx context.Context, source string) (*collection.Collection, error) {
	source = storage.SubstituteVariables(source, p.env)

	c, err := p.loader.Load(ctx, source)
	if err != nil {
		if errors.Is(err, collection.ErrMalformed) {
			return nil, newError(KindDocumentMalformed, err, "cannot use %s", source)
		}
		return nil, newError(KindDocumentUnavailable, err, "cannot load %s", source)
	}

	requests := 0
	c.Walk(func(*collection.Item) { requests++ })
	p.printer.Infof("Loaded %s (%d item(s))", source, requests)
	return c, nil
}

// ExtractCookie finds the token pair in newman console output and returns
// the session cookie built from it.
func ExtractCookie(console string, auth AuthConfig) (string, error) {
	ex := transcript.NewExtractor(transcript.Markers{Header: auth.HeaderMarker, Footer: auth.FooterMarker})
	creds, err := ex.Credentials(console)
	if err != nil {
		return "", newError(KindTokenExtractionFailed, err, "no tokens in console output")
	}
	return collection.NewCookieInjector(auth.AccountID).Value(creds), nil
}

// AnalyzeReport reads a newman JSON report.
func AnalyzeReport(path string) (*report.Summary, error) {
	s, err := report.Analyze(path)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			return nil, newError(KindReportUnavailable, nil, "report file not found at %s; run the collection first", path)
		}
		return nil, newError(KindReportUnavailable, err, "cannot read report")
	}
	return s, nil
}

// PrintSummary prints s, as rendered markdown when pretty is set.
func PrintSummary(printer *ui.Printer, s *report.Summary, pretty bool) {
	if pretty && printer.Markdown(s.Markdown()) {
		return
	}
	s.Print(printer.Out())
}

// PrintError prints err with its kind prefix and any captured detail.
// MutationSkipped is a warning; everything else is an error.
func PrintError(printer *ui.Printer, err error) {
	var pe *ProbeError
	if !errors.As(err, &pe) {
		printer.Errorf("%v", err)
		return
	}
	if pe.Kind == KindMutationSkipped {
		printer.Warnf("%v", pe)
	} else {
		printer.Errorf("%v", pe)
	}
	printer.Detail(pe.Detail)
}

func invocationError(msg string, res *runner.Result) *ProbeError {
	e := newError(KindRunnerInvocationFailed, res.Err, "%s (%s)", msg, res.Kind)
	e.Detail = res.Stderr
	return e
}
