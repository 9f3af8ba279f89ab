// Package runner invokes newman on a collection and classifies the outcome.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/blackcoderx/probe/pkg/collection"
)

// DefaultBinary is the newman executable looked up on PATH.
const DefaultBinary = "newman"

// RunIDPlaceholder in a report path is replaced with a per-run identifier.
const RunIDPlaceholder = "{run}"

// Reporter names accepted by newman's --reporters flag.
const (
	ReporterCLI  = "cli"
	ReporterJSON = "json"
	ReporterHTML = "html"
)

// Kind classifies how an invocation ended.
type Kind int

const (
	KindOK Kind = iota
	KindFailed
	KindLaunch
	KindTimeout
	KindPrepare
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindFailed:
		return "failed"
	case KindLaunch:
		return "launch"
	case KindTimeout:
		return "timeout"
	case KindPrepare:
		return "prepare"
	default:
		return "unknown"
	}
}

// Options control a single newman invocation.
type Options struct {
	// Reporters passed to --reporters. Defaults to json.
	Reporters []string
	// JSONExport and HTMLExport are the report paths for the json and html
	// reporters. They may contain RunIDPlaceholder.
	JSONExport string
	HTMLExport string
	// Verbose adds --verbose, needed for response bodies on the console.
	Verbose bool
	// Environment is an optional newman environment file (-e).
	Environment string
	// CollectionPath is where the collection is written. Empty means a
	// fresh temporary file.
	CollectionPath string
	// Temporary removes CollectionPath after the run. Always true when
	// CollectionPath is empty.
	Temporary bool
	// Stream, when set, receives stdout as newman produces it. Captured
	// stdout in Result is unaffected.
	Stream io.Writer
}

// Result is the outcome of Run. Run never returns an error; failures are
// described here.
type Result struct {
	Kind       Kind
	ExitCode   int
	Stdout     string
	Stderr     string
	Duration   time.Duration
	Args       []string
	JSONReport string
	HTMLReport string
	Err        error
}

// Success reports whether newman exited with status zero.
func (r *Result) Success() bool {
	return r.Kind == KindOK
}

// Runner executes newman as a subprocess.
type Runner struct {
	Binary  string
	WorkDir string
	Timeout time.Duration
	runID   func() string
}

// New creates a runner. An empty binary uses DefaultBinary; a zero timeout
// waits for newman indefinitely.
func New(binary, workDir string, timeout time.Duration) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{
		Binary:  binary,
		WorkDir: workDir,
		Timeout: timeout,
		runID:   NewRunID,
	}
}

// NewRunID returns an identifier unique to this process and moment.
func NewRunID() string {
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405.000"), os.Getpid())
}

// ExpandRunID substitutes RunIDPlaceholder in path.
func ExpandRunID(path, id string) string {
	return strings.ReplaceAll(path, RunIDPlaceholder, id)
}

// selectReporters fills in the default reporter and clears export paths
// whose reporter is not selected, since newman would never write them.
func selectReporters(opts Options) Options {
	if len(opts.Reporters) == 0 {
		opts.Reporters = []string{ReporterJSON}
	}

	var jsonPath, htmlPath string
	for _, r := range opts.Reporters {
		switch r {
		case ReporterJSON:
			jsonPath = opts.JSONExport
		case ReporterHTML:
			htmlPath = opts.HTMLExport
		}
	}
	opts.JSONExport, opts.HTMLExport = jsonPath, htmlPath
	return opts
}

// BuildArgs returns the newman arguments for collectionPath.
func BuildArgs(collectionPath string, opts Options) []string {
	opts = selectReporters(opts)

	args := []string{"run", collectionPath, "--reporters", strings.Join(opts.Reporters, ",")}
	if opts.JSONExport != "" {
		args = append(args, "--reporter-json-export", opts.JSONExport)
	}
	if opts.HTMLExport != "" {
		args = append(args, "--reporter-html-export", opts.HTMLExport)
	}
	if opts.Environment != "" {
		args = append(args, "--environment", opts.Environment)
	}
	if opts.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

// Run writes c to disk, runs newman against it and waits for it to finish.
// The collection file is removed afterwards when it is temporary, whatever
// the outcome.
func (r *Runner) Run(ctx context.Context, c *collection.Collection, opts Options) *Result {
	start := time.Now()
	res := &Result{}

	opts = selectReporters(opts)
	id := r.runID()
	opts.JSONExport = ExpandRunID(opts.JSONExport, id)
	opts.HTMLExport = ExpandRunID(opts.HTMLExport, id)
	if opts.JSONExport != "" {
		res.JSONReport = r.resolve(opts.JSONExport)
	}
	if opts.HTMLExport != "" {
		res.HTMLReport = r.resolve(opts.HTMLExport)
	}

	path, cleanup, err := r.writeCollection(c, opts)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		res.Kind = KindPrepare
		res.Err = err
		return res
	}

	for _, p := range []string{opts.JSONExport, opts.HTMLExport} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(r.resolve(p)), 0755); err != nil {
			res.Kind = KindPrepare
			res.Err = fmt.Errorf("failed to create report directory: %w", err)
			return res
		}
		// A report left by an earlier run must not pass for this one.
		if err := os.Remove(r.resolve(p)); err != nil && !os.IsNotExist(err) {
			res.Kind = KindPrepare
			res.Err = fmt.Errorf("failed to remove stale report: %w", err)
			return res
		}
	}

	res.Args = BuildArgs(path, opts)
	r.exec(ctx, res, opts.Stream)
	res.Duration = time.Since(start)
	return res
}

func (r *Runner) exec(ctx context.Context, res *Result, stream io.Writer) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.Binary, res.Args...)
	cmd.Dir = r.WorkDir
	cmd.Env = os.Environ()
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if stream != nil {
		cmd.Stdout = io.MultiWriter(&stdout, stream)
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	switch {
	case err == nil:
		res.Kind = KindOK
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Kind = KindTimeout
		res.ExitCode = -1
		res.Err = fmt.Errorf("newman did not finish within %s", r.Timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.Kind = KindFailed
			res.ExitCode = exitErr.ExitCode()
			res.Err = fmt.Errorf("newman exited with status %d", res.ExitCode)
			return
		}
		res.Kind = KindLaunch
		res.ExitCode = -1
		res.Err = fmt.Errorf("failed to start %s: %w", r.Binary, err)
	}
}

// writeCollection serializes c for newman. The returned cleanup removes the
// file when it is temporary and may be non-nil even when err is set.
func (r *Runner) writeCollection(c *collection.Collection, opts Options) (string, func(), error) {
	if c == nil {
		return "", nil, errors.New("no collection to run")
	}
	data, err := collection.Marshal(c)
	if err != nil {
		return "", nil, err
	}

	if opts.CollectionPath == "" {
		f, err := os.CreateTemp("", "probe-collection-*.json")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create temporary collection: %w", err)
		}
		cleanup := func() { os.Remove(f.Name()) }
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", cleanup, fmt.Errorf("failed to write temporary collection: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", cleanup, fmt.Errorf("failed to write temporary collection: %w", err)
		}
		return f.Name(), cleanup, nil
	}

	path := r.resolve(opts.CollectionPath)
	var cleanup func()
	if opts.Temporary {
		cleanup = func() { os.Remove(path) }
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", cleanup, fmt.Errorf("failed to write collection: %w", err)
	}
	return path, cleanup, nil
}

func (r *Runner) resolve(path string) string {
	if filepath.IsAbs(path) || r.WorkDir == "" {
		return path
	}
	return filepath.Join(r.WorkDir, path)
}
