// Package app implements the application layer for pack.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/pack/internal/adapters/detector"
	"go.trai.ch/pack/internal/adapters/fs"
	"go.trai.ch/pack/internal/adapters/telemetry"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/pack/internal/engine/cache"
	"go.trai.ch/pack/internal/engine/compiler"
	"go.trai.ch/pack/internal/engine/scheduler"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	opener       ports.CacheStoreOpener
	metrics      ports.CacheMetrics
	registry     *prometheus.Registry
	schedulers   *scheduler.Factory
	generator    ports.CodeGenerator
	hasher       ports.Hasher
	emitter      ports.AssetEmitter
	watcher      ports.Watcher
	tracer       ports.Tracer
	telemetry    ports.Telemetry
	logger       ports.Logger
	out          io.Writer
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	opener ports.CacheStoreOpener,
	metrics ports.CacheMetrics,
	registry *prometheus.Registry,
	schedulers *scheduler.Factory,
	generator ports.CodeGenerator,
	hasher ports.Hasher,
	emitter ports.AssetEmitter,
	watcher ports.Watcher,
	tracer ports.Tracer,
	telemetry ports.Telemetry,
	log ports.Logger,
) *App {
	return &App{
		configLoader: loader,
		opener:       opener,
		metrics:      metrics,
		registry:     registry,
		schedulers:   schedulers,
		generator:    generator,
		hasher:       hasher,
		emitter:      emitter,
		watcher:      watcher,
		tracer:       tracer,
		telemetry:    telemetry,
		logger:       log,
		out:          os.Stdout,
	}
}

// WithOutput sets the writer the stats report is printed to.
func (a *App) WithOutput(w io.Writer) *App {
	a.out = w
	return a
}

// BuildOptions configuration for the Build and Watch methods.
type BuildOptions struct {
	// Dir is the directory pack.yaml is searched from. Empty means the working directory.
	Dir       string
	NoCache   bool
	Profile   bool
	Verbose   bool
	JSON      bool
	LogFormat string
}

// Build compiles the project once, writes its assets and prints the stats.
// A compilation with module errors returns domain.ErrCompilationFailed after
// the report is printed.
func (a *App) Build(ctx context.Context, opts BuildOptions) error {
	if err := a.configureLogger(opts.LogFormat); err != nil {
		return err
	}

	s, err := a.setup(opts)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	comp, err := s.compiler.Build(ctx)
	if err != nil {
		return zerr.Wrap(err, "build failed")
	}

	if _, err := a.emit(ctx, s.options, comp); err != nil {
		return err
	}
	if err := a.report(comp, opts); err != nil {
		return err
	}
	if comp.Err() != nil {
		return domain.ErrCompilationFailed
	}
	return nil
}

// CleanOptions configuration for the Clean method.
type CleanOptions struct {
	Dir string
	// Output also removes the emitted assets.
	Output bool
}

// Clean removes the persistent cache and manifest, and optionally the output directory.
func (a *App) Clean(_ context.Context, opts CleanOptions) error {
	dir, err := workDir(opts.Dir)
	if err != nil {
		return err
	}
	options, err := a.configLoader.Load(dir)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}

	var errs error
	remove := func(path string, name string) {
		a.logger.Info(fmt.Sprintf("removing %s...", name))
		if err := os.RemoveAll(path); err != nil {
			errs = errors.Join(errs, zerr.Wrap(err, fmt.Sprintf("failed to remove %s", name)))
			return
		}
		a.logger.Info(fmt.Sprintf("removed %s", name))
	}

	remove(filepath.Join(options.Context, domain.PackDirName), "cache and manifest")
	if opts.Output {
		remove(outputDir(*options), "output directory")
	}
	return errs
}

// session holds the per-configuration objects of one build or watch.
type session struct {
	options  domain.CompilerOptions
	compiler *compiler.Compiler
	shutdown func(context.Context) error
}

func (s *session) close(ctx context.Context) {
	_ = s.compiler.Close()
	if s.shutdown != nil {
		_ = s.shutdown(ctx)
	}
}

func (a *App) setup(opts BuildOptions) (*session, error) {
	dir, err := workDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	options, err := a.configLoader.Load(dir)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	if opts.NoCache {
		options.Cache.Enabled = false
	}
	if opts.Profile {
		options.Profile = true
	}

	store, err := a.opener.Open(options.Cache, options.Context)
	if err != nil {
		return nil, err
	}

	s := &session{options: *options}
	tracer := a.tracer
	if opts.Verbose {
		t := telemetry.NewProviderTracer(telemetry.InstrumentationName, telemetry.NewBridge(a.logger))
		tracer = t
		s.shutdown = t.Shutdown
	}

	s.compiler = compiler.New(
		*options,
		a.schedulers.New(fs.NewResolver(options.Resolve)),
		a.generator,
		a.hasher,
		cache.New(store, a.metrics, options.Cache.Enabled),
		tracer,
		a.logger,
	)
	return s, nil
}

func (a *App) emit(ctx context.Context, options domain.CompilerOptions, comp *compiler.Compilation) (int, error) {
	written, err := a.emitter.Emit(ctx, options.Context, outputDir(options), comp.Manifest(), comp.Assets)
	if err != nil {
		return 0, zerr.Wrap(err, "failed to emit assets")
	}
	return written, nil
}

type jsonLogger interface {
	SetJSON(enable bool)
}

func (a *App) configureLogger(flag string) error {
	format, err := detector.ResolveFormat(detector.DetectFormat(), flag)
	if err != nil {
		return err
	}
	if l, ok := a.logger.(jsonLogger); ok {
		l.SetJSON(format == detector.FormatJSON)
	}
	return nil
}

func workDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", zerr.Wrap(err, "failed to get working directory")
		}
		dir = wd
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", zerr.Wrap(err, "failed to resolve working directory")
	}
	return abs, nil
}

// outputDir resolves the output path against the context directory.
func outputDir(options domain.CompilerOptions) string {
	if filepath.IsAbs(options.Output.Path) {
		return options.Output.Path
	}
	return filepath.Join(options.Context, options.Output.Path)
}
