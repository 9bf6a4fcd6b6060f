package app

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.trai.ch/pack/internal/adapters/watcher"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/engine/compiler"
	"go.trai.ch/zerr"
)

const metricsShutdownTimeout = 5 * time.Second

// WatchOptions configuration for the Watch method.
type WatchOptions struct {
	BuildOptions
	// MetricsAddr serves the cache metrics on /metrics when set.
	MetricsAddr string
	// Debounce is the window file events are coalesced in. Zero means
	// watcher.DefaultDebounceWindow.
	Debounce time.Duration
}

// Watch builds the project, then rebuilds it whenever a file below the
// context directory changes, until ctx is cancelled.
func (a *App) Watch(ctx context.Context, opts WatchOptions) error {
	if err := a.configureLogger(opts.LogFormat); err != nil {
		return err
	}

	s, err := a.setup(opts.BuildOptions)
	if err != nil {
		return err
	}
	defer s.close(context.WithoutCancel(ctx))

	if opts.MetricsAddr != "" {
		stop := a.serveMetrics(opts.MetricsAddr)
		defer stop()
	}

	var mu sync.Mutex
	done := func(comp *compiler.Compilation, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case errors.Is(err, domain.ErrCompilationAborted):
			return
		case err != nil:
			a.logger.Error(err)
			return
		}
		written, err := a.emit(ctx, s.options, comp)
		if err != nil {
			a.logger.Error(err)
			return
		}
		a.logRebuild(comp, written)
	}

	done(s.compiler.Build(ctx))

	outDir := outputDir(s.options)
	packDir := filepath.Join(s.options.Context, domain.PackDirName)
	skip := func(path string) bool {
		return path == outDir || path == packDir
	}
	if err := a.watcher.Start(ctx, s.options.Context, skip); err != nil {
		return zerr.Wrap(err, domain.ErrWatcherFailed.Error())
	}
	defer func() { _ = a.watcher.Stop() }()
	a.logger.Info("watching " + s.options.Context)

	window := opts.Debounce
	if window == 0 {
		window = watcher.DefaultDebounceWindow
	}
	debouncer := watcher.NewDebouncer(window, func(paths []string) {
		changed, removed := watcher.Classify(paths)
		if len(changed) == 0 && len(removed) == 0 {
			return
		}
		s.compiler.RebuildAsync(ctx, changed, removed, done)
	})

	for event := range a.watcher.Events() {
		if ctx.Err() != nil {
			break
		}
		debouncer.Add(event.Path)
	}
	return nil
}

// serveMetrics exposes the app registry on addr and returns a function that
// shuts the server down.
func (a *App) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(zerr.With(zerr.Wrap(err, "metrics server failed"), "addr", addr))
		}
	}()
	a.logger.Info("serving metrics on " + addr + "/metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
