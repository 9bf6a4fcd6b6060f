package app

import (
	"encoding/json"
	"fmt"
	"io"

	"go.trai.ch/pack/internal/engine/compiler"
	"go.trai.ch/pack/internal/engine/stats"
	"go.trai.ch/zerr"
)

// statsOptions selects the report sections for the build flags.
func statsOptions(opts BuildOptions) stats.Options {
	o := stats.Normal()
	if opts.Verbose {
		o = stats.Verbose()
	}
	if opts.Profile {
		o.Profile = true
	}
	return o
}

// moduleSummary is implemented by telemetry that can list the state of every
// module it recorded.
type moduleSummary interface {
	WriteSummary(w io.Writer, root string) error
}

func (a *App) report(comp *compiler.Compilation, opts BuildOptions) error {
	s := stats.New(comp)
	if !opts.JSON {
		if err := s.Write(a.out, statsOptions(opts)); err != nil {
			return err
		}
		if m, ok := a.telemetry.(moduleSummary); ok && opts.Verbose {
			if _, err := fmt.Fprintln(a.out); err != nil {
				return err
			}
			return m.WriteSummary(a.out, comp.Options.Context)
		}
		return nil
	}
	data, err := json.MarshalIndent(s.ToJSON(statsOptions(opts)), "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to encode stats")
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

// logRebuild reports one watch pass through the logger.
func (a *App) logRebuild(comp *compiler.Compilation, written int) {
	a.logger.Info(fmt.Sprintf("%s in %d ms, %d modules built, %d assets written",
		stats.New(comp).Summary(), comp.Duration.Milliseconds(), len(comp.Built), written))
	if err := comp.Err(); err != nil {
		a.logger.Error(err)
	}
	for _, w := range comp.Warnings() {
		a.logger.Warn(w.Error())
	}
}
