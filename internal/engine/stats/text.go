package stats

import (
	"fmt"
	"io"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
)

// loggerName prefixes the log section of the text report.
const loggerName = "pack.Compilation"

// String renders the text report.
func (s *Stats) String(opts Options) string {
	var b strings.Builder
	_ = s.Write(&b, opts)
	return strings.TrimRight(b.String(), "\n")
}

// Write renders the text report to w.
func (s *Stats) Write(w io.Writer, opts Options) error {
	r := &textWriter{w: w}
	data := s.ToJSON(opts)

	if opts.Assets {
		s.writeAssets(r, data, opts)
	}
	if opts.Entrypoints && s.comp.Chunks != nil {
		for _, g := range s.comp.Chunks.Entrypoints() {
			e := data.Entrypoints[g.Name]
			r.linef("Entrypoint %s %d bytes = %s", e.Name, e.AssetsSize, strings.Join(e.Assets, " "))
		}
	}
	if opts.Chunks {
		s.writeChunks(r, data, opts)
	}
	if opts.Modules {
		for _, m := range data.Modules {
			s.writeModule(r, m, opts, "")
		}
		if data.FilteredModules > 0 {
			r.linef("+ %d modules", data.FilteredModules)
		}
	}
	if opts.Errors {
		writeDiagnostics(r, "ERROR", data.Errors)
		writeDiagnostics(r, "WARNING", data.Warnings)
	}
	if opts.Logging {
		s.writeLogging(r, data)
	}
	if opts.Hash {
		r.gap()
		r.linef("pack compiled %s (%s)", summary(data), s.comp.Hash)
	}
	return r.err
}

func (s *Stats) writeAssets(r *textWriter, data JSON, opts Options) {
	for _, a := range data.Assets {
		line := fmt.Sprintf("asset %s %d bytes", a.Name, a.Size)
		if opts.IDs {
			line += " {" + strings.Join(a.Chunks, "}, {") + "}"
		}
		if len(a.ChunkNames) > 0 {
			line += " (name: " + strings.Join(a.ChunkNames, ", ") + ")"
		}
		r.line(line)
	}
}

func (s *Stats) writeChunks(r *textWriter, data JSON, opts Options) {
	byID := make(map[string]ModuleJSON)
	if opts.Modules {
		for _, m := range data.Modules {
			byID[m.ID] = m
		}
	}
	for _, c := range data.Chunks {
		line := fmt.Sprintf("chunk {%s} %s", c.ID.String(), strings.Join(c.Files, ", "))
		if len(c.Names) > 0 {
			line += " (" + strings.Join(c.Names, ", ") + ")"
		}
		line += fmt.Sprintf(" %d bytes", c.Size)
		switch {
		case c.Entry:
			line += " [entry]"
		case c.Initial:
			line += " [initial]"
		}
		r.line(line)
		for _, id := range c.Modules {
			if m, ok := byID[id]; ok {
				s.writeModule(r, m, Options{IDs: opts.IDs}, "  ")
			}
		}
	}
}

func (s *Stats) writeModule(r *textWriter, m ModuleJSON, opts Options, indent string) {
	line := indent + m.Name
	if opts.IDs {
		line += " [" + m.ID + "]"
		if len(m.Chunks) > 0 {
			line += " {" + strings.Join(m.Chunks, "}, {") + "}"
		}
	}
	if m.Failed {
		line += " [failed]"
	}
	r.line(line)

	if opts.Reasons {
		for _, reason := range m.Reasons {
			rl := indent + "  " + reason.Type
			if reason.Module != "" {
				rl += " " + reason.Module
				if opts.IDs {
					rl += " [" + reason.ModuleID + "]"
				}
			}
			r.line(rl + " " + reason.Request)
		}
	}
	if opts.Profile && m.Profile != nil {
		r.linef("%s  %d ms (resolving: %d ms, integration: %d ms, building: %d ms)",
			indent, m.Profile.Total, m.Profile.Resolving, m.Profile.Integration, m.Profile.Building)
	}
}

func writeDiagnostics(r *textWriter, label string, diags []DiagnosticJSON) {
	for _, d := range diags {
		r.gap()
		head := label + " in "
		if d.Module != "" {
			head += d.Module + " "
		}
		r.line(head + d.Kind)
		if d.Request != "" {
			r.linef("  request: %s", d.Request)
		}
		for _, l := range strings.Split(d.Message, "\n") {
			r.line("  " + l)
		}
	}
}

func (s *Stats) writeLogging(r *textWriter, data JSON) {
	r.gap()
	r.line("LOG from " + loggerName)
	for _, t := range data.Timings {
		r.linef("<t> %s: %d ms", t.Phase, t.Duration)
	}
	if data.Cache == nil {
		return
	}
	for _, kind := range domain.CacheKinds {
		if c, ok := data.Cache[kind.String()]; ok {
			r.linef("<i> %s: %s", kind.Label(), c.String())
		}
	}
}

// Summary renders the one line outcome of the compilation.
func (s *Stats) Summary() string {
	return fmt.Sprintf("pack compiled %s (%s)", summary(s.ToJSON(Options{Errors: true})), s.comp.Hash)
}

func summary(data JSON) string {
	errs, warns := len(data.Errors), len(data.Warnings)
	switch {
	case errs > 0 && warns > 0:
		return fmt.Sprintf("with %s and %s", plural(errs, "error"), plural(warns, "warning"))
	case errs > 0:
		return "with " + plural(errs, "error")
	case warns > 0:
		return "with " + plural(warns, "warning")
	default:
		return "successfully"
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// textWriter writes lines and keeps the first error.
type textWriter struct {
	w       io.Writer
	err     error
	written bool
}

func (t *textWriter) line(s string) {
	if t.err != nil {
		return
	}
	_, t.err = io.WriteString(t.w, s+"\n")
	t.written = true
}

func (t *textWriter) linef(format string, args ...any) {
	t.line(fmt.Sprintf(format, args...))
}

// gap separates sections with an empty line once something was written.
func (t *textWriter) gap() {
	if t.written {
		t.line("")
	}
}
