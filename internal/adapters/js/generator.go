package js

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
)

var _ ports.CodeGenerator = (*Generator)(nil)

var placeholderPattern = regexp.MustCompile(`__PACK_DEP_(\d+)__`)

// Generator renders loader output to module and chunk code.
type Generator struct {
	hasher ports.Hasher
}

// NewGenerator creates a new Generator.
func NewGenerator(hasher ports.Hasher) *Generator {
	return &Generator{hasher: hasher}
}

// Generate fills the dependency placeholders of a module with the ids its
// requests resolved to and collects the runtime helpers the code needs.
func (g *Generator) Generate(ctx context.Context, in domain.CodegenInput) (domain.CodegenResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.CodegenResult{}, err
	}

	reqs := newRequirements(domain.RuntimeRequire)
	var code string
	switch {
	case in.State == domain.StateFailed || in.Build == nil:
		code = failedModule(in)
	default:
		code = placeholderPattern.ReplaceAllStringFunc(string(in.Build.Code), func(m string) string {
			i, err := strconv.Atoi(placeholderPattern.FindStringSubmatch(m)[1])
			if err != nil || i >= len(in.Requests) {
				return m
			}
			return dependencyExpression(in.Requests[i], reqs)
		})
		if in.Build.ESM {
			reqs.add(domain.RuntimeMakeNamespace, domain.RuntimeDefineGetters)
		} else {
			reqs.add(domain.RuntimeModule)
			code = "var exports = " + exportsVar + ";\n" + code
		}
	}

	return domain.CodegenResult{
		Code:                []byte(code),
		Hash:                g.hasher.Digest([]byte(code)),
		RuntimeRequirements: reqs.list(),
	}, nil
}

func dependencyExpression(r domain.ResolvedRequest, reqs *requirements) string {
	request := strconv.Quote(r.Request.Request)
	if r.ModuleID == "" {
		expr := fmt.Sprintf("(() => { throw new Error(%s); })()", strconv.Quote("Cannot find module '"+r.Request.Request+"'"))
		if r.Request.Type.Kind() == domain.KindAsync {
			expr = fmt.Sprintf("Promise.reject(new Error(%s))", strconv.Quote("Cannot find module '"+r.Request.Request+"'"))
		}
		return "/* " + strings.ReplaceAll(request, "*/", "* /") + " */ " + expr
	}

	id := strconv.Quote(r.ModuleID)
	switch r.Request.Type.Kind() {
	case domain.KindAsync:
		if len(r.ChunkIDs) > 0 {
			reqs.add(domain.RuntimeEnsureChunk)
			chunks := make([]string, len(r.ChunkIDs))
			for i, c := range r.ChunkIDs {
				chunks[i] = strconv.Quote(c)
			}
			return fmt.Sprintf("%s([%s]).then(%s.bind(%s, %s))",
				domain.RuntimeEnsureChunk, strings.Join(chunks, ", "),
				domain.RuntimeRequire, domain.RuntimeRequire, id)
		}
		return fmt.Sprintf("Promise.resolve().then(%s.bind(%s, %s))", domain.RuntimeRequire, domain.RuntimeRequire, id)
	case domain.KindWeak:
		reqs.add(domain.RuntimeRequireResolveWeak)
		return fmt.Sprintf("%s(%s)", domain.RuntimeRequireResolveWeak, id)
	default:
		return fmt.Sprintf("%s(%s)", domain.RuntimeRequire, id)
	}
}

func failedModule(in domain.CodegenInput) string {
	msg := "Module build failed: " + in.Identity.String()
	if len(in.Errors) > 0 {
		msg += "\n" + strings.Join(in.Errors, "\n")
	}
	return "throw new Error(" + strconv.Quote(msg) + ");"
}

// requirements is an insertion ordered set of runtime helper names.
type requirements struct {
	names []string
}

func newRequirements(names ...string) *requirements {
	r := &requirements{}
	r.add(names...)
	return r
}

func (r *requirements) add(names ...string) {
	for _, n := range names {
		if !slices.Contains(r.names, n) {
			r.names = append(r.names, n)
		}
	}
}

func (r *requirements) list() []string {
	out := slices.Clone(r.names)
	slices.Sort(out)
	return out
}
