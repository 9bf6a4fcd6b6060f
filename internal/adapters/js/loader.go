// Package js implements the JavaScript loader and code generator.
//
// The loader parses sources with tree-sitter, records their dependency
// requests and rewrites module syntax into calls against the bootstrap
// runtime. Every dependency expression is replaced with a placeholder that
// the generator fills in once module and chunk ids are known, so build
// results stay valid across id changes.
package js

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/pack/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Loader = (*Loader)(nil)

const (
	// exportsVar is the exports object of the module wrapper.
	exportsVar = "__pack_exports__"
	// defaultExportVar holds the value of an `export default` expression.
	defaultExportVar = "__pack_default_export__"
)

// placeholder is the token a dependency expression is replaced with.
func placeholder(i int) string {
	return "__PACK_DEP_" + strconv.Itoa(i) + "__"
}

// Loader builds JavaScript and JSON modules.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Build parses source and returns the transformed module.
func (l *Loader) Build(ctx context.Context, identity domain.Identifier, source []byte) (*domain.BuildResult, error) {
	path := identity.String()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return buildJSON(path, source)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(javascript.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, zerr.With(zerr.Wrap(err, domain.ErrModuleBuild.Error()), "module", path)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, zerr.With(zerr.Wrap(syntaxError(root), domain.ErrModuleBuild.Error()), "module", path)
	}

	t := &transform{src: source}
	t.walk(root)
	return &domain.BuildResult{
		Code:     t.output(),
		Requests: t.requests,
		ESM:      t.esm,
		Size:     len(source),
	}, nil
}

func buildJSON(path string, source []byte) (*domain.BuildResult, error) {
	if !json.Valid(source) {
		return nil, zerr.With(zerr.Wrap(zerr.New("invalid JSON"), domain.ErrModuleBuild.Error()), "module", path)
	}
	code := "module.exports = " + strings.TrimSpace(string(source)) + ";"
	return &domain.BuildResult{Code: []byte(code), Size: len(source)}, nil
}

// syntaxError reports the position of the first error or missing node.
func syntaxError(root *sitter.Node) error {
	n := firstError(root)
	if n == nil {
		return zerr.New("syntax error")
	}
	p := n.StartPoint()
	if n.IsMissing() {
		return fmt.Errorf("missing %q at line %d, column %d", n.Type(), p.Row+1, p.Column+1)
	}
	return fmt.Errorf("unexpected token at line %d, column %d", p.Row+1, p.Column+1)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && (c.HasError() || c.IsMissing()) {
			if found := firstError(c); found != nil {
				return found
			}
		}
	}
	return nil
}

// edit replaces src[start:end] with text.
type edit struct {
	start, end uint32
	text       string
}

// getter is one export of an ES module.
type getter struct {
	name string
	expr string
}

type transform struct {
	src      []byte
	requests []domain.DependencyRequest
	edits    []edit
	getters  []getter
	stars    []string
	esm      bool
}

func (t *transform) text(n *sitter.Node) string {
	return n.Content(t.src)
}

// request records a dependency on the string literal n and returns its placeholder.
func (t *transform) request(n *sitter.Node, typ domain.DependencyType) string {
	p := n.StartPoint()
	t.requests = append(t.requests, domain.DependencyRequest{
		Request: unquote(t.text(n)),
		Type:    typ,
		Loc:     domain.Location{Line: int(p.Row), Column: int(p.Column)},
		Span:    domain.Span{Start: int(n.StartByte()), End: int(n.EndByte())},
	})
	return placeholder(len(t.requests) - 1)
}

func (t *transform) replace(n *sitter.Node, text string) {
	t.edits = append(t.edits, edit{start: n.StartByte(), end: n.EndByte(), text: text})
}

func (t *transform) walk(n *sitter.Node) {
	switch n.Type() {
	case "import_statement":
		t.importStatement(n)
		return
	case "export_statement":
		if t.exportStatement(n) {
			return
		}
	case "call_expression":
		if t.callExpression(n) {
			return
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		t.walk(n.NamedChild(i))
	}
}

func (t *transform) importStatement(n *sitter.Node) {
	t.esm = true
	source := n.ChildByFieldName("source")
	if source == nil {
		return
	}
	dep := t.request(source, domain.DepEsmImport)

	var clause *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "import_clause" {
			clause = c
		}
	}
	if clause == nil {
		t.replace(n, dep+";")
		return
	}

	tmp := fmt.Sprintf("__pack_import_%d__", len(t.requests)-1)
	lines := []string{"const " + tmp + " = " + dep + ";"}
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			lines = append(lines, fmt.Sprintf("const %s = %s.__esModule ? %s.default : %s;", t.text(c), tmp, tmp, tmp))
		case "namespace_import":
			if id := lastNamed(c); id != nil {
				lines = append(lines, "const "+t.text(id)+" = "+tmp+";")
			}
		case "named_imports":
			var parts []string
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				name := t.text(spec.ChildByFieldName("name"))
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					parts = append(parts, name+": "+t.text(alias))
				} else {
					parts = append(parts, name)
				}
			}
			if len(parts) > 0 {
				lines = append(lines, "const { "+strings.Join(parts, ", ")+" } = "+tmp+";")
			}
		}
	}
	t.replace(n, strings.Join(lines, " "))
}

// exportStatement rewrites n and reports whether its children were handled.
func (t *transform) exportStatement(n *sitter.Node) bool {
	t.esm = true

	if source := n.ChildByFieldName("source"); source != nil {
		t.reexport(n, source)
		return true
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		t.edits = append(t.edits, edit{start: n.StartByte(), end: decl.StartByte()})
		if hasChild(n, "default") {
			if name := decl.ChildByFieldName("name"); name != nil {
				t.getters = append(t.getters, getter{name: "default", expr: t.text(name)})
			}
		} else {
			for _, name := range declaredNames(decl, t.src) {
				t.getters = append(t.getters, getter{name: name, expr: name})
			}
		}
		t.walk(decl)
		return true
	}

	if value := n.ChildByFieldName("value"); value != nil {
		t.edits = append(t.edits, edit{start: n.StartByte(), end: value.StartByte(), text: "const " + defaultExportVar + " = "})
		t.getters = append(t.getters, getter{name: "default", expr: defaultExportVar})
		t.walk(value)
		return true
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "export_clause" {
			continue
		}
		for _, spec := range namedOfType(c, "export_specifier") {
			local := t.text(spec.ChildByFieldName("name"))
			exported := local
			if alias := spec.ChildByFieldName("alias"); alias != nil {
				exported = unquote(t.text(alias))
			}
			t.getters = append(t.getters, getter{name: exported, expr: local})
		}
	}
	t.replace(n, "")
	return true
}

func (t *transform) reexport(n, source *sitter.Node) {
	dep := t.request(source, domain.DepEsmExport)
	tmp := fmt.Sprintf("__pack_reexport_%d__", len(t.requests)-1)
	t.replace(n, "const "+tmp+" = "+dep+";")

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "export_clause":
			for _, spec := range namedOfType(c, "export_specifier") {
				local := unquote(t.text(spec.ChildByFieldName("name")))
				exported := local
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					exported = unquote(t.text(alias))
				}
				t.getters = append(t.getters, getter{name: exported, expr: tmp + "[" + strconv.Quote(local) + "]"})
			}
			return
		case "namespace_export":
			if id := lastNamed(c); id != nil {
				t.getters = append(t.getters, getter{name: unquote(t.text(id)), expr: tmp})
			}
			return
		}
	}
	t.stars = append(t.stars, tmp)
}

// callExpression rewrites import(), require() and require.resolve() calls
// with a literal specifier and reports whether it did.
func (t *transform) callExpression(n *sitter.Node) bool {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || args.NamedChildCount() != 1 {
		return false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return false
	}

	var typ domain.DependencyType
	switch {
	case fn.Type() == "import":
		typ = domain.DepDynamicImport
	case fn.Type() == "identifier" && t.text(fn) == "require":
		typ = domain.DepCjsRequire
	case fn.Type() == "member_expression" && t.text(fn) == "require.resolve":
		typ = domain.DepRequireResolve
	default:
		return false
	}
	t.replace(n, t.request(arg, typ))
	return true
}

// output applies the edits and prepends the export definitions.
func (t *transform) output() []byte {
	slices.SortStableFunc(t.edits, func(a, b edit) int {
		return int(a.start) - int(b.start)
	})

	var b strings.Builder
	if t.esm {
		b.WriteString(domain.RuntimeMakeNamespace + "(" + exportsVar + ");\n")
		if len(t.getters) > 0 {
			b.WriteString(domain.RuntimeDefineGetters + "(" + exportsVar + ", {\n")
			for _, g := range t.getters {
				fmt.Fprintf(&b, "  %s: () => %s,\n", strconv.Quote(g.name), g.expr)
			}
			b.WriteString("});\n")
		}
	}

	var pos uint32
	for _, e := range t.edits {
		if e.start < pos {
			continue
		}
		b.Write(t.src[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.Write(t.src[pos:])

	for _, s := range t.stars {
		fmt.Fprintf(&b, "\nfor (const k in %s) if (k !== \"default\") %s(%s, { [k]: () => %s[k] });",
			s, domain.RuntimeDefineGetters, exportsVar, s)
	}
	return []byte(b.String())
}

// declaredNames lists the bindings introduced by a declaration.
func declaredNames(decl *sitter.Node, src []byte) []string {
	switch decl.Type() {
	case "lexical_declaration", "variable_declaration":
		var names []string
		for _, d := range namedOfType(decl, "variable_declarator") {
			names = append(names, patternNames(d.ChildByFieldName("name"), src)...)
		}
		return names
	default:
		if name := decl.ChildByFieldName("name"); name != nil {
			return []string{name.Content(src)}
		}
		return nil
	}
}

// patternNames collects the identifiers bound by a destructuring pattern.
func patternNames(n *sitter.Node, src []byte) []string {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{n.Content(src)}
	case "pair_pattern":
		return patternNames(n.ChildByFieldName("value"), src)
	case "assignment_pattern":
		return patternNames(n.ChildByFieldName("left"), src)
	}
	var names []string
	for i := 0; i < int(n.NamedChildCount()); i++ {
		names = append(names, patternNames(n.NamedChild(i), src)...)
	}
	return names
}

func namedOfType(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

func lastNamed(n *sitter.Node) *sitter.Node {
	if count := int(n.NamedChildCount()); count > 0 {
		return n.NamedChild(count - 1)
	}
	return nil
}

func hasChild(n *sitter.Node, typ string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == typ {
			return true
		}
	}
	return false
}

// unquote strips the quotes of a string literal.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
