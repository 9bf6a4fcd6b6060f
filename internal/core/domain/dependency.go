package domain

import "strconv"

// DependencyType describes the syntax that produced a dependency request.
type DependencyType uint8

const (
	// DepEntry is the dependency of an entrypoint on its root module.
	DepEntry DependencyType = iota
	// DepEsmImport is a static `import ... from "x"` statement.
	DepEsmImport
	// DepEsmExport is a re-export `export ... from "x"` statement.
	DepEsmExport
	// DepDynamicImport is an `import("x")` expression.
	DepDynamicImport
	// DepCjsRequire is a `require("x")` call.
	DepCjsRequire
	// DepRequireResolve is a `require.resolve("x")` call.
	DepRequireResolve
)

var dependencyTypeNames = [...]string{
	DepEntry:          "entry",
	DepEsmImport:      "esm import",
	DepEsmExport:      "esm export",
	DepDynamicImport:  "dynamic import",
	DepCjsRequire:     "cjs require",
	DepRequireResolve: "require.resolve",
}

// String returns the human readable name of the dependency type.
func (t DependencyType) String() string {
	if int(t) < len(dependencyTypeNames) {
		return dependencyTypeNames[t]
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Kind classifies how the dependency affects chunk placement.
func (t DependencyType) Kind() DependencyKind {
	switch t {
	case DepDynamicImport:
		return KindAsync
	case DepRequireResolve:
		return KindWeak
	default:
		return KindSync
	}
}

// DependencyKind is the edge kind of a dependency.
type DependencyKind uint8

const (
	// KindSync edges pull the target into the same chunk.
	KindSync DependencyKind = iota
	// KindAsync edges start a new chunk group.
	KindAsync
	// KindWeak edges reference the target without loading it.
	KindWeak
)

// String returns the name of the dependency kind.
func (k DependencyKind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	case KindWeak:
		return "weak"
	default:
		return "unknown"
	}
}

// Location is a zero based line/column position in a source file.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Span is a byte range in a source file.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// DependencyRequest is an outgoing request found while building a module.
type DependencyRequest struct {
	// Request is the raw specifier, e.g. "./a" or "lodash".
	Request string `json:"request"`
	// Type is the syntax that produced the request.
	Type DependencyType `json:"type"`
	// Loc is where the request appears in the source.
	Loc Location `json:"loc"`
	// Span covers the quoted specifier literal in the source.
	Span Span `json:"span"`
}

// Key identifies requests that resolve identically from the same module.
// Two requests with the same specifier and kind are deduplicated.
func (r DependencyRequest) Key() string {
	return r.Request + "\x00" + r.Type.Kind().String()
}

// MissingModule is the sentinel target of an edge whose request failed to resolve.
const MissingModule ModuleID = ^ModuleID(0)

// DependencyEdge is a directed edge from a module to a required module.
type DependencyEdge struct {
	From    ModuleID
	To      ModuleID
	Request string
	Type    DependencyType
	// Err is set when To is MissingModule.
	Err error
}

// Missing reports whether the edge points to the missing sentinel.
func (e DependencyEdge) Missing() bool {
	return e.To == MissingModule
}

// Kind returns the edge kind derived from its dependency type.
func (e DependencyEdge) Kind() DependencyKind {
	return e.Type.Kind()
}
