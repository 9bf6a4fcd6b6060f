package domain

import (
	"slices"
	"strconv"
	"time"
)

// ModuleID is the dense arena index of a module inside a ModuleGraph.
type ModuleID uint32

// String returns the decimal form of the id.
func (id ModuleID) String() string {
	if id == MissingModule {
		return "missing"
	}
	return strconv.FormatUint(uint64(id), 10)
}

// BuildState is the lifecycle state of a module within one compilation.
type BuildState uint8

const (
	// StatePending indicates the module is registered and waiting for work.
	StatePending BuildState = iota
	// StateFactorizing indicates requests pointing at the module are being resolved again.
	StateFactorizing
	// StateBuilding indicates the module is being parsed.
	StateBuilding
	// StateBuilt indicates the module built successfully.
	StateBuilt
	// StateFailed indicates the module failed to build.
	StateFailed
)

// String returns the name of the state.
func (s BuildState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFactorizing:
		return "factorizing"
	case StateBuilding:
		return "building"
	case StateBuilt:
		return "built"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BuildProfile holds the per-module timings of the last pass that touched it.
type BuildProfile struct {
	Resolving   time.Duration `json:"resolving"`
	Integration time.Duration `json:"integration"`
	Building    time.Duration `json:"building"`
}

// Total returns the sum of all phases.
func (p BuildProfile) Total() time.Duration {
	return p.Resolving + p.Integration + p.Building
}

// BuildResult is the output of the loader for one module.
// It is the value stored in the build cache.
type BuildResult struct {
	// Digest is the content digest of the raw source.
	Digest string `json:"digest"`
	// Code is the transformed source handed to code generation.
	Code []byte `json:"code"`
	// Requests are the outgoing dependency requests in source order.
	Requests []DependencyRequest `json:"requests"`
	// ESM reports whether the module uses module syntax.
	ESM bool `json:"esm"`
	// Size is the size of the module used for chunk splitting.
	Size int `json:"size"`
}

// Module is a uniquely identified build unit owned by a ModuleGraph.
type Module struct {
	ID       ModuleID
	Identity Identifier
	State    BuildState
	Build    *BuildResult
	Profile  BuildProfile
	Errors   []error
	// BuildCached is true when the last build was served from the build cache.
	BuildCached bool
}

// Size returns the module size, zero for modules without a build result.
func (m *Module) Size() int {
	if m.Build == nil {
		return 0
	}
	return m.Build.Size
}

// Digest returns the source digest of the last build, if any.
func (m *Module) Digest() string {
	if m.Build == nil {
		return ""
	}
	return m.Build.Digest
}

// Requests returns the outgoing requests of the last build.
func (m *Module) Requests() []DependencyRequest {
	if m.Build == nil {
		return nil
	}
	return m.Build.Requests
}

// Clone returns a copy that shares no mutable slices with m.
// Build results are immutable once published and are shared.
func (m *Module) Clone() *Module {
	c := *m
	c.Errors = slices.Clone(m.Errors)
	return &c
}
