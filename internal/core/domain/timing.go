package domain

import "time"

// Phase names reported by a compilation, in pipeline order.
const (
	PhaseModuleAdd           = "module add task"
	PhaseProcessDependencies = "module process dependencies task"
	PhaseFactorize           = "module factorize task"
	PhaseBuild               = "module build task"
	PhaseFinishModules       = "finish modules"
	PhaseCreateChunks        = "create chunks"
	PhaseModuleIDs           = "module ids"
	PhaseChunkIDs            = "chunk ids"
	PhaseCodeGeneration      = "code generation"
	PhaseRuntimeRequirements = "runtime requirements"
	PhaseHashing             = "hashing"
)

// Phases lists every phase in reporting order.
var Phases = []string{
	PhaseModuleAdd,
	PhaseProcessDependencies,
	PhaseFactorize,
	PhaseBuild,
	PhaseFinishModules,
	PhaseCreateChunks,
	PhaseModuleIDs,
	PhaseChunkIDs,
	PhaseCodeGeneration,
	PhaseRuntimeRequirements,
	PhaseHashing,
}

// Timings accumulates durations per phase name.
type Timings map[string]time.Duration

// Add accumulates d under name.
func (t Timings) Add(name string, d time.Duration) {
	t[name] += d
}

// Merge adds every duration of other into t.
func (t Timings) Merge(other Timings) {
	for name, d := range other {
		t[name] += d
	}
}
