package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/pack/internal/core/domain"
)

func TestDependencyType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		typ  domain.DependencyType
		name string
		kind domain.DependencyKind
	}{
		{domain.DepEntry, "entry", domain.KindSync},
		{domain.DepEsmImport, "esm import", domain.KindSync},
		{domain.DepEsmExport, "esm export", domain.KindSync},
		{domain.DepDynamicImport, "dynamic import", domain.KindAsync},
		{domain.DepCjsRequire, "cjs require", domain.KindSync},
		{domain.DepRequireResolve, "require.resolve", domain.KindWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.name, tt.typ.String())
			assert.Equal(t, tt.kind, tt.typ.Kind())
		})
	}

	assert.Equal(t, "unknown(42)", domain.DependencyType(42).String())
}

func TestDependencyRequest_Key(t *testing.T) {
	t.Parallel()

	imp := domain.DependencyRequest{Request: "./a", Type: domain.DepEsmImport}
	req := domain.DependencyRequest{Request: "./a", Type: domain.DepCjsRequire}
	dyn := domain.DependencyRequest{Request: "./a", Type: domain.DepDynamicImport}

	assert.Equal(t, imp.Key(), req.Key(), "sync requests for the same specifier collapse")
	assert.NotEqual(t, imp.Key(), dyn.Key(), "async requests stay distinct from sync ones")
}
