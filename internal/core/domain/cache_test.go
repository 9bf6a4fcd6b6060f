package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.trai.ch/pack/internal/core/domain"
)

func TestCacheCounter_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		counter domain.CacheCounter
		want    string
	}{
		{"all hits", domain.CacheCounter{Hits: 4, Total: 4}, "100.0% (4/4)"},
		{"no lookups", domain.CacheCounter{}, "100.0% (0/0)"},
		{"partial", domain.CacheCounter{Hits: 1, Total: 3}, "33.3% (1/3)"},
		{"all misses", domain.CacheCounter{Hits: 0, Total: 7}, "0.0% (0/7)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.counter.String())
		})
	}
}

func TestCacheKind_Label(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "module factorize cache", domain.CacheFactorize.Label())
	assert.Equal(t, "module build cache", domain.CacheBuild.Label())
	assert.Equal(t, "module code generation cache", domain.CacheCodeGeneration.Label())
	assert.Equal(t, "codegen", domain.CacheCodeGeneration.String())
}
