package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/pack/internal/core/domain"
	"go.trai.ch/zerr"
)

func TestDiagnostic_Error(t *testing.T) {
	t.Parallel()

	d := domain.Diagnostic{
		Kind:    domain.ResolutionError,
		Module:  domain.NewIdentifier("/src/index.js"),
		Request: "./missing",
		Err:     zerr.With(domain.ErrResolution, "request", "./missing"),
	}

	assert.Contains(t, d.Error(), "ResolutionError in /src/index.js (request \"./missing\")")
	require.ErrorContains(t, d, domain.ErrResolution.Error())
}

func TestJoinDiagnostics(t *testing.T) {
	t.Parallel()

	assert.NoError(t, domain.JoinDiagnostics(nil))

	err := domain.JoinDiagnostics([]domain.Diagnostic{
		{Kind: domain.BuildError, Err: domain.ErrModuleBuild},
		{Kind: domain.ResolutionError, Err: domain.ErrResolution},
	})
	require.ErrorIs(t, err, domain.ErrModuleBuild)
	require.ErrorIs(t, err, domain.ErrResolution)
}
