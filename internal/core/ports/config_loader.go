package ports

import "go.trai.ch/pack/internal/core/domain"

// ConfigLoader defines the interface for loading the compiler configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds pack.yaml from cwd upwards and returns the compiler options.
	Load(cwd string) (*domain.CompilerOptions, error)
}
