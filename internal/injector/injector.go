//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/hitsense/internal/config"
)

func InitializeDaemon(s *config.Settings) (*Daemon, error) {
	wire.Build(ProviderSet)
	return nil, nil
}
