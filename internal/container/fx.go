package container

import (
	"github.com/smallbiznis/vaultline/internal/container/repository"
	"github.com/smallbiznis/vaultline/internal/container/service"
	"go.uber.org/fx"
)

var Module = fx.Module("container.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
