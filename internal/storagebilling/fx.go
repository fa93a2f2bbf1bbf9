package storagebilling

import (
	"github.com/smallbiznis/vaultline/internal/storagebilling/service"
	"go.uber.org/fx"
)

var Module = fx.Module("storagebilling.service",
	fx.Provide(service.New),
)
