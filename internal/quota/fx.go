package quota

import (
	"github.com/smallbiznis/meterguard/internal/quota/repository"
	"github.com/smallbiznis/meterguard/internal/quota/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quota.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
