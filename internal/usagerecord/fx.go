package usagerecord

import (
	"github.com/smallbiznis/meterguard/internal/usagerecord/repository"
	"github.com/smallbiznis/meterguard/internal/usagerecord/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usagerecord.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
