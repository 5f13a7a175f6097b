package conversion

import (
	"github.com/smallbiznis/pioneer/internal/conversion/repository"
	"github.com/smallbiznis/pioneer/internal/conversion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
