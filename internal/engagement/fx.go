package engagement

import (
	"github.com/smallbiznis/pioneer/internal/engagement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("engagement.service",
	fx.Provide(service.New),
)
