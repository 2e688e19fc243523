package credit

import (
	"github.com/makestack-ai/makestack/internal/credit/repository"
	"github.com/makestack-ai/makestack/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.service",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
