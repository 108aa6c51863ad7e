package reconcile

import (
	"github.com/smallbiznis/paygate/internal/reconcile/hooks"
	"github.com/smallbiznis/paygate/internal/reconcile/repository"
	"github.com/smallbiznis/paygate/internal/reconcile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reconcile",
	fx.Provide(repository.Provide),
	fx.Provide(hooks.New),
	fx.Provide(service.NewService),
)
