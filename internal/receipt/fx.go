package receipt

import (
	"github.com/smallbiznis/schoolbill/internal/receipt/render"
	"github.com/smallbiznis/schoolbill/internal/receipt/repository"
	"github.com/smallbiznis/schoolbill/internal/receipt/service"
	"go.uber.org/fx"
)

var Module = fx.Module("receipt",
	fx.Provide(repository.Provide),
	fx.Provide(render.New),
	fx.Provide(service.New),
)
