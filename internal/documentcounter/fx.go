package documentcounter

import (
	"github.com/smallbiznis/schoolbill/internal/documentcounter/repository"
	"github.com/smallbiznis/schoolbill/internal/documentcounter/service"
	"go.uber.org/fx"
)

var Module = fx.Module("documentcounter",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
