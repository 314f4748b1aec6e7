package ledger

import (
	"github.com/smallbiznis/schoolbill/internal/ledger/repository"
	"github.com/smallbiznis/schoolbill/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
