package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/repository"
)

// Module provides the order repository to Fx.
var Module = fx.Provide(
	fx.Annotate(NewRepository, fx.As(new(repository.OrderRepository))),
)
