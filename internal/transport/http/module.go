package http

import (
	"go.uber.org/fx"

	inventorytransport "github.com/Additional-Code/taller/internal/transport/http/inventory"
	ordertransport "github.com/Additional-Code/taller/internal/transport/http/order"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	inventorytransport.Module,
)
