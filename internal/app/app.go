package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/taller/internal/cache"
	"github.com/Additional-Code/taller/internal/config"
	"github.com/Additional-Code/taller/internal/database"
	"github.com/Additional-Code/taller/internal/logger"
	"github.com/Additional-Code/taller/internal/messaging"
	"github.com/Additional-Code/taller/internal/observability"
	"github.com/Additional-Code/taller/internal/pricing"
	repositoryaudit "github.com/Additional-Code/taller/internal/repository/audit"
	repositorycash "github.com/Additional-Code/taller/internal/repository/cash"
	repositorykardex "github.com/Additional-Code/taller/internal/repository/kardex"
	repositoryorder "github.com/Additional-Code/taller/internal/repository/order"
	repositorypayment "github.com/Additional-Code/taller/internal/repository/payment"
	repositoryproduct "github.com/Additional-Code/taller/internal/repository/product"
	repositorystock "github.com/Additional-Code/taller/internal/repository/stock"
	grpcserver "github.com/Additional-Code/taller/internal/server/grpc"
	httpserver "github.com/Additional-Code/taller/internal/server/http"
	serviceaudit "github.com/Additional-Code/taller/internal/service/audit"
	serviceinventory "github.com/Additional-Code/taller/internal/service/inventory"
	serviceorder "github.com/Additional-Code/taller/internal/service/order"
	servicepayment "github.com/Additional-Code/taller/internal/service/payment"
	transporthttp "github.com/Additional-Code/taller/internal/transport/http"
	"github.com/Additional-Code/taller/internal/worker"
	workerorder "github.com/Additional-Code/taller/internal/worker/order"
)

// Infra provides configuration, logging and database connections only.
var Infra = fx.Options(
	config.Module,
	logger.Module,
	database.Module,
)

// Repositories binds every storage contract to its bun implementation.
var Repositories = fx.Options(
	repositoryorder.Module,
	repositorykardex.Module,
	repositorystock.Module,
	repositoryproduct.Module,
	repositorypayment.Module,
	repositorycash.Module,
	repositoryaudit.Module,
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	Infra,
	cache.Module,
	messaging.Module,
	observability.Module,
	pricing.Module,
	Repositories,
	serviceaudit.Module,
	servicepayment.Module,
	serviceorder.Module,
	serviceinventory.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
