package ingest

import (
	"go.uber.org/fx"
)

// Module provides ingest domain dependencies.
var Module = fx.Module("ingest",
	fx.Provide(NewValidator),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
