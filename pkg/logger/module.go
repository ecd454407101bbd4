package logger

import "go.uber.org/fx"

// Module provides the root logger and the HTTP access logger.
var Module = fx.Module("logger",
	fx.Provide(
		NewLogger,
		NewHTTPLogger,
	),
)
