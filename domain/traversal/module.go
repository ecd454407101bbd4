package traversal

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/internal/config"
)

// Module provides traversal domain dependencies.
var Module = fx.Module("traversal",
	fx.Provide(func(cfg *config.Config, log *slog.Logger) (*Synthesizer, error) {
		return NewSynthesizer(cfg.Query.AnswerTemplatePath, log)
	}),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
