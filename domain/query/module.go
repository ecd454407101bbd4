package query

import (
	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/internal/config"
)

// Module provides query domain dependencies.
var Module = fx.Module("query",
	fx.Provide(func(cfg *config.Config) (*ProfileSet, error) {
		return LoadProfiles(cfg.Query.ProfilesPath)
	}),
	fx.Provide(func(cfg *config.Config) *Cache {
		return NewCache(cfg.Query.CacheSize)
	}),
	fx.Provide(NewService),
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	// Cached rankings die with the snapshot they were computed against.
	fx.Invoke(func(holder *snapshot.Holder, cache *Cache) {
		holder.OnSwap(func(*snapshot.Snapshot) { cache.Purge() })
	}),
)
