package main

import (
	"context"
	"fmt"

	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/config"
	"github.com/cory-johannsen/diceodds/internal/dice"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/cory-johannsen/diceodds/internal/odds"
	"github.com/cory-johannsen/diceodds/internal/scripting"
	"github.com/cory-johannsen/diceodds/internal/storage/postgres"
	"github.com/cory-johannsen/diceodds/internal/storage/redis"
)

// Seed selects the randomness source: 0 uses crypto/rand, anything else a
// reproducible PCG stream.
type Seed uint64

// App is the fully wired command.
type App struct {
	Roller  *dice.Roller
	Odds    *odds.Service
	Scripts *scripting.Manager
}

var providerSet = wire.NewSet(
	provideSource,
	provideDiceOptions,
	provideRoller,
	provideStore,
	provideService,
	provideScripts,
	wire.Struct(new(App), "*"),
)

func provideSource(seed Seed) dice.Source {
	if seed == 0 {
		return dice.NewCryptoSource()
	}
	return dice.NewSeededSource(uint64(seed))
}

func provideDiceOptions(cfg config.Config) []dice.Option {
	return odds.DiceOptions(cfg.Probability)
}

func provideRoller(src dice.Source, logger *zap.Logger, opts []dice.Option) *dice.Roller {
	return dice.NewLoggedRoller(src, logger, opts...)
}

// provideStore connects the configured cache backend. The cleanup closes
// whatever connection was opened.
func provideStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (odds.Store, func(), error) {
	limits := probability.WithLimits(probability.Limits{
		MaxOutcomes: cfg.Probability.MaxOutcomes,
		MaxKeepDice: cfg.Probability.MaxKeepDice,
	})
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		client := redis.NewClient(cfg.Redis)
		cache, err := redis.NewDistributionCache(ctx, &redis.Config{
			RedisClient: client,
			TTL:         cfg.Redis.TTL,
			Options:     []probability.Option{limits},
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		logger.Info("distribution cache", zap.String("backend", "redis"), zap.String("addr", cfg.Redis.Addr))
		return cache, func() { _ = client.Close() }, nil
	case config.CachePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("distribution cache", zap.String("backend", "postgres"), zap.String("host", cfg.Database.Host))
		return postgres.NewDistributionRepository(pool.DB(), limits), pool.Close, nil
	case config.CacheNone, "":
		return odds.NopStore{}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

func provideService(store odds.Store, logger *zap.Logger, cfg config.Config) *odds.Service {
	return odds.NewService(store, logger, cfg.Probability)
}

func provideScripts(roller *dice.Roller, svc *odds.Service, logger *zap.Logger, cfg config.Config) (*scripting.Manager, func()) {
	mgr := scripting.NewManager(roller, svc, logger, cfg.Scripting.InstructionLimit)
	return mgr, mgr.Close
}
