package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/config"
	"github.com/aretw0/weft/pkg/adapters/badger"
	"github.com/aretw0/weft/pkg/adapters/memory"
	"github.com/aretw0/weft/pkg/adapters/pathtree"
	"github.com/aretw0/weft/pkg/adapters/redis"
	"github.com/aretw0/weft/pkg/ports"
	"github.com/aretw0/weft/pkg/region"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// openSpace builds the tuple space selected by cfg. With redis locking
// enabled it also returns a region manager that shares the redis client.
func openSpace(cfg config.Config, logger *slog.Logger) (ports.TupleSpace, *region.Manager, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewSpace(), nil, nil

	case config.BackendPathTree:
		return pathtree.NewSpace(), nil, nil

	case config.BackendBadger:
		bcfg := badger.Config{
			Path:     cfg.Badger.Path,
			InMemory: cfg.Badger.Path == "",
			Prefix:   cfg.Badger.Prefix,
			Logger:   logger.With("component", "badger"),
		}
		space, err := badger.Open(bcfg)
		if err != nil {
			return nil, nil, err
		}
		return space, nil, nil

	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		space := redis.NewFromClient(client, redis.WithPrefix(cfg.Redis.Prefix))
		if !cfg.Redis.Locking {
			return space, nil, nil
		}
		regions := region.NewManager(
			region.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)),
			region.WithLogger(logger),
		)
		return space, regions, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// createEngine initializes a weft engine with standard CLI conventions.
// reg may be nil to run without metrics.
func createEngine(cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*weft.Engine, error) {
	space, regions, err := openSpace(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("error opening %s space: %w", cfg.Backend, err)
	}

	channels, err := cfg.ProcessChannels()
	if err != nil {
		space.Close()
		return nil, err
	}

	opts := []weft.Option{
		weft.WithSpace(space),
		weft.WithChannels(channels...),
		weft.WithWorkers(cfg.Workers),
		weft.WithLogger(logger),
	}
	if sc, ok := cfg.ScopeName(); ok {
		opts = append(opts, weft.WithScope(sc.NS, sc.Label))
	}
	if reg != nil {
		opts = append(opts, weft.WithRegistry(reg))
	}
	if regions != nil {
		opts = append(opts, weft.WithRegions(regions))
	}

	engine, err := weft.New(opts...)
	if err != nil {
		space.Close()
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}
