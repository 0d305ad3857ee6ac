package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/pathdag/pathdag/pkg/config"
	"github.com/pathdag/pathdag/pkg/pathdag"
	"github.com/pathdag/pathdag/pkg/pathdag/badgerstore"
	"github.com/pathdag/pathdag/pkg/pathdag/memory"
	"github.com/pathdag/pathdag/pkg/pathdag/mongostore"
	"github.com/pathdag/pathdag/pkg/pathdag/redisalloc"
)

// openStore opens the backend selected by cfg. When a redis address is
// configured, path ids come from the shared redis counter so several
// processes can write into one id space.
func openStore(ctx context.Context, cfg config.Config, logger *log.Logger) (pathdag.Store, error) {
	alloc, err := openAllocator(ctx, cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Kind {
	case config.StoreMemory:
		var opts []memory.Option
		if alloc != nil {
			opts = append(opts, memory.WithAllocator(alloc))
		}
		return memory.New(opts...), nil

	case config.StoreBadger:
		bcfg := badgerstore.Config{
			Path:       cfg.Store.Path,
			SyncWrites: cfg.Store.SyncWrites,
			Logger:     logger,
		}
		var opts []badgerstore.Option
		if alloc != nil {
			opts = append(opts, badgerstore.WithAllocator(alloc))
		}
		return badgerstore.Open(bcfg, opts...)

	case config.StoreMongo:
		mcfg := mongostore.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		}
		var opts []mongostore.Option
		if alloc != nil {
			opts = append(opts, mongostore.WithAllocator(alloc))
		}
		return mongostore.Open(ctx, mcfg, opts...)

	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

func openAllocator(ctx context.Context, cfg config.Config) (pathdag.PathAllocator, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil
	}
	alloc, err := redisalloc.New(ctx, redisalloc.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Key:      cfg.Redis.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("open redis allocator: %w", err)
	}
	return alloc, nil
}
