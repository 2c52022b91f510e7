// Package app is the composition root: it wires configuration, storage, the
// cart engine, the catalog, and checkout into a handle an embedding
// application owns for its lifetime.
package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/grabber-app/cart/internal/catalog"
	"github.com/grabber-app/cart/internal/domain/cart"
	"github.com/grabber-app/cart/internal/domain/coupon"
	"github.com/grabber-app/cart/internal/domain/order"
	"github.com/grabber-app/cart/internal/domain/product"
	"github.com/grabber-app/cart/internal/storage/kv"
	"github.com/grabber-app/cart/internal/storage/postgres"
	"github.com/grabber-app/cart/internal/storage/redis"
)

// App bundles the wired components. Cart is the engine instance the
// presentation layer mutates and observes; Orders performs checkout against
// Catalog.
type App struct {
	Cart    *cart.Engine
	Catalog product.Repository
	Orders  *order.Service

	lg   *zap.Logger
	pool *pgxpool.Pool
	rdb  *goredis.Client
}

// New wires all dependencies per cfg and restores the persisted cart. The
// caller owns the returned App and must Close it to flush the final cart
// state.
func New(ctx context.Context, lg *zap.Logger, cfg *Config) (*App, error) {
	if lg == nil {
		lg = zctx.From(ctx)
	}

	defaults, err := cfg.CartDefaults()
	if err != nil {
		return nil, err
	}

	a := &App{lg: lg}

	var (
		store       kv.Store
		catalogRepo product.Repository
		couponRepo  coupon.Repository
		orderRepo   order.Repository
	)

	switch cfg.Storage.Driver {
	case "postgres":
		if cfg.Storage.DatabaseURL == "" {
			return nil, errors.New("database URL is required for the postgres driver")
		}
		pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		a.pool = pool

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}

		store = postgres.NewCartStore(pool)
		catalogRepo = postgres.NewProductRepository(pool)
		couponRepo = postgres.NewCouponRepository(pool)
		orderRepo = postgres.NewOrderRepository(pool)

	case "redis":
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.Storage.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, errors.Wrap(err, "ping redis")
		}
		a.rdb = rdb
		store = redis.NewCartStore(rdb, cfg.Storage.RedisTTL)

	case "", "memory":
		store = kv.NewMemory()

	default:
		return nil, errors.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// Non-postgres drivers fall back to the embedded catalog and in-memory
	// coupon and order stores.
	if catalogRepo == nil {
		catalogRepo, err = catalog.Load()
		if err != nil {
			a.closeStorage()
			return nil, err
		}
	}
	if couponRepo == nil {
		couponRepo = coupon.NewMemoryRepository()
	}
	if orderRepo == nil {
		orderRepo = order.NewMemoryRepository()
	}

	var validator coupon.Validator = coupon.NewRepoValidator(couponRepo)
	if len(cfg.Coupons.CodeFiles) > 0 {
		set, err := coupon.LoadCodeSet(ctx, coupon.CodeSetConfig{}, cfg.Coupons.CodeFiles...)
		if err != nil {
			a.closeStorage()
			return nil, errors.Wrap(err, "load coupon code set")
		}
		validator = coupon.NewPrefilterValidator(set, validator)
	}

	a.Catalog = catalogRepo
	a.Orders = order.NewService(catalogRepo, validator, orderRepo)
	a.Cart = cart.NewEngine(cart.Options{
		Defaults:  defaults,
		Store:     store,
		Key:       cfg.StorageKey,
		SaveDelay: cfg.SaveDelay,
		Logger:    lg,
	})
	a.Cart.Restore(ctx)

	lg.Info("Cart engine ready",
		zap.String("driver", cfg.Storage.Driver),
		zap.String("storage_key", cfg.StorageKey),
	)
	return a, nil
}

// Close flushes the latest cart state and releases storage connections.
func (a *App) Close(ctx context.Context) {
	if a.Cart != nil {
		a.Cart.Close(ctx)
	}
	a.closeStorage()
}

func (a *App) closeStorage() {
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.lg.Warn("Close redis client", zap.Error(err))
		}
		a.rdb = nil
	}
}
