package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hospitalbooking/internal/config"
	"github.com/hospitalbooking/internal/logger"
	"github.com/hospitalbooking/internal/storage"
	"github.com/hospitalbooking/internal/storage/devstore"
	"github.com/hospitalbooking/internal/storage/memory"
)

const connectMaxWait = 60 * time.Second

// OpenStore создаёт хранилище сессий по cfg.Store. cleanup освобождает ресурсы бэкенда
// и безопасен при любом исходе; вызывать его нужно и после ошибки.
func OpenStore(ctx context.Context, cfg *config.Config, logPrefix string) (storage.Store, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Info("session store: in-memory (sessions are lost on restart)")
		st := memory.New()
		return st, func() { _ = st.Close() }, nil

	case config.StorePostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.DBMaxConnections())
		pool, err := ConnectDBWithRetry(ctx, poolCfg, connectMaxWait, logPrefix)
		if err != nil {
			return nil, func() {}, err
		}
		if err := Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, func() {}, err
		}
		logger.Info("session store: postgres")
		st := devstore.New(pool)
		return st, func() {
			_ = st.Close()
			pool.Close()
		}, nil

	default:
		client, err := ConnectRedisWithRetry(ctx, cfg.Redis.URL, connectMaxWait, logPrefix)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("session store: redis")
		return client, func() {
			if err := client.Close(); err != nil {
				logger.Errorf("redis close: %v", err)
			}
		}, nil
	}
}
