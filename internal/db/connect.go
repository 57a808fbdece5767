package db

import (
	"context"
	"time"

	"github.com/zanphear/planview/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func Connect(dsn string) *pgxpool.Pool {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		logger.Fatal("failed to create database pool", "error", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		logger.Fatal("failed to ping database", "error", err)
	}

	logger.Info("database connected")
	return pool
}

// ConnectRedis returns nil when addr is empty or the server does not answer,
// so callers fall back to single-instance behaviour.
func ConnectRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", "addr", addr, "error", err)
		_ = rdb.Close()
		return nil
	}

	logger.Info("redis connected", "addr", addr)
	return rdb
}
