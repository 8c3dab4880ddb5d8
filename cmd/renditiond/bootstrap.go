package main

import (
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"rendition/internal/config"
)

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func buildLogPaths(cfg *config.Config) []string {
	if cfg == nil || cfg.Paths.LogDir == "" {
		return []string{"stderr"}
	}
	return []string{"stderr", filepath.Join(cfg.Paths.LogDir, "renditiond.log")}
}
