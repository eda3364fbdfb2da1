package repository

import (
	"fmt"

	"github.com/amirphl/sms-receiver/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds the store client from configuration. It returns nil, nil
// when redis is disabled; connectivity is not checked here.
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var opt *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opt = parsed
	} else {
		opt = &redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	opt.DialTimeout = cfg.DialTimeout
	opt.ReadTimeout = cfg.OpTimeout
	opt.WriteTimeout = cfg.OpTimeout
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}

	return redis.NewClient(opt), nil
}
