package cart

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paygate/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.cart",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(lc fx.Lifecycle, cfg config.Config) Store {
	if cfg.Redis.Addr == "" {
		return NoOpStore{}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})
	return NewRedisStore(client)
}
