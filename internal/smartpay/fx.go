package smartpay

import (
	"github.com/smallbiznis/paygate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("smartpay",
	fx.Provide(NewClientFromConfig),
	fx.Provide(NewSessionBuilder),
)

func NewClientFromConfig(cfg config.Config, log *zap.Logger) *Client {
	return NewClient(Config{
		APIBase:   cfg.Smartpay.APIBase,
		SecretKey: cfg.Smartpay.SecretKey,
		Timeout:   cfg.Smartpay.Timeout,
	}, log)
}
