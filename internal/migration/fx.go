package migration

import (
	"github.com/smallbiznis/paygate/internal/config"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	reconciledomain "github.com/smallbiznis/paygate/internal/reconcile/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned migrations target postgres; sqlite is for local
		// development, where the gorm schema is authoritative.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&orderdomain.Order{},
				&orderdomain.OrderItem{},
				&reconciledomain.EventRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
