package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/paygate/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		Limit(1).
		Find(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) SetCheckoutSessionID(ctx context.Context, db *gorm.DB, id int64, sessionID string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE orders SET checkout_session_id = ?, updated_at = ? WHERE id = ?`,
		sessionID,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) UpdateStatusIf(ctx context.Context, db *gorm.DB, id int64, from, to domain.PaymentStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE orders SET payment_status = ?, updated_at = ? WHERE id = ? AND payment_status = ?`,
		to,
		time.Now().UTC(),
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
