package cart

import "context"

// Store is the shopping-session collaborator invoked after a confirmed
// payment: the active cart is cleared and the completed order id is recorded
// on the shopping session.
type Store interface {
	Clear(ctx context.Context, orderID int64) error
	RecordOrder(ctx context.Context, orderID int64) error
}

type NoOpStore struct{}

func (NoOpStore) Clear(ctx context.Context, orderID int64) error {
	return nil
}

func (NoOpStore) RecordOrder(ctx context.Context, orderID int64) error {
	return nil
}
