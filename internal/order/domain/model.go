package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// PaymentStatus is the processor-side payment lifecycle of an order.
type PaymentStatus int

const (
	// StatusOutstanding is the default state before key verification.
	StatusOutstanding PaymentStatus = iota + 1
	// StatusEnabled means the checkout was verified and payment is awaited.
	StatusEnabled
	// StatusProvisionalSales is an authorized but not yet captured payment.
	StatusProvisionalSales
	// StatusActualSales is a captured payment.
	StatusActualSales
	// StatusCancel is a refunded/cancelled payment.
	StatusCancel
)

func (s PaymentStatus) String() string {
	switch s {
	case StatusOutstanding:
		return "outstanding"
	case StatusEnabled:
		return "enabled"
	case StatusProvisionalSales:
		return "provisional_sales"
	case StatusActualSales:
		return "actual_sales"
	case StatusCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Settled reports whether the payment reached a sales state.
func (s PaymentStatus) Settled() bool {
	return s == StatusProvisionalSales || s == StatusActualSales
}

// Terminal reports whether the payment can no longer be confirmed: either a
// sales state was reached or the order was cancelled.
func (s PaymentStatus) Terminal() bool {
	return s.Settled() || s == StatusCancel
}

// CanTransition reports whether moving from one payment status to another is
// allowed. Sales states are only reachable from enabled; cancel only from a
// sales state; outstanding is never a target.
func CanTransition(from, to PaymentStatus) bool {
	switch to {
	case StatusEnabled:
		return from == StatusOutstanding
	case StatusProvisionalSales, StatusActualSales:
		return from == StatusEnabled
	case StatusCancel:
		return from.Settled()
	default:
		return false
	}
}

// ItemType mirrors the commerce platform's order item kinds.
type ItemType int

const (
	ItemTypeProduct ItemType = iota + 1
	ItemTypeDeliveryFee
	ItemTypeCharge
	ItemTypeDiscount
	ItemTypeTax
	ItemTypePoint
)

// Order is the local commerce order the engine reads and transitions. It is
// owned by the surrounding order-management subsystem.
type Order struct {
	ID            int64  `json:"id" gorm:"primaryKey"`
	Email         string `json:"email" gorm:"type:text;not null"`
	FirstName     string `json:"first_name" gorm:"type:text;not null"`
	LastName      string `json:"last_name" gorm:"type:text;not null"`
	FirstNameKana string `json:"first_name_kana" gorm:"type:text;not null;default:''"`
	LastNameKana  string `json:"last_name_kana" gorm:"type:text;not null;default:''"`
	PostalCode    string `json:"postal_code" gorm:"type:text;not null;default:''"`
	Addr01        string `json:"addr01" gorm:"type:text;not null;default:''"`
	Addr02        string `json:"addr02" gorm:"type:text;not null;default:''"`
	Phone         string `json:"phone" gorm:"type:text;not null;default:''"`
	Currency      string `json:"currency" gorm:"type:text;not null"`
	PaymentTotal  int64  `json:"payment_total" gorm:"not null"`
	DeliveryFee   int64  `json:"delivery_fee" gorm:"not null;default:0"`

	CheckoutSessionID string        `json:"checkout_session_id" gorm:"type:text;not null;default:''"`
	PaymentStatus     PaymentStatus `json:"payment_status" gorm:"not null;default:1"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is a single order line. Price is the tax-inclusive unit price.
type OrderItem struct {
	ID                 int64    `json:"id" gorm:"primaryKey"`
	OrderID            int64    `json:"order_id" gorm:"not null;index"`
	ItemType           ItemType `json:"item_type" gorm:"not null"`
	ProductName        string   `json:"product_name" gorm:"type:text;not null"`
	ClassCategoryName1 string   `json:"class_category_name1" gorm:"type:text;not null;default:''"`
	ClassCategoryName2 string   `json:"class_category_name2" gorm:"type:text;not null;default:''"`
	Price              int64    `json:"price" gorm:"not null"`
	Quantity           int64    `json:"quantity" gorm:"not null;default:1"`
	Currency           string   `json:"currency" gorm:"type:text;not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// TotalPrice is the tax-inclusive line total.
func (i OrderItem) TotalPrice() int64 {
	return i.Price * i.Quantity
}

var (
	ErrNotFound           = errors.New("order_not_found")
	ErrNotAwaitingPayment = errors.New("order_not_awaiting_payment")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	SetCheckoutSessionID(ctx context.Context, db *gorm.DB, id int64, sessionID string) error
	// UpdateStatusIf transitions the payment status only when the stored
	// status still equals from. Returns false when another path won the race.
	UpdateStatusIf(ctx context.Context, db *gorm.DB, id int64, from, to PaymentStatus) (bool, error)
}
