package smartpay

import (
	"sort"
	"strconv"
	"strings"

	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
	"go.uber.org/zap"
)

// SessionBuilder transforms a local order into a checkout-session request.
type SessionBuilder struct {
	log *zap.Logger
}

func NewSessionBuilder(log *zap.Logger) *SessionBuilder {
	return &SessionBuilder{log: log.Named("smartpay.builder")}
}

// Build produces the checkout-session payload for an order. Line items are
// mapped by kind; the delivery fee is carried on shippingInfo instead of the
// item list. Unhandled item kinds are logged and dropped.
func (b *SessionBuilder) Build(o *orderdomain.Order, successURL, cancelURL string) CheckoutSessionRequest {
	items := make([]orderdomain.OrderItem, len(o.Items))
	copy(items, o.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ItemType < items[j].ItemType
	})

	lineItems := make([]Item, 0, len(items))
	for _, item := range items {
		switch item.ItemType {
		case orderdomain.ItemTypeDiscount, orderdomain.ItemTypePoint:
			lineItems = append(lineItems, Item{
				Kind:     ItemKindDiscount,
				Name:     item.ProductName,
				Amount:   -item.TotalPrice(),
				Currency: item.Currency,
			})
		case orderdomain.ItemTypeTax:
			lineItems = append(lineItems, Item{
				Kind:     ItemKindTax,
				Name:     "Tax",
				Amount:   item.TotalPrice(),
				Currency: item.Currency,
			})
		case orderdomain.ItemTypeDeliveryFee:
			// Carried on shippingInfo below.
		case orderdomain.ItemTypeProduct, orderdomain.ItemTypeCharge:
			lineItems = append(lineItems, Item{
				Name:               item.ProductName,
				Amount:             item.TotalPrice(),
				Currency:           item.Currency,
				Quantity:           item.Quantity,
				ProductDescription: item.ClassCategoryName1 + item.ClassCategoryName2,
			})
		default:
			b.log.Warn("unhandled order item type",
				zap.Int64("order_id", o.ID),
				zap.Int("item_type", int(item.ItemType)),
				zap.String("product_name", item.ProductName),
			)
		}
	}

	shipping := ShippingInfo{
		Address: Address{
			Line1:      o.Addr01,
			Line2:      o.Addr02,
			Locality:   "locality",
			PostalCode: o.PostalCode,
			Country:    "JP",
		},
	}
	if o.DeliveryFee > 0 {
		shipping.FeeAmount = o.DeliveryFee
		shipping.FeeCurrency = o.Currency
	}

	return CheckoutSessionRequest{
		CustomerInfo: CustomerInfo{
			EmailAddress:  o.Email,
			FirstName:     o.FirstName,
			LastName:      o.LastName,
			FirstNameKana: o.FirstNameKana,
			LastNameKana:  o.LastNameKana,
			PhoneNumber:   internationalPhone(o.Phone),
		},
		Amount:       o.PaymentTotal,
		Currency:     o.Currency,
		Items:        lineItems,
		ShippingInfo: shipping,
		Reference:    strconv.FormatInt(o.ID, 10),
		SuccessURL:   successURL,
		CancelURL:    cancelURL,
	}
}

// internationalPhone rewrites a leading local "0" to the +81 country prefix.
func internationalPhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if strings.HasPrefix(phone, "0") {
		return "+81" + phone[1:]
	}
	return phone
}
