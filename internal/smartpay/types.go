package smartpay

// Remote order status values the engine cares about.
const OrderStatusSucceeded = "succeeded"

// RefundReasonRequestedByCustomer is the fixed reason code sent with refunds
// issued for order cancellation.
const RefundReasonRequestedByCustomer = "requested_by_customer"

// Item kinds in a checkout-session request.
const (
	ItemKindDiscount = "discount"
	ItemKindTax      = "tax"
)

// CheckoutSessionRequest is the payload for POST /checkout-sessions.
type CheckoutSessionRequest struct {
	CustomerInfo CustomerInfo `json:"customerInfo"`
	Amount       int64        `json:"amount"`
	Currency     string       `json:"currency"`
	Items        []Item       `json:"items"`
	ShippingInfo ShippingInfo `json:"shippingInfo"`
	Reference    string       `json:"reference"`
	SuccessURL   string       `json:"successUrl"`
	CancelURL    string       `json:"cancelUrl"`
}

type CustomerInfo struct {
	EmailAddress  string `json:"emailAddress"`
	FirstName     string `json:"firstName,omitempty"`
	LastName      string `json:"lastName,omitempty"`
	FirstNameKana string `json:"firstNameKana,omitempty"`
	LastNameKana  string `json:"lastNameKana,omitempty"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}

type Item struct {
	Kind               string `json:"kind,omitempty"`
	Name               string `json:"name"`
	Amount             int64  `json:"amount"`
	Currency           string `json:"currency"`
	Quantity           int64  `json:"quantity,omitempty"`
	ProductDescription string `json:"productDescription,omitempty"`
}

type ShippingInfo struct {
	Address     Address `json:"address"`
	FeeAmount   int64   `json:"feeAmount,omitempty"`
	FeeCurrency string  `json:"feeCurrency,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Locality   string `json:"locality"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CheckoutSession is the remote checkout-session resource. Order is only
// populated when the session is fetched with expansion.
type CheckoutSession struct {
	ID    string      `json:"id"`
	URL   string      `json:"url"`
	Order RemoteOrder `json:"order"`
}

// RemoteOrder is the processor's record of an attempted payment, linked back
// to the local order via Reference.
type RemoteOrder struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
	Payments  []RemotePayment `json:"payments"`
}

type RemotePayment struct {
	ID string `json:"id"`
}

// RefundRequest is the payload for POST /refunds.
type RefundRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Payment   string `json:"payment"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

type Refund struct {
	ID string `json:"id"`
}
