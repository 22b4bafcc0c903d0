package upstream

// PaymentMethod is a tender type configured on the merchant backend.
type PaymentMethod struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	FeePercent float64 `json:"feePercent"`
	IsActive   bool    `json:"isActive"`
}

// Variant is one sellable variant of a product.
type Variant struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Size  string  `json:"size"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

// Product is a catalog entry scoped to a stock location.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Thumbnail string    `json:"thumbnail"`
	BuyPrice  float64   `json:"bPrice"`
	Type      string    `json:"type"`
	Variants  []Variant `json:"variants"`
}

// Stock is a store location the cashier can sell from.
type Stock struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrderItem is one line of a submitted order.
type OrderItem struct {
	ItemID      string  `json:"itemId"`
	BuyPrice    float64 `json:"bPrice"`
	VariantID   string  `json:"variantId"`
	Name        string  `json:"name"`
	VariantName string  `json:"variantName"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Discount    float64 `json:"discount"`
}

// PaymentEntry is one captured payment line on an order.
type PaymentEntry struct {
	MethodID  string  `json:"methodId"`
	Method    string  `json:"method"`
	Amount    float64 `json:"amount"`
	CardDigit string  `json:"cardDigit,omitempty"`
	RefID     string  `json:"refId,omitempty"`
}

// Order is the payload submitted to the merchant backend when an order is
// placed from the terminal.
type Order struct {
	OrderID              string         `json:"orderId"`
	Items                []OrderItem    `json:"items"`
	Fee                  float64        `json:"fee"`
	ShippingFee          float64        `json:"shippingFee"`
	Discount             float64        `json:"discount"`
	PaymentReceived      []PaymentEntry `json:"paymentReceived"`
	From                 string         `json:"from"`
	StockID              string         `json:"stockId"`
	Status               string         `json:"status"`
	PaymentStatus        string         `json:"paymentStatus"`
	PaymentMethod        string         `json:"paymentMethod"`
	PaymentMethodID      string         `json:"paymentMethodId,omitempty"`
	Total                float64        `json:"total"`
	TransactionFeeCharge float64        `json:"transactionFeeCharge"`
}

// PlacedOrder is the backend acknowledgement of an order submission.
type PlacedOrder struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// ExchangeLookup is the eligibility answer for an order id. The backend owns
// the working-day computation; the terminal only relays it.
type ExchangeLookup struct {
	Eligible           bool   `json:"eligible"`
	Message            string `json:"message,omitempty"`
	WorkingDaysElapsed int    `json:"workingDaysElapsed"`
	Order              *Order `json:"order,omitempty"`
}

// ExchangeLine is one return or replacement line in an exchange submission.
type ExchangeLine struct {
	ItemID      string  `json:"itemId"`
	VariantID   string  `json:"variantId"`
	Name        string  `json:"name"`
	VariantName string  `json:"variantName"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Discount    float64 `json:"discount"`
}

// ExchangeRequest is the exchange submission payload.
type ExchangeRequest struct {
	OrderID         string         `json:"orderId"`
	Returns         []ExchangeLine `json:"returns"`
	Replacements    []ExchangeLine `json:"replacements"`
	PriceDifference float64        `json:"priceDifference"`
	Payment         *PaymentEntry  `json:"payment,omitempty"`
	StockID         string         `json:"stockId"`
	From            string         `json:"from"`
}

// ExchangeResult acknowledges a processed exchange.
type ExchangeResult struct {
	ExchangeID string `json:"exchangeId"`
	Status     string `json:"status"`
}
