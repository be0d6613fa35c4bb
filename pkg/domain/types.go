package domain

import "time"

// User roles. The shop API encodes roles numerically.
const (
	RoleStandard = 0
	RoleAdmin    = 1
)

// OrderStatus values mirror the shop API's order lifecycle.
type OrderStatus string

const (
	OrderNotProcessed OrderStatus = "Not processed"
	OrderProcessing   OrderStatus = "Processing"
	OrderShipped      OrderStatus = "Shipped"
	OrderDelivered    OrderStatus = "Delivered"
	OrderCancelled    OrderStatus = "Cancelled"
)

// User is the authenticated shopper identity as returned by the shop API.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  int    `json:"role"`
}

// Product is a catalog item. Cart entries carry a snapshot of these fields
// captured at add time; the server remains authoritative for current values.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Category    string    `json:"category,omitempty"`
	Stock       int       `json:"stock"`
	Sold        int       `json:"sold,omitempty"`
	Shipping    bool      `json:"shipping,omitempty"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Category groups catalog items.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CartEntry is one product line in the device-local cart.
type CartEntry struct {
	ProductID string  `json:"productId"`
	Product   Product `json:"product"`
	Count     int     `json:"count"`
}

// OrderProduct is one product line of a placed order.
type OrderProduct struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Count     int     `json:"count"`
}

// Order is a placed order as returned by the shop API.
type Order struct {
	ID            string         `json:"id"`
	Status        OrderStatus    `json:"status"`
	TransactionID string         `json:"transactionId,omitempty"`
	Products      []OrderProduct `json:"products"`
	Amount        float64        `json:"amount"`
	Address       string         `json:"address"`
	User          User           `json:"user"`
	CreatedAt     time.Time      `json:"createdAt"`
}
