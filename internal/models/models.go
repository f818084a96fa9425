package models

// APIResponse is the JSON envelope used by every inventory and auth endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// InventoryItem is a stock record as served by GET /api/inventory.
// Unit and Category are filled once when the item is created; rows written
// before those columns existed come back blank and are derived client-side.
type InventoryItem struct {
	ID          string `json:"_id" db:"id"`
	ProductCode string `json:"productCode" db:"product_code"`
	ProductName string `json:"productName" db:"product_name"`
	Quantity    int    `json:"quantity" db:"quantity"`
	Supplier    string `json:"supplier" db:"supplier"`
	Location    string `json:"location" db:"location"`
	Unit        string `json:"unit,omitempty" db:"unit"`
	Category    string `json:"category,omitempty" db:"category"`
	LastUpdated string `json:"lastUpdated,omitempty" db:"last_updated"`
}

// CartLine is an item snapshot taken when it was added to the cart.
type CartLine struct {
	ItemID            string `json:"_id"`
	ProductCode       string `json:"productCode"`
	ProductName       string `json:"productName"`
	Supplier          string `json:"supplier"`
	Location          string `json:"location"`
	Unit              string `json:"unit"`
	QuantityAvailable int    `json:"quantityAvailable"`
	QuantityRequested int    `json:"quantityRequested"`
}

type CheckoutItem struct {
	ItemCode string `json:"itemCode"`
	Quantity int    `json:"quantity"`
}

// CheckoutRequest is the body of POST /api/inventory/checkout.
type CheckoutRequest struct {
	WorkOrderNumber string         `json:"workOrderNumber"`
	Items           []CheckoutItem `json:"items"`
}

type ReportLine struct {
	Name     string `json:"name" db:"name"`
	Quantity int    `json:"quantity" db:"quantity"`
	Unit     string `json:"unit" db:"unit"`
}

// CheckoutReport is one row of the checkout history.
type CheckoutReport struct {
	ID         string       `json:"id" db:"id"`
	Date       string       `json:"date" db:"date"`
	WorkOrder  string       `json:"workOrder" db:"work_order"`
	Items      []ReportLine `json:"items"`
	TotalItems int          `json:"totalItems" db:"total_items"`
	Operator   string       `json:"operator" db:"operator"`
	Status     string       `json:"status" db:"status"`
	Project    string       `json:"project" db:"project"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

type User struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Role  string `json:"role" db:"role"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/auth/login. It does not use the
// data envelope: token and user sit at the top level.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateItemRequest is the body of POST /api/inventory.
type CreateItemRequest struct {
	ProductCode string `json:"productCode"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Supplier    string `json:"supplier"`
	Location    string `json:"location"`
}

// UpdateItemRequest is the body of PUT /api/inventory/{id}.
type UpdateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// CheckoutEvent is published after a checkout commits.
type CheckoutEvent struct {
	CheckoutID      string         `json:"checkoutId"`
	WorkOrderNumber string         `json:"workOrderNumber"`
	Operator        string         `json:"operator"`
	Items           []CheckoutItem `json:"items"`
	Timestamp       string         `json:"timestamp"`
}
