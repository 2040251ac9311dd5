// Package model содержит доменные сущности операционной консоли.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает этап жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusPacked    OrderStatus = "PACKED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusReturned  OrderStatus = "RETURNED"
)

// statusRank задаёт порядок статусов основной цепочки.
var statusRank = map[OrderStatus]int{
	OrderStatusPending:   1,
	OrderStatusConfirmed: 2,
	OrderStatusPacked:    3,
	OrderStatusShipped:   4,
	OrderStatusDelivered: 5,
	OrderStatusCancelled: 5,
	OrderStatusReturned:  5,
}

// Valid сообщает, относится ли значение к известным статусам.
func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Terminal сообщает, что из статуса не определено автоматических переходов.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusReturned
}

// Rank возвращает позицию статуса в основной цепочке; 0 для неизвестных значений.
func (s OrderStatus) Rank() int {
	return statusRank[s]
}

// OrderSource описывает канал, через который поступил заказ.
type OrderSource string

const (
	OrderSourceManual    OrderSource = "MANUAL"
	OrderSourceWebsite   OrderSource = "WEBSITE"
	OrderSourceFacebook  OrderSource = "FACEBOOK"
	OrderSourceInstagram OrderSource = "INSTAGRAM"
	OrderSourceWhatsApp  OrderSource = "WHATSAPP"
)

// Valid сообщает, относится ли значение к известным каналам.
func (s OrderSource) Valid() bool {
	switch s {
	case OrderSourceManual, OrderSourceWebsite, OrderSourceFacebook, OrderSourceInstagram, OrderSourceWhatsApp:
		return true
	}
	return false
}

// CourierType идентифицирует службу доставки.
type CourierType string

const (
	CourierPathao    CourierType = "PATHAO"
	CourierSteadfast CourierType = "STEADFAST"
	CourierRedX      CourierType = "REDX"
)

// Valid сообщает, относится ли значение к известным службам доставки.
func (t CourierType) Valid() bool {
	switch t {
	case CourierPathao, CourierSteadfast, CourierRedX:
		return true
	}
	return false
}

// OrderItem описывает позицию заказа.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order описывает заказ покупателя вместе с привязкой к курьеру.
type Order struct {
	ID             string          `json:"id"`
	CustomerName   string          `json:"customerName"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	District       string          `json:"district"`
	Thana          string          `json:"thana"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status"`
	Source         OrderSource     `json:"source"`
	CourierType    *CourierType    `json:"courierType,omitempty"`
	CourierID      string          `json:"courierId,omitempty"`
	TrackingID     string          `json:"trackingId,omitempty"`
	CODAmount      decimal.Decimal `json:"codAmount"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	AdvancePayment decimal.Decimal `json:"advancePayment"`
	CreatedAt      time.Time       `json:"createdAt"`
	Note           string          `json:"note,omitempty"`
}

// HasCourierBinding сообщает, забронирована ли доставка заказа у курьера.
func (o *Order) HasCourierBinding() bool {
	return o.CourierType != nil && o.TrackingID != ""
}

// StockLines возвращает позиции заказа в виде строк списания склада.
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

// OrderDraft содержит данные нового заказа до присвоения идентификатора.
type OrderDraft struct {
	CustomerName   string          `json:"customerName"`
	Phone          string          `json:"phone"`
	Address        string          `json:"address"`
	District       string          `json:"district"`
	Thana          string          `json:"thana"`
	Items          []OrderItem     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status"`
	Source         OrderSource     `json:"source"`
	CODAmount      decimal.Decimal `json:"codAmount"`
	DeliveryCharge decimal.Decimal `json:"deliveryCharge"`
	AdvancePayment decimal.Decimal `json:"advancePayment"`
	Note           string          `json:"note,omitempty"`
}

// ItemsSubtotal возвращает сумму позиций без стоимости доставки.
func (d *OrderDraft) ItemsSubtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range d.Items {
		sum = sum.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// CourierUpdate содержит частичное обновление курьерских полей заказа.
// Nil-поле означает «не изменять».
type CourierUpdate struct {
	CourierID   *string
	TrackingID  *string
	CourierType *CourierType
	Status      *OrderStatus
}

// StockLine описывает списание количества товара со склада.
type StockLine struct {
	ProductID string
	Quantity  int
}

// Product описывает складскую позицию.
type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	CostPrice     decimal.Decimal `json:"costPrice"`
	SellingPrice  decimal.Decimal `json:"sellingPrice"`
	Stock         int             `json:"stock"`
	WarehouseID   string          `json:"warehouseId"`
	LowStockAlert int             `json:"lowStockAlert"`
}

// LowOnStock сообщает, что остаток достиг порога оповещения.
func (p *Product) LowOnStock() bool {
	return p.Stock <= p.LowStockAlert
}

// CourierConfig содержит учётные данные службы доставки.
type CourierConfig struct {
	Type     CourierType `json:"type"`
	APIKey   string      `json:"apiKey"`
	StoreID  string      `json:"storeId,omitempty"`
	IsActive bool        `json:"isActive"`
}

// Usable сообщает, можно ли обращаться к курьеру с этой конфигурацией.
func (c *CourierConfig) Usable() bool {
	return c != nil && c.IsActive && c.APIKey != ""
}

// Customer описывает покупателя как производную сущность, собранную из заказов с одним номером телефона.
type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone"`
	OrderCount int             `json:"orderCount"`
	TotalSpent decimal.Decimal `json:"totalSpent"`
	IsFlagged  bool            `json:"isFlagged"`
	History    []string        `json:"history"`
}

// UserRole описывает роль сотрудника.
type UserRole string

const (
	RoleOwner    UserRole = "OWNER"
	RoleManager  UserRole = "MANAGER"
	RoleAccounts UserRole = "ACCOUNTS"
	RoleStaff    UserRole = "STAFF"
	RoleViewer   UserRole = "VIEWER"
)

// User представляет сотрудника, имеющего доступ к консоли.
type User struct {
	ID         int64
	Name       string
	Email      string
	Role       UserRole
	LastActive time.Time
}
