// Package courier содержит контракт шлюза службы доставки и его реализации.
package courier

import (
	"context"
	"errors"
	"strings"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// ErrIntegration возвращается, если служба доставки отклонила запрос или ответила в неожиданном формате.
var ErrIntegration = errors.New("courier integration error")

// Внешние статусы отправления, которые понимает консоль.
const (
	ExternalInTransit = "IN_TRANSIT"
	ExternalDelivered = "DELIVERED"
	ExternalReturned  = "RETURNED"
	ExternalCancelled = "CANCELLED"
)

// Shipment описывает созданное у курьера отправление.
type Shipment struct {
	CourierID  string
	TrackingID string
}

// Gateway описывает взаимодействие с API одной службы доставки.
// Учётные данные передаются в каждый вызов и не кэшируются.
type Gateway interface {
	CreateShipment(ctx context.Context, order *model.Order, apiKey, storeID string) (*Shipment, error)
	QueryStatus(ctx context.Context, trackingID, apiKey, storeID string) (string, error)
	VerifyCredentials(ctx context.Context, apiKey, storeID string) (bool, error)
}

// ToOrderStatus сопоставляет внешний статус отправления статусу заказа.
// Для неизвестных значений возвращает false: такие статусы не меняют заказ.
func ToOrderStatus(external string) (model.OrderStatus, bool) {
	switch external {
	case ExternalDelivered:
		return model.OrderStatusDelivered, true
	case ExternalReturned:
		return model.OrderStatusReturned, true
	case ExternalCancelled:
		return model.OrderStatusCancelled, true
	case ExternalInTransit:
		return model.OrderStatusShipped, true
	default:
		return "", false
	}
}

// IntegrationError переносит сообщение службы доставки и совместим с ErrIntegration через errors.Is.
type IntegrationError struct {
	Message string
}

func (e *IntegrationError) Error() string {
	return e.Message
}

// Is позволяет сравнивать ошибку с ErrIntegration.
func (e *IntegrationError) Is(target error) bool {
	return target == ErrIntegration
}

func newIntegrationError(message, fallback string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = fallback
	}
	return &IntegrationError{Message: message}
}
