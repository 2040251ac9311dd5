package service

import (
	"fmt"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// TransitionPolicy решает, допустим ли перевод заказа в новый статус.
type TransitionPolicy func(order *model.Order, to model.OrderStatus) error

// PermissivePolicy разрешает переход между любыми известными статусами.
// Ручной перевод в SHIPPED без курьера тоже разрешён.
func PermissivePolicy(order *model.Order, to model.OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	return nil
}

// StrictPolicy разрешает движение вперёд по основной цепочке, отмену и возврат из незавершённых
// статусов и запрещает выход из DELIVERED, CANCELLED и RETURNED.
// SHIPPED и DELIVERED доступны только заказу с привязкой к курьеру.
func StrictPolicy(order *model.Order, to model.OrderStatus) error {
	if err := PermissivePolicy(order, to); err != nil {
		return err
	}
	from := order.Status
	if from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, from)
	}
	if to == model.OrderStatusCancelled || to == model.OrderStatusReturned {
		return nil
	}
	if to.Rank() <= from.Rank() {
		return fmt.Errorf("%w: %s -> %s goes backwards", ErrInvalidTransition, from, to)
	}
	if (to == model.OrderStatusShipped || to == model.OrderStatusDelivered) && !order.HasCourierBinding() {
		return fmt.Errorf("%w: %s requires a booked courier", ErrInvalidTransition, to)
	}
	return nil
}
