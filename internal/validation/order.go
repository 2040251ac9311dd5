// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// ErrInvalidDraft возвращается, если данные нового заказа некорректны.
var ErrInvalidDraft = errors.New("invalid order draft")

// IsValidPhone проверяет мобильный номер Бангладеш: 01XXXXXXXXX, допускается префикс 88 или +88.
func IsValidPhone(phone string) bool {
	phone = strings.TrimPrefix(phone, "+")
	phone = strings.TrimPrefix(phone, "88")

	if len(phone) != 11 || !strings.HasPrefix(phone, "01") {
		return false
	}
	if phone[2] < '3' {
		return false
	}

	for _, ch := range phone {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// ValidateDraft проверяет новый заказ, включая совпадение итоговой суммы с позициями и доставкой.
func ValidateDraft(d *model.OrderDraft) error {
	if strings.TrimSpace(d.CustomerName) == "" {
		return invalid("customer name is required")
	}
	if !IsValidPhone(d.Phone) {
		return invalid("phone %q is not a valid mobile number", d.Phone)
	}
	if strings.TrimSpace(d.Address) == "" {
		return invalid("address is required")
	}
	if len(d.Items) == 0 {
		return invalid("order must contain at least one item")
	}
	for i, it := range d.Items {
		if it.ProductID == "" {
			return invalid("item %d: product is required", i)
		}
		if it.Quantity <= 0 {
			return invalid("item %d: quantity must be positive", i)
		}
		if it.Price.IsNegative() {
			return invalid("item %d: price must not be negative", i)
		}
	}
	if d.DeliveryCharge.IsNegative() || d.CODAmount.IsNegative() || d.AdvancePayment.IsNegative() {
		return invalid("amounts must not be negative")
	}
	if d.Status != model.OrderStatusPending && d.Status != model.OrderStatusConfirmed {
		return invalid("initial status must be %s or %s", model.OrderStatusPending, model.OrderStatusConfirmed)
	}
	if !d.Source.Valid() {
		return invalid("unknown source %q", d.Source)
	}

	want := d.ItemsSubtotal().Add(d.DeliveryCharge)
	if !d.Total.Equal(want) {
		return invalid("total %s does not match items plus delivery %s", d.Total, want)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDraft, fmt.Sprintf(format, args...))
}
