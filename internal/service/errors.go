package service

import "errors"

var (
	// ErrCourierNotConfigured возвращается, если нет активных учётных данных курьера или шлюза для него.
	ErrCourierNotConfigured = errors.New("courier is not configured")
	// ErrTrackingFailed возвращается, если служба доставки не ответила на запрос статуса.
	ErrTrackingFailed = errors.New("tracking failed")
	// ErrInvalidTransition возвращается, если политика переходов запрещает смену статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrStockNotUpdated возвращается вместе с заказом, если статус записан, а списание остатков не удалось.
	ErrStockNotUpdated = errors.New("order saved but stock was not updated")
	// ErrAlreadyBooked возвращается при повторном бронировании доставки для заказа.
	ErrAlreadyBooked = errors.New("order already booked with courier")
)
