// Package customer строит покупателей как проекцию над заказами.
package customer

import (
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/purnata-console/internal/model"
)

// Aggregate группирует заказы по номеру телефона.
// Заказы ожидаются в порядке от новых к старым, поэтому имя берётся из первого встреченного заказа.
// Порядок покупателей и история заказов сохраняют порядок обхода.
func Aggregate(orders []model.Order) []model.Customer {
	index := make(map[string]int)
	res := make([]model.Customer, 0)

	for _, o := range orders {
		if i, ok := index[o.Phone]; ok {
			c := &res[i]
			c.OrderCount++
			c.TotalSpent = c.TotalSpent.Add(o.Total)
			c.History = append(c.History, o.ID)
			continue
		}

		index[o.Phone] = len(res)
		res = append(res, model.Customer{
			ID:         "cust-" + o.Phone,
			Name:       o.CustomerName,
			Phone:      o.Phone,
			OrderCount: 1,
			TotalSpent: decimal.Zero.Add(o.Total),
			History:    []string{o.ID},
		})
	}

	return res
}
