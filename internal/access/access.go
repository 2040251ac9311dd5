// Package access описывает права ролей в виде набора возможностей.
package access

import "github.com/mmeshcher/purnata-console/internal/model"

// Capability обозначает отдельную возможность консоли.
type Capability uint16

const (
	CapDashboard Capability = 1 << iota
	CapOrders
	CapInventory
	CapLogistics
	CapCustomers
	CapFinancials
	CapLoans
	CapStaff
	CapSettings
)

// Set хранит набор возможностей роли.
type Set Capability

// Has сообщает, содержит ли набор хотя бы одну из перечисленных возможностей.
func (s Set) Has(caps ...Capability) bool {
	for _, c := range caps {
		if Capability(s)&c != 0 {
			return true
		}
	}
	return false
}

func setOf(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= Set(c)
	}
	return s
}

var roleCapabilities = map[model.UserRole]Set{
	model.RoleOwner: setOf(CapDashboard, CapOrders, CapInventory, CapLogistics, CapCustomers,
		CapFinancials, CapLoans, CapStaff, CapSettings),
	model.RoleManager:  setOf(CapOrders, CapInventory, CapLogistics),
	model.RoleAccounts: setOf(CapFinancials, CapLoans),
	model.RoleStaff:    setOf(CapOrders, CapCustomers),
	model.RoleViewer:   setOf(CapDashboard, CapInventory),
}

// ForRole возвращает набор возможностей роли. Неизвестная роль не имеет возможностей.
func ForRole(role model.UserRole) Set {
	return roleCapabilities[role]
}

// Session описывает вошедшего сотрудника. Передаётся явно через контекст запроса.
type Session struct {
	UserID int64
	Role   model.UserRole
}

// Can сообщает, разрешена ли сессии хотя бы одна из возможностей.
func (s Session) Can(caps ...Capability) bool {
	return ForRole(s.Role).Has(caps...)
}
