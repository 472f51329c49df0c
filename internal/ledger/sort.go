package ledger

import (
	"sort"
	"strings"
)

// Order is a presentation ordering for admin user listings.
type Order string

const (
	AlphaAsc  Order = "asc"
	AlphaDesc Order = "desc"
	DebtHigh  Order = "debt_desc"
	DebtLow   Order = "debt_asc"
)

// ParseOrder maps a query value to an Order, defaulting to AlphaAsc.
func ParseOrder(s string) Order {
	switch o := Order(strings.ToLower(strings.TrimSpace(s))); o {
	case AlphaDesc, DebtHigh, DebtLow:
		return o
	}
	return AlphaAsc
}

// Sort orders users in place.  It is stable, so equal keys keep their
// input order.
func Sort(users []UserDebt, o Order) {
	name := func(u UserDebt) string { return strings.ToLower(u.WarName) }
	var less func(a, b UserDebt) bool
	switch o {
	case AlphaDesc:
		less = func(a, b UserDebt) bool { return name(a) > name(b) }
	case DebtHigh:
		less = func(a, b UserDebt) bool { return a.Total.GreaterThan(b.Total) }
	case DebtLow:
		less = func(a, b UserDebt) bool { return a.Total.LessThan(b.Total) }
	default:
		less = func(a, b UserDebt) bool { return name(a) < name(b) }
	}
	sortStable(users, less)
}

// Filter keeps users matching company and rank; empty values match all.
func Filter(users []UserDebt, company, rank string) []UserDebt {
	if company == "" && rank == "" {
		return users
	}
	out := make([]UserDebt, 0, len(users))
	for _, u := range users {
		if company != "" && !strings.EqualFold(u.Company, company) {
			continue
		}
		if rank != "" && !strings.EqualFold(u.Rank, rank) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func sortStable[T any](s []T, less func(a, b T) bool) {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
}
