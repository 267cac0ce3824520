package pgrepos

import (
	"strings"

	"github.com/trezcool/balozi/core"
)

// client-orderable columns per table
var (
	applicationOrderCols = map[string]struct{}{
		"phone":        {},
		"status":       {},
		"current_step": {},
		"first_name":   {},
		"last_name":    {},
		"created_at":   {},
		"submitted_at": {},
		"decided_at":   {},
	}

	userOrderCols = map[string]struct{}{
		"name":       {},
		"username":   {},
		"email":      {},
		"is_active":  {},
		"created_at": {},
		"last_login": {},
	}
)

// orderBy renders an ORDER BY clause from the requested orderings, dropping
// any field not in the allowlist. Falls back to fallback if none survive.
func orderBy(orderings []core.DBOrdering, allowed map[string]struct{}, fallback string) string {
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if _, ok := allowed[ord.Field]; ok {
			terms = append(terms, ord.String())
		}
	}
	if len(terms) == 0 {
		return ` ORDER BY ` + fallback
	}
	return ` ORDER BY ` + strings.Join(terms, ", ")
}
