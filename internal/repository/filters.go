package repository

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

// whereFilters appends AND conditions for every set filter field, numbering
// placeholders after the args already present.
func whereFilters(conds []string, args []any, f domain.SearchFilters) ([]string, []any) {
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if f.ContentType != "" {
		args = append(args, string(f.ContentType))
		conds = append(conds, fmt.Sprintf("content_type = $%d", len(args)))
	}
	return conds, args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
