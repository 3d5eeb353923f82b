package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

const (
	filterKeyStatus      = "status"
	filterKeyCategory    = "category"
	filterKeyContentType = "content_type"
)

// FiltersForRole returns the filters a role is always subject to.
// Admins see every status; everyone else only sees published items.
func FiltersForRole(role domain.Role) domain.SearchFilters {
	if role.IsPrivileged() {
		return domain.SearchFilters{}
	}
	return domain.SearchFilters{Status: domain.KnowledgeStatusPublished}
}

// ApplyAccessPolicy merges caller filters with the role's mandatory filters.
// A mandatory status always wins over a requested one.
func ApplyAccessPolicy(role domain.Role, requested domain.SearchFilters) domain.SearchFilters {
	effective := requested
	forced := FiltersForRole(role)
	if forced.Status != "" {
		effective.Status = forced.Status
	}
	return effective
}

// CanView reports whether role may read item directly by id. Editors can open
// their drafts; students only see published items.
func CanView(role domain.Role, item *domain.KnowledgeItem) bool {
	if item == nil {
		return false
	}
	return role.CanEditContent() || item.Status == domain.KnowledgeStatusPublished
}

// ParseSearchFilters converts the inbound filter map into SearchFilters.
// Unknown keys and invalid enum values are rejected.
func ParseSearchFilters(raw map[string]string) (domain.SearchFilters, error) {
	var filters domain.SearchFilters

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(raw[key])
		switch strings.ToLower(strings.TrimSpace(key)) {
		case filterKeyStatus:
			if value == "" {
				continue
			}
			status := domain.KnowledgeStatus(strings.ToLower(value))
			if !domain.IsValidKnowledgeStatus(status) {
				return domain.SearchFilters{}, domain.NewInvalidSearchQueryError(fmt.Sprintf("invalid status filter: %q", value))
			}
			filters.Status = status
		case filterKeyCategory:
			filters.Category = value
		case filterKeyContentType:
			if value == "" {
				continue
			}
			ct := domain.ContentType(strings.ToLower(value))
			if !domain.IsValidContentType(ct) {
				return domain.SearchFilters{}, domain.NewInvalidSearchQueryError(fmt.Sprintf("invalid content_type filter: %q", value))
			}
			filters.ContentType = ct
		default:
			return domain.SearchFilters{}, domain.NewInvalidSearchQueryError(fmt.Sprintf("unknown filter: %q", key))
		}
	}

	return filters, nil
}
