package testutil

import (
	"time"

	"github.com/cloo-solutions/kbsearch/internal/domain"
)

// KnowledgeItem builds a valid item with the given status. Timestamps are
// truncated to microseconds so they round-trip through Postgres unchanged.
func KnowledgeItem(id, title, content, category string, contentType domain.ContentType, status domain.KnowledgeStatus) *domain.KnowledgeItem {
	now := time.Now().UTC().Truncate(time.Microsecond)
	k := domain.NewKnowledgeItem(id, title, content, category, contentType, domain.AudienceAll, "author-1", nil, now)
	k.Status = status
	return k
}

// UnitVector returns a dim-length vector with 1 at position hot.
func UnitVector(dim, hot int) domain.Vector {
	v := make(domain.Vector, dim)
	v[hot%dim] = 1
	return v
}
