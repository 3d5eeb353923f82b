package domain

// SearchFilters narrows a repository query. Empty fields do not filter;
// set fields combine with AND semantics.
type SearchFilters struct {
	Status      KnowledgeStatus
	Category    string
	ContentType ContentType
}

// ScoredItem pairs a knowledge item with its relevance score.
type ScoredItem struct {
	Item  *KnowledgeItem
	Score SearchScore
}
