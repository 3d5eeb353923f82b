package domain

import (
	"fmt"
	"strings"
	"time"
)

// ContentType represents the kind of knowledge item
type ContentType string

const (
	ContentTypeGuide     ContentType = "guide"
	ContentTypeFAQ       ContentType = "faq"
	ContentTypeArticle   ContentType = "article"
	ContentTypeProcedure ContentType = "procedure"
	ContentTypeTutorial  ContentType = "tutorial"
	ContentTypePolicy    ContentType = "policy"
)

// KnowledgeStatus represents the publication status of a knowledge item
type KnowledgeStatus string

const (
	KnowledgeStatusDraft     KnowledgeStatus = "draft"
	KnowledgeStatusPublished KnowledgeStatus = "published"
	KnowledgeStatusArchived  KnowledgeStatus = "archived"
)

// Audience is the role-like tag an item is written for
type Audience string

const (
	AudienceAll        Audience = "all"
	AudienceAdmin      Audience = "admin"
	AudienceInstructor Audience = "instructor"
	AudienceStudent    Audience = "student"
)

// KnowledgeItem is the searchable entity of the knowledge base
type KnowledgeItem struct {
	ID             string
	Title          string
	Content        string
	Category       string
	ContentType    ContentType
	TargetAudience Audience
	Status         KnowledgeStatus
	AuthorID       string
	Embedding      Vector // nil until computed
	Tags           []string
	ViewCount      int64
	HelpfulCount   int64
	UnhelpfulCount int64
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewKnowledgeItem creates a draft item at version 1
func NewKnowledgeItem(
	id, title, content, category string,
	contentType ContentType,
	audience Audience,
	authorID string,
	tags []string,
	now time.Time,
) *KnowledgeItem {
	if audience == "" {
		audience = AudienceAll
	}
	return &KnowledgeItem{
		ID:             id,
		Title:          title,
		Content:        content,
		Category:       category,
		ContentType:    contentType,
		TargetAudience: audience,
		Status:         KnowledgeStatusDraft,
		AuthorID:       authorID,
		Tags:           normalizeTags(tags),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasEmbedding reports whether the item can take part in vector search
func (k *KnowledgeItem) HasEmbedding() bool {
	return len(k.Embedding) > 0
}

func (k *KnowledgeItem) IncrementViewCount() {
	k.ViewCount++
}

func (k *KnowledgeItem) AddHelpfulFeedback() {
	k.HelpfulCount++
}

func (k *KnowledgeItem) AddUnhelpfulFeedback() {
	k.UnhelpfulCount++
}

// Publish makes the item visible to non-privileged roles
func (k *KnowledgeItem) Publish(now time.Time) error {
	if k.Status == KnowledgeStatusArchived {
		return ErrCannotPublishArchived
	}
	k.Status = KnowledgeStatusPublished
	k.UpdatedAt = now
	return nil
}

// Archive retires the item
func (k *KnowledgeItem) Archive(now time.Time) {
	k.Status = KnowledgeStatusArchived
	k.UpdatedAt = now
}

// Revise replaces the searchable text, bumps the version and drops the
// stale embedding.
func (k *KnowledgeItem) Revise(title, content, category string, tags []string, now time.Time) {
	k.Title = title
	k.Content = content
	if category != "" {
		k.Category = category
	}
	if tags != nil {
		k.Tags = normalizeTags(tags)
	}
	k.Embedding = nil
	k.Version++
	k.UpdatedAt = now
}

// EmbeddingText is the text fed to the embedding provider for this item
func (k *KnowledgeItem) EmbeddingText() string {
	parts := make([]string, 0, 3)
	if k.Title != "" {
		parts = append(parts, k.Title)
	}
	if k.Content != "" {
		parts = append(parts, k.Content)
	}
	if len(k.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(k.Tags, ", "))
	}
	return strings.Join(parts, "\n\n")
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.ID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge ID is required")
	}

	if strings.TrimSpace(k.Title) == "" {
		return NewDomainError(ErrCodeValidation, "knowledge Title is required")
	}

	if strings.TrimSpace(k.Content) == "" {
		return NewDomainError(ErrCodeValidation, "knowledge Content is required")
	}

	if !IsValidContentType(k.ContentType) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("knowledge ContentType is invalid: %s", k.ContentType))
	}

	if !IsValidKnowledgeStatus(k.Status) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("knowledge Status is invalid: %s", k.Status))
	}

	if !IsValidAudience(k.TargetAudience) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("knowledge TargetAudience is invalid: %s", k.TargetAudience))
	}

	if k.Version < 1 {
		return NewDomainError(ErrCodeValidation, "knowledge Version must be at least 1")
	}

	return nil
}

// IsValidContentType checks if a ContentType is valid
func IsValidContentType(t ContentType) bool {
	switch t {
	case ContentTypeGuide, ContentTypeFAQ, ContentTypeArticle,
		ContentTypeProcedure, ContentTypeTutorial, ContentTypePolicy:
		return true
	}
	return false
}

// IsValidKnowledgeStatus checks if a KnowledgeStatus is valid
func IsValidKnowledgeStatus(s KnowledgeStatus) bool {
	switch s {
	case KnowledgeStatusDraft, KnowledgeStatusPublished, KnowledgeStatusArchived:
		return true
	}
	return false
}

// IsValidAudience checks if an Audience is valid
func IsValidAudience(a Audience) bool {
	switch a {
	case AudienceAll, AudienceAdmin, AudienceInstructor, AudienceStudent:
		return true
	}
	return false
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
