package models

import (
	"encoding/json"
	"time"
)

// DocumentKind selects which transformation a record goes through.
type DocumentKind string

const (
	KindComparison  DocumentKind = "comparison"
	KindTranslation DocumentKind = "translation"
)

// DocumentVariant selects the dispatch strategy: inline stages the source
// files before the record is created, background creates a placeholder first
// and ships raw bytes to the transformer.
type DocumentVariant string

const (
	VariantInline     DocumentVariant = "inline"
	VariantBackground DocumentVariant = "background"
)

// DocumentStatus is the record lifecycle state.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// statusTransitions is the closed transition table; completed and failed are
// terminal.
var statusTransitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// ValidTransition reports whether a status change is allowed. Every status
// write in the store goes through this check.
func ValidTransition(from, to DocumentStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Document is one transformation job: a comparison pair or a translation
// source, its staged artifacts and the reconciled result. Artifacts live in
// blob storage; the record only ever holds their URLs.
type Document struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Name    string          `gorm:"size:255;not null" json:"name"`
	Kind    DocumentKind    `gorm:"size:32;not null;index" json:"kind"`
	Variant DocumentVariant `gorm:"size:32;not null" json:"variant"`

	ProjectID string `gorm:"size:36;not null;index" json:"projectId"`
	UserID    string `gorm:"size:36;not null;index" json:"userId"`

	ContentType string         `gorm:"size:128" json:"contentType"`
	Status      DocumentStatus `gorm:"size:32;not null;index" json:"status"`

	// Source refs in order: original first, modified second (comparison only).
	// Both are set before the record becomes visible on the inline variant and
	// stay null until reconciliation on the background variant.
	OriginalRef *string `gorm:"size:1024" json:"originalRef"`
	ModifiedRef *string `gorm:"size:1024" json:"modifiedRef"`
	ResultRef   *string `gorm:"size:1024" json:"resultRef"`

	// Pages holds the comparison service's per-page diff metadata verbatim.
	Pages json.RawMessage `gorm:"type:jsonb" json:"pages,omitempty"`

	SourceLanguage *string `gorm:"size:16" json:"sourceLanguage,omitempty"`
	TargetLanguage string  `gorm:"size:16" json:"targetLanguage,omitempty"`

	// LastError records the most recent abandoned background task. The status
	// stays non-terminal; this field is the only failure breadcrumb.
	LastError string `gorm:"size:1024" json:"lastError,omitempty"`
}
