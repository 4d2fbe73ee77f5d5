package record

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// MaxTextSize is the maximum size of a single text field in bytes.
const MaxTextSize = 16384

// Severity classifies the hazard level of a recall.
type Severity string

// Severity values.
const (
	SeverityUnspecified Severity = ""
	SeverityLow         Severity = "low"
	SeverityMedium      Severity = "medium"
	SeverityHigh        Severity = "high"
)

// IsValid reports whether the severity is a known value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityUnspecified, SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Record is the recall record aggregate. The ID is immutable for the
// lifetime of the record; every other field may change on re-ingestion.
type Record struct {
	id           string
	name         string
	brand        string
	description  string
	hazard       string
	severity     Severity
	category     string
	recalledAt   time.Time
	lastModified time.Time
}

// New validates and creates a Record.
// ID: ^[a-zA-Z0-9._-]+$, 1-128 chars. Name is required; text fields max 16KB.
func New(
	id, name, brand, description, hazard string,
	severity Severity, category string, recalledAt time.Time,
) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("recall ID is required")
	}
	if len(id) > 128 {
		return Record{}, fmt.Errorf("recall ID too long (max 128)")
	}
	if !idRegex.MatchString(id) {
		return Record{}, fmt.Errorf("recall ID must be alphanumeric with dots, underscores and hyphens")
	}
	if strings.TrimSpace(name) == "" {
		return Record{}, fmt.Errorf("name is required")
	}
	for field, v := range map[string]string{
		"name": name, "brand": brand, "description": description, "hazard": hazard,
	} {
		if len(v) > MaxTextSize {
			return Record{}, fmt.Errorf("%s too large (max %d bytes)", field, MaxTextSize)
		}
	}
	if !severity.IsValid() {
		return Record{}, fmt.Errorf("unknown severity %q", severity)
	}

	return Record{
		id:          id,
		name:        name,
		brand:       brand,
		description: description,
		hazard:      hazard,
		severity:    severity,
		category:    category,
		recalledAt:  recalledAt.UTC(),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(
	id, name, brand, description, hazard string,
	severity Severity, category string, recalledAt, lastModified time.Time,
) Record {
	return Record{
		id: id, name: name, brand: brand, description: description, hazard: hazard,
		severity: severity, category: category,
		recalledAt: recalledAt, lastModified: lastModified,
	}
}

// ID returns the immutable recall identifier.
func (r *Record) ID() string { return r.id }

// Name returns the product name.
func (r *Record) Name() string { return r.name }

// Brand returns the brand name.
func (r *Record) Brand() string { return r.brand }

// Description returns the product description.
func (r *Record) Description() string { return r.description }

// Hazard returns the hazard text.
func (r *Record) Hazard() string { return r.hazard }

// Severity returns the hazard severity.
func (r *Record) Severity() Severity { return r.severity }

// Category returns the categorical tag.
func (r *Record) Category() string { return r.category }

// RecalledAt returns the recall date.
func (r *Record) RecalledAt() time.Time { return r.recalledAt }

// LastModified returns the modification watermark set by the ingestor.
func (r *Record) LastModified() time.Time { return r.lastModified }

// SearchableFields returns the text fields matched by keyword filters.
func (r *Record) SearchableFields() []string {
	return []string{r.name, r.brand, r.description, r.hazard}
}
