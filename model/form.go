// Package model defines the domain types shared across the client:
// forms, fields, records, filter conditions, and the error envelope.
package model

import "fmt"

// Form is one user-defined collection template: a named set of Fields.
type Form struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// FieldType enumerates the supported field kinds. The type decides how a
// record value under that field is validated and rendered.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldMultiline FieldType = "multiline"
	FieldDropdown  FieldType = "dropdown"
	FieldLocation  FieldType = "location"
	FieldImage     FieldType = "image"
)

// ParseFieldType converts a backend string into a FieldType.
func ParseFieldType(s string) (FieldType, error) {
	switch FieldType(s) {
	case FieldText, FieldMultiline, FieldDropdown, FieldLocation, FieldImage:
		return FieldType(s), nil
	}
	return "", fmt.Errorf("model: unknown field type %q", s)
}

// FieldOptions carries per-type extras. Only dropdown uses it today.
type FieldOptions struct {
	Dropdown []string `json:"dropdown,omitempty"`
}

// Field is one named, typed attribute definition belonging to a Form.
// OrderIndex is the 1-based persisted rank deciding display order; after a
// reorder the indexes of a form's fields are a dense 1..n ranking.
type Field struct {
	ID         int           `json:"id"`
	FormID     int           `json:"form_id"`
	Name       string        `json:"name"`
	Type       FieldType     `json:"field_type"`
	Required   bool          `json:"required"`
	IsNum      bool          `json:"is_num"`
	OrderIndex int           `json:"order_index"`
	Options    *FieldOptions `json:"options,omitempty"`
}

// DropdownOptions returns the selectable options, or nil when the field is
// not a dropdown or carries none. A dropdown without options is tolerated
// and simply renders empty.
func (f Field) DropdownOptions() []string {
	if f.Type != FieldDropdown || f.Options == nil {
		return nil
	}
	return f.Options.Dropdown
}
