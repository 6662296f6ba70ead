// Package forms evaluates published forms at fill time: it derives which
// fields are visible and required from the form's conditional rules,
// validates answers against field constraints and assembles the final
// submission record.
//
// Everything in this package is in-memory and free of I/O. Storage,
// identity and notification are reached through the interfaces in ports.go.
package forms

import "time"

// FieldKind is the input type of a field.
type FieldKind string

const (
	KindText         FieldKind = "text"
	KindEmail        FieldKind = "email"
	KindPhone        FieldKind = "phone"
	KindLongText     FieldKind = "long_text"
	KindSingleSelect FieldKind = "single_select"
	KindMultiSelect  FieldKind = "multi_select"
	KindSingleChoice FieldKind = "single_choice"
	KindDate         FieldKind = "date"
	KindFile         FieldKind = "file"
	KindRating       FieldKind = "rating"
)

var knownKinds = map[FieldKind]bool{
	KindText: true, KindEmail: true, KindPhone: true, KindLongText: true,
	KindSingleSelect: true, KindMultiSelect: true, KindSingleChoice: true,
	KindDate: true, KindFile: true, KindRating: true,
}

// Valid reports whether k is one of the supported kinds.
func (k FieldKind) Valid() bool { return knownKinds[k] }

// IsSelection reports whether the kind picks from a list of options.
func (k FieldKind) IsSelection() bool {
	switch k {
	case KindSingleSelect, KindMultiSelect, KindSingleChoice:
		return true
	}
	return false
}

// ValueKind is the answer shape a field of this kind accepts.
func (k FieldKind) ValueKind() ValueKind {
	switch k {
	case KindMultiSelect:
		return ValueMultiText
	case KindRating:
		return ValueNumber
	default:
		return ValueText
	}
}

// Constraints are the optional per-field validation limits.
type Constraints struct {
	MinLength          *int   `json:"minLength,omitempty"`
	MaxLength          *int   `json:"maxLength,omitempty"`
	Pattern            string `json:"pattern,omitempty"`
	CustomErrorMessage string `json:"customErrorMessage,omitempty"`
}

// FieldSchema describes one input of a form. ID is stable once the form
// is published: rules and stored responses refer to it.
type FieldSchema struct {
	ID          string       `json:"id"`
	Kind        FieldKind    `json:"kind"`
	Label       string       `json:"label"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// Comparator is the test a rule applies to its source field.
type Comparator string

const (
	Equals      Comparator = "equals"
	NotEquals   Comparator = "not_equals"
	Contains    Comparator = "contains"
	GreaterThan Comparator = "greater_than"
	LessThan    Comparator = "less_than"
)

// Valid reports whether c is a supported comparator.
func (c Comparator) Valid() bool {
	switch c {
	case Equals, NotEquals, Contains, GreaterThan, LessThan:
		return true
	}
	return false
}

// Action is what a rule does to its target when its condition holds.
type Action string

const (
	ActionShow    Action = "show"
	ActionHide    Action = "hide"
	ActionRequire Action = "require"
	ActionSkipTo  Action = "skip_to"
)

// Valid reports whether a is a supported action.
func (a Action) Valid() bool {
	switch a {
	case ActionShow, ActionHide, ActionRequire, ActionSkipTo:
		return true
	}
	return false
}

// ConditionalRule is a when-then rule over two fields. Rules are evaluated
// as an ordered list; see DeriveState.
type ConditionalRule struct {
	ID              string     `json:"id"`
	SourceFieldID   string     `json:"sourceFieldId"`
	Comparator      Comparator `json:"comparator"`
	ComparisonValue string     `json:"comparisonValue"`
	Action          Action     `json:"action"`
	TargetFieldID   string     `json:"targetFieldId"`
}

// Settings carries the form-level options the fill flow honours.
type Settings struct {
	RedirectURL   string         `json:"redirectUrl,omitempty"`
	ClosedMessage string         `json:"closedMessage,omitempty"`
	ResponseLimit *int           `json:"responseLimit,omitempty"`
	ResponseCount int            `json:"responseCount"`
	CloseDate     *time.Time     `json:"closeDate,omitempty"`
	Theme         map[string]any `json:"theme,omitempty"`
}

// Form is a published form as loaded for filling. It is shared read-only
// by every session opened on it.
type Form struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Fields   []FieldSchema     `json:"fields"`
	Rules    []ConditionalRule `json:"rules"`
	Settings Settings          `json:"settings"`
}

// Field returns the field with the given id.
func (f *Form) Field(id string) (FieldSchema, bool) {
	for _, field := range f.Fields {
		if field.ID == id {
			return field, true
		}
	}
	return FieldSchema{}, false
}

// AcceptingResponses reports whether the form is still open at now.
func (f *Form) AcceptingResponses(now time.Time) bool {
	s := f.Settings
	if s.CloseDate != nil && !now.Before(*s.CloseDate) {
		return false
	}
	if s.ResponseLimit != nil && s.ResponseCount >= *s.ResponseLimit {
		return false
	}
	return true
}
