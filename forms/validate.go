package forms

import (
	"fmt"
	"regexp"
)

// ViolationCode identifies the constraint an answer broke.
type ViolationCode string

const (
	MissingRequired ViolationCode = "MISSING_REQUIRED"
	TooShort        ViolationCode = "TOO_SHORT"
	TooLong         ViolationCode = "TOO_LONG"
	PatternMismatch ViolationCode = "PATTERN_MISMATCH"
	InvalidOption   ViolationCode = "INVALID_OPTION"
)

// ConstraintViolation is one failed check on one field.
type ConstraintViolation struct {
	Code    ViolationCode `json:"code"`
	Message string        `json:"message"`
}

// ViolationMap groups violations by field id.
type ViolationMap map[string][]ConstraintViolation

// Validate checks value against field. The required check uses
// field.Required; callers that derived a different requirement pass a copy
// of the field carrying it. Validate has no side effects.
func Validate(field FieldSchema, value AnswerValue) []ConstraintViolation {
	var violations []ConstraintViolation

	if value.IsEmpty() {
		if field.Required {
			violations = append(violations, ConstraintViolation{
				Code:    MissingRequired,
				Message: fmt.Sprintf("%s is required", displayName(field)),
			})
		}
		return violations
	}

	if c := field.Constraints; c != nil && lengthApplies(value) {
		n := value.Len()
		if c.MinLength != nil && n < *c.MinLength {
			violations = append(violations, ConstraintViolation{
				Code:    TooShort,
				Message: tooShortMessage(value, *c.MinLength),
			})
		}
		if c.MaxLength != nil && n > *c.MaxLength {
			violations = append(violations, ConstraintViolation{
				Code:    TooLong,
				Message: tooLongMessage(value, *c.MaxLength),
			})
		}
	}

	if c := field.Constraints; c != nil && c.Pattern != "" && !matchesPattern(c.Pattern, value) {
		msg := c.CustomErrorMessage
		if msg == "" {
			msg = defaultPatternMessage(field.Kind)
		}
		violations = append(violations, ConstraintViolation{Code: PatternMismatch, Message: msg})
	}

	if field.Kind.IsSelection() && len(field.Options) > 0 {
		if bad, ok := firstUnknownOption(field.Options, value); ok {
			violations = append(violations, ConstraintViolation{
				Code:    InvalidOption,
				Message: fmt.Sprintf("%q is not one of the available options", bad),
			})
		}
	}

	return violations
}

func displayName(field FieldSchema) string {
	if field.Label != "" {
		return field.Label
	}
	return "This field"
}

func lengthApplies(v AnswerValue) bool {
	return v.Kind() == ValueText || v.Kind() == ValueMultiText
}

func tooShortMessage(v AnswerValue, min int) string {
	if v.Kind() == ValueMultiText {
		return fmt.Sprintf("Select at least %d options", min)
	}
	return fmt.Sprintf("Must be at least %d characters", min)
}

func tooLongMessage(v AnswerValue, max int) string {
	if v.Kind() == ValueMultiText {
		return fmt.Sprintf("Select at most %d options", max)
	}
	return fmt.Sprintf("Must be at most %d characters", max)
}

func defaultPatternMessage(kind FieldKind) string {
	switch kind {
	case KindEmail:
		return "Please enter a valid email address"
	case KindPhone:
		return "Please enter a valid phone number"
	case KindDate:
		return "Please enter a valid date"
	default:
		return "Value does not match the required format"
	}
}

// matchesPattern treats pattern as an unanchored regular expression.
// A pattern that does not compile matches everything: a bad pattern
// already in storage must not block respondents.
func matchesPattern(pattern string, value AnswerValue) bool {
	re := compilePattern(pattern)
	if re == nil {
		return true
	}
	switch value.Kind() {
	case ValueText:
		s, _ := value.TextValue()
		return re.MatchString(s)
	case ValueMultiText:
		items, _ := value.Items()
		for _, item := range items {
			if !re.MatchString(item) {
				return false
			}
		}
		return true
	case ValueNumber:
		return re.MatchString(value.String())
	}
	return true
}

// compilePattern returns nil for a pattern that does not compile.
func compilePattern(pattern string) *regexp.Regexp {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil
	}
	return re
}

func firstUnknownOption(options []string, value AnswerValue) (string, bool) {
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	switch value.Kind() {
	case ValueText:
		s, _ := value.TextValue()
		if !allowed[s] {
			return s, true
		}
	case ValueMultiText:
		items, _ := value.Items()
		for _, item := range items {
			if !allowed[item] {
				return item, true
			}
		}
	}
	return "", false
}
