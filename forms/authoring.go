package forms

import (
	"fmt"
	"regexp"

	"github.com/hashicorp/go-multierror"
)

// ConfigurationError is a problem in a form's design: a rule pointing at
// a missing field, a pattern that does not compile and so on. These are
// reported to the designer when the form is saved. At fill time the same
// problems degrade to no-ops.
type ConfigurationError struct {
	FieldID string `json:"fieldId,omitempty"`
	RuleID  string `json:"ruleId,omitempty"`
	Message string `json:"message"`
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.RuleID != "":
		return fmt.Sprintf("rule %s: %s", e.RuleID, e.Message)
	case e.FieldID != "":
		return fmt.Sprintf("field %s: %s", e.FieldID, e.Message)
	default:
		return e.Message
	}
}

// CheckForm reports every configuration problem in fields and rules. It
// returns nil for a valid design, otherwise a *multierror.Error whose
// entries are *ConfigurationError.
func CheckForm(fields []FieldSchema, rules []ConditionalRule) error {
	var result *multierror.Error

	fieldErr := func(id, format string, args ...any) {
		result = multierror.Append(result, &ConfigurationError{FieldID: id, Message: fmt.Sprintf(format, args...)})
	}
	ruleErr := func(id, format string, args ...any) {
		result = multierror.Append(result, &ConfigurationError{RuleID: id, Message: fmt.Sprintf(format, args...)})
	}

	known := make(map[string]bool, len(fields))
	for i, f := range fields {
		if f.ID == "" {
			fieldErr(fmt.Sprintf("#%d", i+1), "field id is empty")
			continue
		}
		if known[f.ID] {
			fieldErr(f.ID, "duplicate field id")
		}
		known[f.ID] = true

		if !f.Kind.Valid() {
			fieldErr(f.ID, "unknown kind %q", f.Kind)
		}
		if f.Kind.IsSelection() && len(f.Options) == 0 {
			fieldErr(f.ID, "%s field needs at least one option", f.Kind)
		}
		if !f.Kind.IsSelection() && len(f.Options) > 0 {
			fieldErr(f.ID, "%s field cannot have options", f.Kind)
		}

		if c := f.Constraints; c != nil {
			if c.MinLength != nil && *c.MinLength < 0 {
				fieldErr(f.ID, "minLength cannot be negative")
			}
			if c.MaxLength != nil && *c.MaxLength < 0 {
				fieldErr(f.ID, "maxLength cannot be negative")
			}
			if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
				fieldErr(f.ID, "minLength %d is greater than maxLength %d", *c.MinLength, *c.MaxLength)
			}
			if c.Pattern != "" {
				if _, err := regexp.Compile(c.Pattern); err != nil {
					fieldErr(f.ID, "invalid pattern: %v", err)
				}
			}
		}
	}

	seenRules := make(map[string]bool, len(rules))
	for i, r := range rules {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i+1)
			ruleErr(id, "rule id is empty")
		} else if seenRules[id] {
			ruleErr(id, "duplicate rule id")
		}
		seenRules[id] = true

		if !r.Comparator.Valid() {
			ruleErr(id, "unknown comparator %q", r.Comparator)
		}
		if !r.Action.Valid() {
			ruleErr(id, "unknown action %q", r.Action)
		}
		if !known[r.SourceFieldID] {
			ruleErr(id, "source field %q does not exist", r.SourceFieldID)
		}
		if !known[r.TargetFieldID] {
			ruleErr(id, "target field %q does not exist", r.TargetFieldID)
		}
		if r.SourceFieldID != "" && r.SourceFieldID == r.TargetFieldID {
			ruleErr(id, "a field cannot be conditioned on itself")
		}
	}

	return result.ErrorOrNil()
}

// ConfigurationErrors flattens the result of CheckForm.
func ConfigurationErrors(err error) []*ConfigurationError {
	if err == nil {
		return nil
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		if ce, ok := err.(*ConfigurationError); ok {
			return []*ConfigurationError{ce}
		}
		return []*ConfigurationError{{Message: err.Error()}}
	}

	out := make([]*ConfigurationError, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		if ce, ok := e.(*ConfigurationError); ok {
			out = append(out, ce)
		} else {
			out = append(out, &ConfigurationError{Message: e.Error()})
		}
	}
	return out
}
