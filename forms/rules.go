package forms

import (
	"strconv"
	"strings"
)

// FieldState is the derived per-field state. It is recomputed from the
// answers on every change and never stored.
type FieldState struct {
	Visible             bool `json:"visible"`
	EffectivelyRequired bool `json:"effectivelyRequired"`
}

// State is the result of one rule pass.
type State struct {
	Fields map[string]FieldState `json:"fields"`
	// SkipTo is the target of the last matching skip_to rule. It is a hint
	// for paginating UIs; visibility alone decides what is asked.
	SkipTo string `json:"skipTo,omitempty"`
	// Ignored lists the rules that did nothing because their target is
	// not a field of the form or their action is unknown.
	Ignored []string `json:"ignored,omitempty"`
}

// Visible reports whether the field is shown. Unknown ids are not.
func (s State) Visible(fieldID string) bool { return s.Fields[fieldID].Visible }

// Required reports the effective requirement of the field.
func (s State) Required(fieldID string) bool { return s.Fields[fieldID].EffectivelyRequired }

// DeriveState runs one forward pass of rules over answers.
//
// Rules are applied in slice order and the last matching rule wins on each
// axis: show/hide write visibility, require writes the requirement, skip_to
// writes the skip hint. A rule whose target is not a known field or whose
// action is unknown does nothing and is listed in Ignored. Hidden fields
// are never required once the pass completes.
//
// DeriveState does not modify its inputs; equal inputs give equal results.
func DeriveState(rules []ConditionalRule, fields []FieldSchema, answers AnswerMap) State {
	state := State{Fields: make(map[string]FieldState, len(fields))}
	for _, f := range fields {
		state.Fields[f.ID] = FieldState{Visible: true, EffectivelyRequired: f.Required}
	}

	for _, rule := range rules {
		fs, known := state.Fields[rule.TargetFieldID]
		if !known || !rule.Action.Valid() {
			state.Ignored = append(state.Ignored, rule.ID)
			continue
		}

		if !conditionHolds(rule, answers) {
			continue
		}

		switch rule.Action {
		case ActionShow:
			fs.Visible = true
		case ActionHide:
			fs.Visible = false
		case ActionRequire:
			fs.EffectivelyRequired = true
		case ActionSkipTo:
			state.SkipTo = rule.TargetFieldID
			continue
		}
		state.Fields[rule.TargetFieldID] = fs
	}

	for id, fs := range state.Fields {
		if !fs.Visible && fs.EffectivelyRequired {
			fs.EffectivelyRequired = false
			state.Fields[id] = fs
		}
	}

	return state
}

// conditionHolds evaluates the rule's comparator against the current
// answer of its source field. It never fails: anything it cannot compare
// is false.
func conditionHolds(rule ConditionalRule, answers AnswerMap) bool {
	answer := answers[rule.SourceFieldID]

	switch rule.Comparator {
	case Equals:
		return equalsTrimmed(answer, rule.ComparisonValue)
	case NotEquals:
		return !equalsTrimmed(answer, rule.ComparisonValue)
	case Contains:
		return contains(answer, rule.ComparisonValue)
	case GreaterThan:
		return compareNumeric(answer, rule.ComparisonValue, func(a, b float64) bool { return a > b })
	case LessThan:
		return compareNumeric(answer, rule.ComparisonValue, func(a, b float64) bool { return a < b })
	default:
		return false
	}
}

// equalsTrimmed compares string forms after trimming. An absent answer
// compares as "". Numbers compare by their shortest decimal form.
func equalsTrimmed(answer AnswerValue, want string) bool {
	want = strings.TrimSpace(want)
	if n, ok := answer.NumberValue(); ok {
		if w, err := parseNumber(want); err == nil {
			return n == w
		}
	}
	return strings.TrimSpace(answer.String()) == want
}

// contains is a substring test on text. For lists it holds when any
// element contains the comparison value.
func contains(answer AnswerValue, want string) bool {
	switch answer.Kind() {
	case ValueText:
		s, _ := answer.TextValue()
		return strings.Contains(s, want)
	case ValueMultiText:
		items, _ := answer.Items()
		for _, item := range items {
			if item == want || strings.Contains(item, want) {
				return true
			}
		}
		return false
	case ValueNumber:
		return strings.Contains(answer.String(), want)
	default:
		return false
	}
}

// compareNumeric returns false when either side is not a number.
func compareNumeric(answer AnswerValue, want string, cmp func(float64, float64) bool) bool {
	var a float64
	switch answer.Kind() {
	case ValueNumber:
		a, _ = answer.NumberValue()
	case ValueText:
		s, _ := answer.TextValue()
		n, err := parseNumber(s)
		if err != nil {
			return false
		}
		a = n
	default:
		return false
	}

	b, err := parseNumber(want)
	if err != nil {
		return false
	}
	return cmp(a, b)
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
