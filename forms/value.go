package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ValueKind tags the shape held by an AnswerValue.
type ValueKind int

const (
	ValueAbsent ValueKind = iota
	ValueText
	ValueMultiText
	ValueNumber
)

func (k ValueKind) String() string {
	switch k {
	case ValueText:
		return "text"
	case ValueMultiText:
		return "multi_text"
	case ValueNumber:
		return "number"
	default:
		return "absent"
	}
}

// AnswerValue is a respondent's answer to one field: a string, a list of
// strings, or a number. The zero value is an absent answer.
type AnswerValue struct {
	kind   ValueKind
	text   string
	items  []string
	number float64
}

// AnswerMap holds the current answers of a session keyed by field id.
type AnswerMap map[string]AnswerValue

// Text returns a single string answer.
func Text(s string) AnswerValue { return AnswerValue{kind: ValueText, text: s} }

// MultiText returns a list answer. The slice is copied.
func MultiText(items ...string) AnswerValue {
	cp := make([]string, len(items))
	copy(cp, items)
	return AnswerValue{kind: ValueMultiText, items: cp}
}

// Number returns a numeric answer.
func Number(n float64) AnswerValue { return AnswerValue{kind: ValueNumber, number: n} }

// EmptyValue is the value recorded for a visible field left unanswered.
func EmptyValue(kind FieldKind) AnswerValue {
	switch kind.ValueKind() {
	case ValueMultiText:
		return MultiText()
	case ValueNumber:
		return AnswerValue{}
	default:
		return Text("")
	}
}

func (v AnswerValue) Kind() ValueKind { return v.kind }

// TextValue returns the string of a text answer.
func (v AnswerValue) TextValue() (string, bool) { return v.text, v.kind == ValueText }

// Items returns a copy of the elements of a list answer.
func (v AnswerValue) Items() ([]string, bool) {
	if v.kind != ValueMultiText {
		return nil, false
	}
	cp := make([]string, len(v.items))
	copy(cp, v.items)
	return cp, true
}

// NumberValue returns the number of a numeric answer.
func (v AnswerValue) NumberValue() (float64, bool) { return v.number, v.kind == ValueNumber }

// IsEmpty reports whether the answer counts as "not given".
func (v AnswerValue) IsEmpty() bool {
	switch v.kind {
	case ValueText:
		return strings.TrimSpace(v.text) == ""
	case ValueMultiText:
		return len(v.items) == 0
	case ValueNumber:
		return false
	default:
		return true
	}
}

// Len is the length used by min/max length constraints: runes for text,
// elements for lists.
func (v AnswerValue) Len() int {
	switch v.kind {
	case ValueText:
		return utf8.RuneCountInString(v.text)
	case ValueMultiText:
		return len(v.items)
	default:
		return 0
	}
}

// String renders the answer for comparisons and exports. Lists are joined
// with ", ".
func (v AnswerValue) String() string {
	switch v.kind {
	case ValueText:
		return v.text
	case ValueMultiText:
		return strings.Join(v.items, ", ")
	case ValueNumber:
		return strconv.FormatFloat(v.number, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether two answers hold the same shape and content.
func (v AnswerValue) Equal(o AnswerValue) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueText:
		return v.text == o.text
	case ValueNumber:
		return v.number == o.number
	case ValueMultiText:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if v.items[i] != o.items[i] {
				return false
			}
		}
	}
	return true
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueText:
		return json.Marshal(v.text)
	case ValueMultiText:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	case ValueNumber:
		return json.Marshal(v.number)
	default:
		return []byte("null"), nil
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = AnswerValue{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Text(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("answer list must contain strings: %w", err)
		}
		*v = MultiText(items...)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer must be a string, list of strings or number: %w", err)
		}
		*v = Number(n)
	}
	return nil
}
