package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func codes(vs []ConstraintViolation) []ViolationCode {
	out := make([]ViolationCode, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Code)
	}
	return out
}

func TestValidateRequired(t *testing.T) {
	field := FieldSchema{ID: "name", Kind: KindText, Label: "Name", Required: true}

	t.Run("absent value", func(t *testing.T) {
		assert.Equal(t, []ViolationCode{MissingRequired}, codes(Validate(field, AnswerValue{})))
	})

	t.Run("blank string", func(t *testing.T) {
		assert.Equal(t, []ViolationCode{MissingRequired}, codes(Validate(field, Text("   "))))
	})

	t.Run("empty list", func(t *testing.T) {
		multi := FieldSchema{ID: "tags", Kind: KindMultiSelect, Options: []string{"a"}, Required: true}
		assert.Equal(t, []ViolationCode{MissingRequired}, codes(Validate(multi, MultiText())))
	})

	t.Run("optional empty passes", func(t *testing.T) {
		field.Required = false
		assert.Empty(t, Validate(field, Text("")))
	})
}

func TestValidateLength(t *testing.T) {
	field := FieldSchema{ID: "code", Kind: KindText, Constraints: &Constraints{MinLength: intPtr(5)}}

	assert.Equal(t, []ViolationCode{TooShort}, codes(Validate(field, Text("abc"))))
	assert.Empty(t, Validate(field, Text("abcdef")))

	field.Constraints = &Constraints{MaxLength: intPtr(3)}
	assert.Equal(t, []ViolationCode{TooLong}, codes(Validate(field, Text("abcd"))))
	assert.Empty(t, Validate(field, Text("abc")))

	t.Run("counts runes not bytes", func(t *testing.T) {
		assert.Empty(t, Validate(field, Text("héé")))
	})

	t.Run("multi select counts selections", func(t *testing.T) {
		multi := FieldSchema{
			ID: "pick", Kind: KindMultiSelect, Options: []string{"a", "b", "c"},
			Constraints: &Constraints{MinLength: intPtr(2)},
		}
		assert.Equal(t, []ViolationCode{TooShort}, codes(Validate(multi, MultiText("a"))))
		assert.Empty(t, Validate(multi, MultiText("a", "b")))
	})
}

func TestValidatePattern(t *testing.T) {
	t.Run("unanchored match", func(t *testing.T) {
		field := FieldSchema{ID: "ref", Kind: KindText, Constraints: &Constraints{Pattern: `\d{3}`}}
		assert.Empty(t, Validate(field, Text("ref-123-x")))
		assert.Equal(t, []ViolationCode{PatternMismatch}, codes(Validate(field, Text("ref-12"))))
	})

	t.Run("custom message", func(t *testing.T) {
		field := FieldSchema{ID: "zip", Kind: KindText, Constraints: &Constraints{
			Pattern: `^\d{5}$`, CustomErrorMessage: "Five digits please",
		}}
		vs := Validate(field, Text("12"))
		if assert.Len(t, vs, 1) {
			assert.Equal(t, "Five digits please", vs[0].Message)
		}
	})

	t.Run("kind default message", func(t *testing.T) {
		field := FieldSchema{ID: "mail", Kind: KindEmail, Constraints: &Constraints{Pattern: `@`}}
		vs := Validate(field, Text("nope"))
		if assert.Len(t, vs, 1) {
			assert.Equal(t, "Please enter a valid email address", vs[0].Message)
		}
	})

	t.Run("invalid pattern fails open", func(t *testing.T) {
		field := FieldSchema{ID: "bad", Kind: KindText, Constraints: &Constraints{Pattern: `([a-z`}}
		for _, in := range []string{"", "abc", "(((", "12345", "[a-z"} {
			for _, v := range Validate(field, Text(in)) {
				assert.NotEqual(t, PatternMismatch, v.Code, "input %q", in)
			}
		}
	})

	t.Run("not checked on empty optional value", func(t *testing.T) {
		field := FieldSchema{ID: "opt", Kind: KindText, Constraints: &Constraints{Pattern: `^x$`}}
		assert.Empty(t, Validate(field, Text("")))
	})
}

func TestValidateOptions(t *testing.T) {
	field := FieldSchema{ID: "a", Kind: KindSingleSelect, Options: []string{"Yes", "No"}}
	assert.Empty(t, Validate(field, Text("Yes")))
	assert.Equal(t, []ViolationCode{InvalidOption}, codes(Validate(field, Text("Maybe"))))

	multi := FieldSchema{ID: "m", Kind: KindMultiSelect, Options: []string{"x", "y"}}
	assert.Equal(t, []ViolationCode{InvalidOption}, codes(Validate(multi, MultiText("x", "z"))))
}

func TestValidateIsDeterministic(t *testing.T) {
	field := FieldSchema{ID: "code", Kind: KindText, Required: true, Constraints: &Constraints{
		MinLength: intPtr(4), Pattern: `^[A-Z]+$`,
	}}
	first := Validate(field, Text("ab"))
	second := Validate(field, Text("ab"))
	assert.Equal(t, first, second)
	assert.Equal(t, []ViolationCode{TooShort, PatternMismatch}, codes(first))
}
