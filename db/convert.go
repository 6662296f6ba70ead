package db

import (
	"encoding/json"
	"slices"
	"strconv"

	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"gorm.io/datatypes"
)

// FormID renders a form row id as the core's opaque form id.
func FormID(id uint) string { return strconv.FormatUint(uint64(id), 10) }

// ParseFormID is the inverse of FormID.
func ParseFormID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	return uint(n), err
}

// ToSchema converts stored fields and rules to the core types, in their
// saved order.
func ToSchema(f models.Form) ([]forms.FieldSchema, []forms.ConditionalRule) {
	fieldRows := slices.Clone(f.Fields)
	slices.SortStableFunc(fieldRows, func(a, b models.Field) int { return a.Order - b.Order })

	fields := make([]forms.FieldSchema, 0, len(fieldRows))
	for _, row := range fieldRows {
		options := slices.Clone(row.Options)
		slices.SortStableFunc(options, func(a, b models.Option) int { return a.Order - b.Order })

		field := forms.FieldSchema{
			ID:       row.Key,
			Kind:     forms.FieldKind(row.Kind),
			Label:    row.Label,
			Required: row.Required,
		}
		for _, o := range options {
			field.Options = append(field.Options, o.Text)
		}
		if row.MinLength != nil || row.MaxLength != nil || row.Pattern != "" || row.CustomErrorMessage != "" {
			field.Constraints = &forms.Constraints{
				MinLength:          row.MinLength,
				MaxLength:          row.MaxLength,
				Pattern:            row.Pattern,
				CustomErrorMessage: row.CustomErrorMessage,
			}
		}
		fields = append(fields, field)
	}

	ruleRows := slices.Clone(f.Rules)
	slices.SortStableFunc(ruleRows, func(a, b models.Rule) int { return a.Order - b.Order })

	rules := make([]forms.ConditionalRule, 0, len(ruleRows))
	for _, row := range ruleRows {
		rules = append(rules, forms.ConditionalRule{
			ID:              row.Key,
			SourceFieldID:   row.SourceFieldKey,
			Comparator:      forms.Comparator(row.Comparator),
			ComparisonValue: row.ComparisonValue,
			Action:          forms.Action(row.Action),
			TargetFieldID:   row.TargetFieldKey,
		})
	}

	return fields, rules
}

// ToForm converts a stored form with its fields and rules preloaded.
func ToForm(f models.Form) *forms.Form {
	fields, rules := ToSchema(f)
	return &forms.Form{
		ID:     FormID(f.ID),
		Title:  f.Title,
		Fields: fields,
		Rules:  rules,
		Settings: forms.Settings{
			RedirectURL:   f.RedirectURL,
			ClosedMessage: f.ClosedMessage,
			ResponseLimit: f.ResponseLimit,
			ResponseCount: f.ResponseCount,
			CloseDate:     f.CloseDate,
			Theme:         f.Theme,
		},
	}
}

// FromSchema converts core fields and rules to rows for formID. Slice
// order becomes the stored order.
func FromSchema(formID uint, fields []forms.FieldSchema, rules []forms.ConditionalRule) ([]models.Field, []models.Rule) {
	fieldRows := make([]models.Field, 0, len(fields))
	for i, f := range fields {
		row := models.Field{
			FormID:   formID,
			Key:      f.ID,
			Kind:     string(f.Kind),
			Label:    f.Label,
			Required: f.Required,
			Order:    i,
		}
		for j, o := range f.Options {
			row.Options = append(row.Options, models.Option{Text: o, Order: j})
		}
		if c := f.Constraints; c != nil {
			row.MinLength = c.MinLength
			row.MaxLength = c.MaxLength
			row.Pattern = c.Pattern
			row.CustomErrorMessage = c.CustomErrorMessage
		}
		fieldRows = append(fieldRows, row)
	}

	ruleRows := make([]models.Rule, 0, len(rules))
	for i, r := range rules {
		ruleRows = append(ruleRows, models.Rule{
			FormID:          formID,
			Key:             r.ID,
			Order:           i,
			SourceFieldKey:  r.SourceFieldID,
			Comparator:      string(r.Comparator),
			ComparisonValue: r.ComparisonValue,
			Action:          string(r.Action),
			TargetFieldKey:  r.TargetFieldID,
		})
	}

	return fieldRows, ruleRows
}

// ToAnswers converts the items of a submission to answer rows.
func ToAnswers(sub forms.Submission) ([]models.Answer, error) {
	answers := make([]models.Answer, 0, len(sub.Responses))
	for i, item := range sub.Responses {
		raw, err := json.Marshal(item.Value)
		if err != nil {
			return nil, err
		}
		answers = append(answers, models.Answer{
			FieldKey:   item.FieldID,
			FieldLabel: item.FieldLabel,
			FieldKind:  string(item.FieldKind),
			Position:   i,
			Value:      datatypes.JSON(raw),
		})
	}
	return answers, nil
}

// FromAnswers converts answer rows back to submission items in their
// stored order.
func FromAnswers(rows []models.Answer) ([]forms.ResponseItem, error) {
	rows = slices.Clone(rows)
	slices.SortStableFunc(rows, func(a, b models.Answer) int { return a.Position - b.Position })

	items := make([]forms.ResponseItem, 0, len(rows))
	for _, row := range rows {
		var v forms.AnswerValue
		if len(row.Value) > 0 {
			if err := json.Unmarshal(row.Value, &v); err != nil {
				return nil, err
			}
		}
		items = append(items, forms.ResponseItem{
			FieldID:    row.FieldKey,
			FieldLabel: row.FieldLabel,
			FieldKind:  forms.FieldKind(row.FieldKind),
			Value:      v,
		})
	}
	return items, nil
}
