package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"gorm.io/gorm"
)

type requestMetaKey struct{}

type requestMeta struct {
	ip, userAgent string
}

// WithRequestMeta attaches the client address and user agent that
// PersistSubmission records alongside a response.
func WithRequestMeta(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ip: ip, userAgent: userAgent})
}

// Store persists forms and submissions with gorm. It implements
// forms.FormLoader and forms.SubmissionStore.
type Store struct {
	DB *gorm.DB
}

func NewStore(gdb *gorm.DB) *Store {
	return &Store{DB: gdb}
}

// LoadForm fetches a form with its fields, options and rules.
func (s *Store) LoadForm(ctx context.Context, id uint) (models.Form, error) {
	var form models.Form
	err := s.DB.WithContext(ctx).
		Preload("Fields.Options").
		Preload("Rules").
		First(&form, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return form, forms.ErrNotFound
	}
	return form, err
}

func (s *Store) LoadPublishedForm(ctx context.Context, token string) (*forms.Form, error) {
	var link models.FormLink
	err := s.DB.WithContext(ctx).
		Where("token = ? AND is_active = ?", token, true).
		First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, forms.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load form link: %w", err)
	}

	form, err := s.LoadForm(ctx, link.FormID)
	if err != nil {
		return nil, err
	}
	if form.Status != models.FormPublished {
		return nil, forms.ErrNotPublished
	}
	return ToForm(form), nil
}

// ErrDesignLocked is returned when the fields or rules of a published form
// would change. Stored responses and rules refer to its field ids.
var ErrDesignLocked = errors.New("the fields and rules of a published form cannot change, unpublish it first")

// SaveDesign replaces the fields and rules of form in one transaction.
// Old rows are removed unscoped so their keys can be reused. A form that
// is published in the database is refused with ErrDesignLocked.
func (s *Store) SaveDesign(ctx context.Context, form *models.Form, fields []forms.FieldSchema, rules []forms.ConditionalRule) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if form.ID != 0 {
			var status models.FormStatus
			if err := tx.Model(&models.Form{}).Where("id = ?", form.ID).Select("status").Scan(&status).Error; err != nil {
				return err
			}
			if status == models.FormPublished {
				return ErrDesignLocked
			}
		}

		if form.ID == 0 {
			if err := tx.Create(form).Error; err != nil {
				return err
			}
		} else if err := tx.Omit("Fields", "Rules", "Responses").Save(form).Error; err != nil {
			return err
		}

		var oldFields []uint
		if err := tx.Model(&models.Field{}).Unscoped().Where("form_id = ?", form.ID).Pluck("id", &oldFields).Error; err != nil {
			return err
		}
		if len(oldFields) > 0 {
			if err := tx.Unscoped().Where("field_id IN ?", oldFields).Delete(&models.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("form_id = ?", form.ID).Delete(&models.Field{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Unscoped().Where("form_id = ?", form.ID).Delete(&models.Rule{}).Error; err != nil {
			return err
		}

		fieldRows, ruleRows := FromSchema(form.ID, fields, rules)
		if len(fieldRows) > 0 {
			if err := tx.Create(&fieldRows).Error; err != nil {
				return err
			}
		}
		if len(ruleRows) > 0 {
			if err := tx.Create(&ruleRows).Error; err != nil {
				return err
			}
		}
		form.Fields = fieldRows
		form.Rules = ruleRows
		return nil
	})
}

// SaveDetails stores the form row alone, leaving fields, rules and the
// response count as they are.
func (s *Store) SaveDetails(ctx context.Context, form *models.Form) error {
	return s.DB.WithContext(ctx).Omit("Fields", "Rules", "Responses", "ResponseCount").Save(form).Error
}

// PersistSubmission stores sub and counts it in one transaction. The
// count only moves while the form is under its response limit, so
// concurrent submits cannot overshoot it.
func (s *Store) PersistSubmission(ctx context.Context, sub forms.Submission) (string, error) {
	formID, err := ParseFormID(sub.FormID)
	if err != nil {
		return "", fmt.Errorf("invalid form id %q: %w", sub.FormID, err)
	}
	answers, err := ToAnswers(sub)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}

	response := models.Response{
		FormID:                formID,
		SubmitterKind:         string(sub.Submitter.Kind),
		SubmitterID:           sub.Submitter.ID,
		CompletionTimeSeconds: sub.CompletionTimeSeconds,
		SubmittedAt:           sub.SubmittedAt,
		Answers:               answers,
	}
	if meta, ok := ctx.Value(requestMetaKey{}).(requestMeta); ok {
		response.IP = meta.ip
		response.UserAgent = meta.userAgent
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := incrementResponseCounters(tx, formID); err != nil {
			return err
		}
		if err := tx.Create(&response).Error; err != nil {
			return fmt.Errorf("store response: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return FormID(response.ID), nil
}

// incrementResponseCounters claims one response slot on the form. It
// returns forms.ErrFormClosed when the limit is reached or the form is gone.
func incrementResponseCounters(tx *gorm.DB, formID uint) error {
	res := tx.Model(&models.Form{}).
		Where("id = ? AND (response_limit IS NULL OR response_count < response_limit)", formID).
		UpdateColumn("response_count", gorm.Expr("response_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("increment response count: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return forms.ErrFormClosed
	}
	return nil
}

// LoadSubmission rebuilds the submission stored under response id.
func (s *Store) LoadSubmission(ctx context.Context, id uint) (models.Response, forms.Submission, error) {
	var response models.Response
	err := s.DB.WithContext(ctx).Preload("Answers").First(&response, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response, forms.Submission{}, forms.ErrNotFound
	}
	if err != nil {
		return response, forms.Submission{}, err
	}
	sub, err := ToSubmission(response)
	return response, sub, err
}

// ToSubmission converts a response row with its answers preloaded.
func ToSubmission(r models.Response) (forms.Submission, error) {
	items, err := FromAnswers(r.Answers)
	if err != nil {
		return forms.Submission{}, err
	}
	return forms.Submission{
		FormID:                FormID(r.FormID),
		Responses:             items,
		SubmittedAt:           r.SubmittedAt,
		CompletionTimeSeconds: r.CompletionTimeSeconds,
		Submitter: forms.Submitter{
			Kind: forms.SubmitterKind(r.SubmitterKind),
			ID:   r.SubmitterID,
		},
	}, nil
}
