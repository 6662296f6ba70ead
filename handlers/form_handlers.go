package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"gorm.io/gorm"
)

type formPayload struct {
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	FolderID    *uint                   `json:"folderId"`
	TeamID      *uint                   `json:"teamId"`
	Fields      []forms.FieldSchema     `json:"fields"`
	Rules       []forms.ConditionalRule `json:"rules"`
	Settings    forms.Settings          `json:"settings"`
}

type formView struct {
	ID          uint                    `json:"id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description"`
	Status      models.FormStatus       `json:"status"`
	FolderID    *uint                   `json:"folderId,omitempty"`
	TeamID      *uint                   `json:"teamId,omitempty"`
	Fields      []forms.FieldSchema     `json:"fields"`
	Rules       []forms.ConditionalRule `json:"rules"`
	Settings    forms.Settings          `json:"settings"`
	Link        string                  `json:"link,omitempty"`
	Version     int                     `json:"version"`
	CreatedAt   time.Time               `json:"createdAt"`
	UpdatedAt   time.Time               `json:"updatedAt"`
}

type formSummary struct {
	ID            uint              `json:"id"`
	Title         string            `json:"title"`
	Status        models.FormStatus `json:"status"`
	FolderID      *uint             `json:"folderId,omitempty"`
	ResponseCount int               `json:"responseCount"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func newFormView(f models.Form) formView {
	core := db.ToForm(f)
	return formView{
		ID:          f.ID,
		Title:       f.Title,
		Description: f.Description,
		Status:      f.Status,
		FolderID:    f.FolderID,
		TeamID:      f.TeamID,
		Fields:      core.Fields,
		Rules:       core.Rules,
		Settings:    core.Settings,
		Link:        f.Link,
		Version:     f.Version,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// formScope limits a query to the forms userID owns or shares through a
// team.
func (s *Server) formScope(r *http.Request, userID uint) *gorm.DB {
	teams := s.DB.Table("user_teams").Select("team_id").Where("user_id = ?", userID)
	return s.DB.WithContext(r.Context()).Where("forms.user_id = ? OR forms.team_id IN (?)", userID, teams)
}

func (s *Server) loadForm(r *http.Request) (models.Form, error) {
	var form models.Form
	id, err := pathID(r, "id")
	if err != nil {
		return form, fmt.Errorf("%w: %v", forms.ErrNotFound, err)
	}
	err = s.formScope(r, currentUser(r)).
		Preload("Fields.Options").
		Preload("Rules").
		First(&form, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return form, forms.ErrNotFound
	}
	if err != nil {
		return form, err
	}

	var link models.FormLink
	if err := s.DB.Where("form_id = ? AND is_active = ?", form.ID, true).First(&link).Error; err == nil {
		form.Link = "/s/" + link.Token
	}
	return form, nil
}

// writeDesignErrors answers 422 with the configuration problems of err.
func writeDesignErrors(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"errors": forms.ConfigurationErrors(err),
	})
}

// apply copies the designer-editable parts of p onto f after checking the
// folder and team belong to userID.
func (s *Server) apply(r *http.Request, userID uint, f *models.Form, p formPayload) error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		return errors.New("title is required")
	}
	if p.FolderID != nil {
		var n int64
		s.DB.WithContext(r.Context()).Model(&models.Folder{}).Where("id = ? AND owner_id = ?", *p.FolderID, userID).Count(&n)
		if n == 0 {
			return errors.New("unknown folder")
		}
	}
	if p.TeamID != nil && !s.isTeamMember(r, *p.TeamID, userID) {
		return errors.New("unknown team")
	}

	f.Title = p.Title
	f.Description = p.Description
	f.FolderID = p.FolderID
	f.TeamID = p.TeamID
	f.RedirectURL = p.Settings.RedirectURL
	f.ClosedMessage = p.Settings.ClosedMessage
	f.ResponseLimit = p.Settings.ResponseLimit
	f.CloseDate = p.Settings.CloseDate
	f.Theme = p.Settings.Theme
	return nil
}

func (s *Server) CreateForm(w http.ResponseWriter, r *http.Request) {
	var p formPayload
	if err := decodeJSON(w, r, &p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.createForm(w, r, p)
}

func (s *Server) createForm(w http.ResponseWriter, r *http.Request, p formPayload) {
	userID := currentUser(r)
	form := models.Form{UserID: userID, Status: models.FormDraft, Version: 1}
	if err := s.apply(r, userID, &form, p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := forms.CheckForm(p.Fields, p.Rules); err != nil {
		writeDesignErrors(w, err)
		return
	}

	if err := s.Store.SaveDesign(r.Context(), &form, p.Fields, p.Rules); err != nil {
		s.fail(w, r, err)
		return
	}

	s.Log.WithField("form", form.ID).Info("form created")
	writeJSON(w, http.StatusCreated, newFormView(form))
}

func (s *Server) ListForms(w http.ResponseWriter, r *http.Request) {
	query := s.formScope(r, currentUser(r)).Order("updated_at DESC")
	if folder := r.URL.Query().Get("folder"); folder != "" {
		query = query.Where("folder_id = ?", folder)
	}

	var rows []models.Form
	if err := query.Find(&rows).Error; err != nil {
		s.fail(w, r, err)
		return
	}

	summaries := make([]formSummary, 0, len(rows))
	for _, f := range rows {
		summaries = append(summaries, formSummary{
			ID:            f.ID,
			Title:         f.Title,
			Status:        f.Status,
			FolderID:      f.FolderID,
			ResponseCount: f.ResponseCount,
			UpdatedAt:     f.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFormView(form))
}

// UpdateForm edits a form. Drafts take a new design; a published form
// only takes new details, since stored responses and running sessions
// refer to its field ids. Resending its current design is allowed.
func (s *Server) UpdateForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var p formPayload
	if err := decodeJSON(w, r, &p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if form.Status == models.FormPublished {
		if (p.Fields != nil || p.Rules != nil) && !sameDesign(form, p.Fields, p.Rules) {
			s.fail(w, r, db.ErrDesignLocked)
			return
		}
		if err := s.apply(r, currentUser(r), &form, p); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.Store.SaveDetails(r.Context(), &form); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newFormView(form))
		return
	}

	if err := s.apply(r, currentUser(r), &form, p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := forms.CheckForm(p.Fields, p.Rules); err != nil {
		writeDesignErrors(w, err)
		return
	}

	// running sessions keep the design they started with
	form.Version++
	if err := s.Store.SaveDesign(r.Context(), &form, p.Fields, p.Rules); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newFormView(form))
}

// sameDesign reports whether fields and rules match what form stores.
func sameDesign(form models.Form, fields []forms.FieldSchema, rules []forms.ConditionalRule) bool {
	storedFields, storedRules := db.ToSchema(form)
	return slices.EqualFunc(storedFields, fields, sameField) && slices.Equal(storedRules, rules)
}

func sameField(a, b forms.FieldSchema) bool {
	if a.ID != b.ID || a.Kind != b.Kind || a.Label != b.Label || a.Required != b.Required {
		return false
	}
	if !slices.Equal(a.Options, b.Options) {
		return false
	}
	ca, cb := constraintsOf(a), constraintsOf(b)
	return sameLength(ca.MinLength, cb.MinLength) && sameLength(ca.MaxLength, cb.MaxLength) &&
		ca.Pattern == cb.Pattern && ca.CustomErrorMessage == cb.CustomErrorMessage
}

func constraintsOf(f forms.FieldSchema) forms.Constraints {
	if f.Constraints == nil {
		return forms.Constraints{}
	}
	return *f.Constraints
}

func sameLength(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Server) DeleteForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	err = s.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.FormLink{}).Where("form_id = ?", form.ID).Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Delete(&form).Error
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) DuplicateForm(w http.ResponseWriter, r *http.Request) {
	src, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, rules := db.ToSchema(src)
	dup := models.Form{
		UserID:        currentUser(r),
		TeamID:        src.TeamID,
		FolderID:      src.FolderID,
		Title:         "Copy of " + src.Title,
		Description:   src.Description,
		Status:        models.FormDraft,
		ResponseLimit: src.ResponseLimit,
		CloseDate:     src.CloseDate,
		RedirectURL:   src.RedirectURL,
		ClosedMessage: src.ClosedMessage,
		Theme:         src.Theme,
		Version:       1,
	}
	if err := s.Store.SaveDesign(r.Context(), &dup, fields, rules); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFormView(dup))
}

// PublishForm checks the stored design and opens the form for responses
// under a share link. Republishing reuses the existing link.
func (s *Server) PublishForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, rules := db.ToSchema(form)
	if len(fields) == 0 {
		writeDesignErrors(w, &forms.ConfigurationError{Message: "a form needs at least one field to be published"})
		return
	}
	if err := forms.CheckForm(fields, rules); err != nil {
		writeDesignErrors(w, err)
		return
	}

	err = s.DB.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&form).Update("status", models.FormPublished).Error; err != nil {
			return err
		}
		var link models.FormLink
		err := tx.Where("form_id = ? AND is_active = ?", form.ID, true).First(&link).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			link = models.FormLink{FormID: form.ID, Token: uuid.NewString(), IsActive: true}
			err = tx.Create(&link).Error
		}
		if err != nil {
			return err
		}
		form.Link = "/s/" + link.Token
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	form.Status = models.FormPublished
	s.Log.WithField("form", form.ID).Info("form published")
	writeJSON(w, http.StatusOK, newFormView(form))
}

func (s *Server) UnpublishForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.DB.WithContext(r.Context()).Model(&form).Update("status", models.FormDraft).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	form.Status = models.FormDraft
	writeJSON(w, http.StatusOK, newFormView(form))
}

// kindAliases maps the question types emitted by template and AI
// generators to field kinds.
var kindAliases = map[string]forms.FieldKind{
	"short_text":      forms.KindText,
	"textarea":        forms.KindLongText,
	"paragraph":       forms.KindLongText,
	"dropdown":        forms.KindSingleSelect,
	"select":          forms.KindSingleSelect,
	"checkbox":        forms.KindMultiSelect,
	"checkboxes":      forms.KindMultiSelect,
	"multiplechoice":  forms.KindSingleChoice,
	"multiple_choice": forms.KindSingleChoice,
	"radio":           forms.KindSingleChoice,
	"scale":           forms.KindRating,
	"upload":          forms.KindFile,
}

// ImportForm creates a draft from a generated schema. Missing ids are
// assigned and loose kind names are normalised before the usual checks.
func (s *Server) ImportForm(w http.ResponseWriter, r *http.Request) {
	var p formPayload
	if err := decodeJSON(w, r, &p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	normaliseImport(&p)
	s.createForm(w, r, p)
}

func normaliseImport(p *formPayload) {
	taken := make(map[string]bool)
	for _, f := range p.Fields {
		if f.ID != "" {
			taken[f.ID] = true
		}
	}
	next := 1
	for i := range p.Fields {
		f := &p.Fields[i]
		if f.ID == "" {
			for taken[fmt.Sprintf("field_%d", next)] {
				next++
			}
			f.ID = fmt.Sprintf("field_%d", next)
			taken[f.ID] = true
		}

		kind := forms.FieldKind(strings.ToLower(strings.TrimSpace(string(f.Kind))))
		if alias, ok := kindAliases[string(kind)]; ok {
			kind = alias
		}
		f.Kind = kind
		f.Label = strings.TrimSpace(f.Label)

		seen := make(map[string]bool)
		options := f.Options[:0]
		for _, o := range f.Options {
			o = strings.TrimSpace(o)
			if o == "" || seen[o] {
				continue
			}
			seen[o] = true
			options = append(options, o)
		}
		f.Options = options
	}

	for i := range p.Rules {
		if p.Rules[i].ID == "" {
			p.Rules[i].ID = fmt.Sprintf("rule_%d", i+1)
		}
	}
}
