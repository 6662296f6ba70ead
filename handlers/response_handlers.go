package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
)

const defaultPageSize = 50

type responseView struct {
	ID                    uint                 `json:"id"`
	SubmittedAt           time.Time            `json:"submittedAt"`
	CompletionTimeSeconds float64              `json:"completionTimeSeconds"`
	Submitter             forms.Submitter      `json:"submitter"`
	Responses             []forms.ResponseItem `json:"responses"`
}

func newResponseView(r models.Response) (responseView, error) {
	sub, err := db.ToSubmission(r)
	if err != nil {
		return responseView{}, err
	}
	return responseView{
		ID:                    r.ID,
		SubmittedAt:           sub.SubmittedAt,
		CompletionTimeSeconds: sub.CompletionTimeSeconds,
		Submitter:             sub.Submitter,
		Responses:             sub.Responses,
	}, nil
}

func (s *Server) ListResponses(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = defaultPageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := s.DB.Model(&models.Response{}).Where("form_id = ?", form.ID).Count(&total).Error; err != nil {
		s.fail(w, r, err)
		return
	}

	var rows []models.Response
	err = s.DB.WithContext(r.Context()).
		Where("form_id = ?", form.ID).
		Preload("Answers").
		Order("submitted_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		s.fail(w, r, err)
		return
	}

	views := make([]responseView, 0, len(rows))
	for _, row := range rows {
		v, err := newResponseView(row)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":     total,
		"responses": views,
	})
}

func (s *Server) loadResponse(r *http.Request) (models.Response, error) {
	var response models.Response
	form, err := s.loadForm(r)
	if err != nil {
		return response, err
	}
	id, err := pathID(r, "responseId")
	if err != nil {
		return response, forms.ErrNotFound
	}
	err = s.DB.WithContext(r.Context()).
		Where("form_id = ?", form.ID).
		Preload("Answers").
		First(&response, id).Error
	return response, err
}

func (s *Server) GetResponse(w http.ResponseWriter, r *http.Request) {
	response, err := s.loadResponse(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, err := newResponseView(response)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteResponse removes a response. The form's response counter is left
// alone so response limits keep counting it.
func (s *Server) DeleteResponse(w http.ResponseWriter, r *http.Request) {
	response, err := s.loadResponse(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.DB.WithContext(r.Context()).Select("Answers").Delete(&response).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
