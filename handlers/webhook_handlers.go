package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/nikhilsahni7/FormX/models"
)

type webhookPayload struct {
	FormID uint               `json:"formId"`
	Kind   models.WebhookKind `json:"kind"`
	URL    string             `json:"url"`
	Events string             `json:"events"`
	Secret string             `json:"secret"`
	Active *bool              `json:"active"`
}

func (p webhookPayload) validate() error {
	switch p.Kind {
	case models.WebhookGeneric, models.WebhookSlack, models.WebhookDiscord:
	default:
		return errors.New("kind must be generic, slack or discord")
	}
	u, err := url.Parse(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("url must be an absolute http(s) url")
	}
	return nil
}

func (s *Server) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	p := webhookPayload{Kind: models.WebhookGeneric}
	if err := decodeJSON(w, r, &p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := currentUser(r)
	var form models.Form
	if err := s.formScope(r, userID).First(&form, p.FormID).Error; err != nil {
		http.Error(w, "Form not found", http.StatusNotFound)
		return
	}

	webhook := models.Webhook{
		UserID: userID,
		FormID: form.ID,
		Kind:   p.Kind,
		URL:    p.URL,
		Events: p.Events,
		Secret: p.Secret,
		Active: p.Active == nil || *p.Active,
	}
	if err := s.DB.Create(&webhook).Error; err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, webhook)
}

func (s *Server) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	query := s.DB.Where("user_id = ?", currentUser(r))
	if form := r.URL.Query().Get("form"); form != "" {
		query = query.Where("form_id = ?", form)
	}

	var webhooks []models.Webhook
	if err := query.Find(&webhooks).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhooks)
}

func (s *Server) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid webhook ID", http.StatusBadRequest)
		return
	}

	var webhook models.Webhook
	if err := s.DB.Where("user_id = ?", currentUser(r)).First(&webhook, id).Error; err != nil {
		http.Error(w, "Webhook not found", http.StatusNotFound)
		return
	}

	p := webhookPayload{Kind: webhook.Kind, Events: webhook.Events}
	if err := decodeJSON(w, r, &p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	webhook.Kind = p.Kind
	webhook.URL = p.URL
	webhook.Events = p.Events
	if p.Secret != "" {
		webhook.Secret = p.Secret
	}
	if p.Active != nil {
		webhook.Active = *p.Active
	}

	if err := s.DB.Save(&webhook).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, webhook)
}

func (s *Server) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid webhook ID", http.StatusBadRequest)
		return
	}

	res := s.DB.Where("user_id = ?", currentUser(r)).Delete(&models.Webhook{}, id)
	if res.Error != nil {
		s.fail(w, r, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Webhook not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
