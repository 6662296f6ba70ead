// Package handlers exposes the form designer, the public fill flow and the
// response dashboard over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/FormX/auth"
	"github.com/nikhilsahni7/FormX/config"
	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/fill"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Server struct {
	DB        *gorm.DB
	Store     *db.Store
	Collector *forms.Collector
	Sessions  *fill.Registry
	Auth      *auth.Authenticator
	Config    config.Config
	Log       *logrus.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	limiter *clientLimiter
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Routes builds the router. Public fill routes are rate limited per client.
func (s *Server) Routes() *mux.Router {
	if s.limiter == nil {
		s.limiter = newClientLimiter(s.Config.RateLimit, s.Config.RateBurst)
	}
	protected := s.Auth.Middleware
	public := func(h http.HandlerFunc) http.HandlerFunc {
		return s.limiter.Middleware(s.Auth.Optional(h))
	}

	r := mux.NewRouter()
	r.Use(s.requestLogger)

	// Auth routes
	r.HandleFunc("/login", s.LoginHandler).Methods("GET")
	r.HandleFunc("/auth/google/callback", s.GoogleCallbackHandler).Methods("GET")
	r.HandleFunc("/logout", s.LogoutHandler).Methods("GET", "POST")
	r.HandleFunc("/api/register", s.limiter.Middleware(s.RegisterHandler)).Methods("POST")
	r.HandleFunc("/api/login", s.limiter.Middleware(s.LoginHandlerEmail)).Methods("POST")
	r.HandleFunc("/api/token", s.limiter.Middleware(s.TokenHandler)).Methods("POST")
	r.HandleFunc("/api/me", protected(s.GetCurrentUser)).Methods("GET")

	// Form designer
	r.HandleFunc("/api/forms", protected(s.CreateForm)).Methods("POST")
	r.HandleFunc("/api/forms", protected(s.ListForms)).Methods("GET")
	r.HandleFunc("/api/forms/import", protected(s.ImportForm)).Methods("POST")
	r.HandleFunc("/api/forms/{id}", protected(s.GetForm)).Methods("GET")
	r.HandleFunc("/api/forms/{id}", protected(s.UpdateForm)).Methods("PUT")
	r.HandleFunc("/api/forms/{id}", protected(s.DeleteForm)).Methods("DELETE")
	r.HandleFunc("/api/forms/{id}/duplicate", protected(s.DuplicateForm)).Methods("POST")
	r.HandleFunc("/api/forms/{id}/publish", protected(s.PublishForm)).Methods("POST")
	r.HandleFunc("/api/forms/{id}/unpublish", protected(s.UnpublishForm)).Methods("POST")

	// Responses
	r.HandleFunc("/api/forms/{id}/responses", protected(s.ListResponses)).Methods("GET")
	r.HandleFunc("/api/forms/{id}/responses/{responseId}", protected(s.GetResponse)).Methods("GET")
	r.HandleFunc("/api/forms/{id}/responses/{responseId}", protected(s.DeleteResponse)).Methods("DELETE")
	r.HandleFunc("/api/forms/{id}/analytics", protected(s.GetFormAnalytics)).Methods("GET")
	r.HandleFunc("/api/forms/{id}/export", protected(s.ExportResponses)).Methods("GET")

	// Folders
	r.HandleFunc("/api/folders", protected(s.CreateFolder)).Methods("POST")
	r.HandleFunc("/api/folders", protected(s.ListFolders)).Methods("GET")
	r.HandleFunc("/api/folders/{id}", protected(s.UpdateFolder)).Methods("PUT")
	r.HandleFunc("/api/folders/{id}", protected(s.DeleteFolder)).Methods("DELETE")

	// Webhooks
	r.HandleFunc("/api/webhooks", protected(s.CreateWebhook)).Methods("POST")
	r.HandleFunc("/api/webhooks", protected(s.ListWebhooks)).Methods("GET")
	r.HandleFunc("/api/webhooks/{id}", protected(s.UpdateWebhook)).Methods("PUT")
	r.HandleFunc("/api/webhooks/{id}", protected(s.DeleteWebhook)).Methods("DELETE")

	// Teams
	r.HandleFunc("/api/teams", protected(s.CreateTeam)).Methods("POST")
	r.HandleFunc("/api/teams", protected(s.ListTeams)).Methods("GET")
	r.HandleFunc("/api/teams/{teamId}", protected(s.GetTeam)).Methods("GET")
	r.HandleFunc("/api/teams/{teamId}", protected(s.UpdateTeam)).Methods("PUT")
	r.HandleFunc("/api/teams/{teamId}/members", protected(s.AddTeamMember)).Methods("POST")
	r.HandleFunc("/api/teams/{teamId}/members/{userId}", protected(s.RemoveTeamMember)).Methods("DELETE")

	// Public fill flow
	r.HandleFunc("/s/{token}", public(s.AccessFormByLink)).Methods("GET")
	r.HandleFunc("/s/{token}/sessions", public(s.StartSession)).Methods("POST")
	r.HandleFunc("/api/sessions/{id}", public(s.GetSession)).Methods("GET")
	r.HandleFunc("/api/sessions/{id}/answers/{fieldId}", public(s.SetAnswer)).Methods("PUT")
	r.HandleFunc("/api/sessions/{id}/answers/{fieldId}", public(s.ClearAnswer)).Methods("DELETE")
	r.HandleFunc("/api/sessions/{id}/submit", public(s.SubmitSession)).Methods("POST")

	return r
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, forms.ErrNotFound), errors.Is(err, fill.ErrNoSession),
		errors.Is(err, forms.ErrUnknownField), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, forms.ErrNotPublished):
		return http.StatusForbidden
	case errors.Is(err, forms.ErrFormClosed):
		return http.StatusGone
	case errors.Is(err, forms.ErrSessionClosed), errors.Is(err, db.ErrDesignLocked):
		return http.StatusConflict
	case errors.Is(err, forms.ErrValueMismatch), errors.Is(err, forms.ErrInvalidForm):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server errors are logged and
// their details kept from the client.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.Log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		http.Error(w, "Internal server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
