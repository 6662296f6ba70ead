package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nikhilsahni7/FormX/auth"
	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/fill"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/sirupsen/logrus"
)

// fieldView is a field as shown to a respondent at this moment.
type fieldView struct {
	forms.FieldSchema
	Visible             bool `json:"visible"`
	EffectivelyRequired bool `json:"effectivelyRequired"`
}

type sessionView struct {
	ID             string             `json:"id"`
	FormID         string             `json:"formId"`
	Title          string             `json:"title"`
	Status         forms.Status       `json:"status"`
	Fields         []fieldView        `json:"fields"`
	Answers        forms.AnswerMap    `json:"answers"`
	SkipTo         string             `json:"skipTo,omitempty"`
	Violations     forms.ViolationMap `json:"violations,omitempty"`
	ElapsedSeconds float64            `json:"elapsedSeconds"`
	Receipt        *forms.Receipt     `json:"receipt,omitempty"`
}

func fieldViews(f *forms.Form, state forms.State) []fieldView {
	views := make([]fieldView, 0, len(f.Fields))
	for _, field := range f.Fields {
		views = append(views, fieldView{
			FieldSchema:         field,
			Visible:             state.Visible(field.ID),
			EffectivelyRequired: state.Required(field.ID),
		})
	}
	return views
}

func newSessionView(e *fill.Entry) sessionView {
	s := e.Session
	skipTo, _ := s.SkipTarget()
	return sessionView{
		ID:             e.ID,
		FormID:         s.Form().ID,
		Title:          s.Form().Title,
		Status:         s.Status(),
		Fields:         fieldViews(s.Form(), s.State()),
		Answers:        s.Answers(),
		SkipTo:         skipTo,
		Violations:     s.Violations(),
		ElapsedSeconds: s.Elapsed().Seconds(),
		Receipt:        e.Receipt,
	}
}

// AccessFormByLink returns a published form with the field state before
// any answer is given. Closed forms are described rather than refused so
// the client can show the closed message.
func (s *Server) AccessFormByLink(w http.ResponseWriter, r *http.Request) {
	form, err := s.Store.LoadPublishedForm(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	state := forms.DeriveState(form.Rules, form.Fields, forms.AnswerMap{})
	writeJSON(w, http.StatusOK, map[string]any{
		"id":                 form.ID,
		"title":              form.Title,
		"fields":             fieldViews(form, state),
		"settings":           form.Settings,
		"acceptingResponses": form.AcceptingResponses(s.now()),
	})
}

// StartSession opens a fill session on the form behind the share token.
// The body may carry answers to restore, e.g. from a saved draft.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var input struct {
		Answers forms.AnswerMap `json:"answers"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &input); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	session, err := s.Collector.Open(r.Context(), token, auth.SubmitterFromRequest(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	for id, v := range input.Answers {
		// restored answers that no longer fit the form are dropped
		if err := session.SetAnswer(id, v); err != nil {
			s.Log.WithError(err).WithField("field", id).Debug("dropping restored answer")
		}
	}

	entry := s.Sessions.Add(token, session)
	s.Log.WithFields(logrus.Fields{"form": session.Form().ID, "session": entry.ID}).Debug("fill session started")
	writeJSON(w, http.StatusCreated, newSessionView(entry))
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	var view sessionView
	err := s.Sessions.With(mux.Vars(r)["id"], func(e *fill.Entry) error {
		view = newSessionView(e)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SetAnswer records one answer. The body is {"value": ...} where the value
// is a string, a list of strings or a number depending on the field kind.
func (s *Server) SetAnswer(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Value json.RawMessage `json:"value"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var value forms.AnswerValue
	if err := json.Unmarshal(input.Value, &value); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.updateSession(w, r, func(session *forms.Session, fieldID string) error {
		return session.SetAnswer(fieldID, value)
	})
}

func (s *Server) ClearAnswer(w http.ResponseWriter, r *http.Request) {
	s.updateSession(w, r, func(session *forms.Session, fieldID string) error {
		return session.ClearAnswer(fieldID)
	})
}

func (s *Server) updateSession(w http.ResponseWriter, r *http.Request, change func(*forms.Session, string) error) {
	vars := mux.Vars(r)
	var view sessionView
	err := s.Sessions.With(vars["id"], func(e *fill.Entry) error {
		if err := change(e.Session, vars["fieldId"]); err != nil {
			return err
		}
		view = newSessionView(e)
		return nil
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

var errAlreadySubmitted = errors.New("form session is already submitted")

// SubmitSession validates and stores the session. Violations answer 422
// and leave the session open for corrections. A session whose submission
// was assembled but could not be stored retries the delivery.
func (s *Server) SubmitSession(w http.ResponseWriter, r *http.Request) {
	ctx := db.WithRequestMeta(r.Context(), clientIP(r), r.UserAgent())

	var (
		receipt    *forms.Receipt
		violations forms.ViolationMap
	)
	err := s.Sessions.With(mux.Vars(r)["id"], func(e *fill.Entry) error {
		if e.Delivered {
			return errAlreadySubmitted
		}

		var err error
		if sub, ok := e.Session.Submission(); ok {
			receipt, err = s.Collector.Deliver(ctx, e.Session.Form(), *sub)
		} else {
			receipt, violations, err = s.Collector.Finalize(ctx, e.Session)
		}
		if err != nil || len(violations) > 0 {
			return err
		}

		e.Delivered = true
		e.Receipt = receipt
		return nil
	})

	switch {
	case errors.Is(err, errAlreadySubmitted):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		s.fail(w, r, err)
	case len(violations) > 0:
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"violations": violations})
	default:
		writeJSON(w, http.StatusCreated, receipt)
	}
}
