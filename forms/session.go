package forms

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrSessionClosed is returned by every mutating call on a session that
	// has already produced its submission. It indicates a caller bug.
	ErrSessionClosed = errors.New("form session is closed")
	// ErrUnknownField is returned when an answer names a field the form
	// does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrValueMismatch is returned when an answer's shape does not fit the
	// field kind, e.g. a list for a text field.
	ErrValueMismatch = errors.New("answer does not match field kind")
	// ErrInvalidForm is returned when a session is opened without a usable form.
	ErrInvalidForm = errors.New("form has no fields")
)

// Status is the lifecycle position of a session.
type Status string

const (
	StatusFilling    Status = "filling"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
	StatusFailed     Status = "failed"
)

// Session holds one respondent's fill-out of one form. It is not safe for
// concurrent use; callers serialise access to a session.
type Session struct {
	form       *Form
	submitter  Submitter
	answers    AnswerMap
	state      State
	status     Status
	violations ViolationMap
	startedAt  time.Time
	finishedAt time.Time
	now        func() time.Time
	submission *Submission
	log        *logrus.Entry
}

// SessionOption configures a new session.
type SessionOption func(*Session)

// WithClock replaces time.Now for the session. Tests use it to control
// completion times.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithLogger sets where the session reports rules it had to ignore.
// Without it the session logs nothing.
func WithLogger(entry *logrus.Entry) SessionOption {
	return func(s *Session) { s.log = entry }
}

// WithAnswers preloads answers, e.g. when restoring a draft. Answers that
// do not fit the form are dropped.
func WithAnswers(answers AnswerMap) SessionOption {
	return func(s *Session) {
		for id, v := range answers {
			if s.checkAnswer(id, v) == nil {
				s.answers[id] = v
			}
		}
	}
}

// NewSession starts filling form. The form is shared and must not be
// modified while sessions use it.
func NewSession(form *Form, submitter Submitter, opts ...SessionOption) (*Session, error) {
	if form == nil || len(form.Fields) == 0 {
		return nil, ErrInvalidForm
	}

	s := &Session{
		form:      form,
		submitter: submitter,
		answers:   make(AnswerMap),
		status:    StatusFilling,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	s.recompute()
	if s.log != nil && len(s.state.Ignored) > 0 {
		s.log.WithFields(logrus.Fields{
			"form":  form.ID,
			"rules": s.state.Ignored,
		}).Debug("rules with unknown targets or actions are ignored")
	}
	return s, nil
}

// Form returns the form being filled.
func (s *Session) Form() *Form { return s.form }

// Submitter returns the opaque identity the session was opened with.
func (s *Session) Submitter() Submitter { return s.submitter }

// Status returns the current lifecycle status.
func (s *Session) Status() Status { return s.status }

// StartedAt is when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// SetAnswer records the answer for fieldID and re-derives field state
// before returning. A session in the failed state goes back to filling.
func (s *Session) SetAnswer(fieldID string, value AnswerValue) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.checkAnswer(fieldID, value); err != nil {
		return err
	}

	s.answers[fieldID] = value
	s.status = StatusFilling
	s.recompute()
	return nil
}

// ClearAnswer removes the answer for fieldID and re-derives field state.
func (s *Session) ClearAnswer(fieldID string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, ok := s.form.Field(fieldID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}

	delete(s.answers, fieldID)
	s.status = StatusFilling
	s.recompute()
	return nil
}

// Answer returns the current answer for fieldID.
func (s *Session) Answer(fieldID string) (AnswerValue, bool) {
	v, ok := s.answers[fieldID]
	return v, ok
}

// Answers returns a copy of the current answers.
func (s *Session) Answers() AnswerMap {
	cp := make(AnswerMap, len(s.answers))
	for k, v := range s.answers {
		cp[k] = v
	}
	return cp
}

// State returns the derived state for the current answers.
func (s *Session) State() State {
	cp := State{Fields: make(map[string]FieldState, len(s.state.Fields)), SkipTo: s.state.SkipTo}
	for k, v := range s.state.Fields {
		cp.Fields[k] = v
	}
	return cp
}

// VisibleFields returns the visible fields in schema order. This is the
// order in which questions are asked.
func (s *Session) VisibleFields() []FieldSchema {
	visible := make([]FieldSchema, 0, len(s.form.Fields))
	for _, f := range s.form.Fields {
		if s.state.Visible(f.ID) {
			visible = append(visible, f)
		}
	}
	return visible
}

// SkipTarget returns the field suggested by the last matching skip_to rule.
func (s *Session) SkipTarget() (string, bool) {
	return s.state.SkipTo, s.state.SkipTo != ""
}

// Violations returns the violations of the last failed submit attempt.
func (s *Session) Violations() ViolationMap { return s.violations }

// Elapsed is the time since the session started, frozen once submitted.
func (s *Session) Elapsed() time.Duration {
	if s.status == StatusSubmitted {
		return s.finishedAt.Sub(s.startedAt)
	}
	return s.now().Sub(s.startedAt)
}

// Submission returns the assembled submission once the session is submitted.
func (s *Session) Submission() (*Submission, bool) {
	return s.submission, s.submission != nil
}

// TrySubmit validates every visible field against its effective
// requirement. With violations the session moves to failed and the
// violations are returned; the respondent may keep editing. Without, the
// session is closed and the assembled submission returned.
//
// The only error is ErrSessionClosed.
func (s *Session) TrySubmit() (*Submission, ViolationMap, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, nil, err
	}
	s.status = StatusSubmitting

	violations := make(ViolationMap)
	for _, field := range s.form.Fields {
		fs := s.state.Fields[field.ID]
		if !fs.Visible {
			continue
		}
		effective := field
		effective.Required = fs.EffectivelyRequired
		if v := Validate(effective, s.answers[field.ID]); len(v) > 0 {
			violations[field.ID] = v
		}
	}

	if len(violations) > 0 {
		s.status = StatusFailed
		s.violations = violations
		return nil, violations, nil
	}

	s.finishedAt = s.now()
	s.violations = nil
	s.status = StatusSubmitted
	sub := Assemble(s)
	s.submission = &sub
	return s.submission, nil, nil
}

func (s *Session) ensureOpen() error {
	if s.status == StatusSubmitted {
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) checkAnswer(fieldID string, value AnswerValue) error {
	field, ok := s.form.Field(fieldID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if value.Kind() == ValueAbsent {
		return nil
	}
	if value.Kind() != field.Kind.ValueKind() {
		return fmt.Errorf("%w: field %s of kind %s cannot hold a %s answer",
			ErrValueMismatch, fieldID, field.Kind, value.Kind())
	}
	return nil
}

func (s *Session) recompute() {
	s.state = DeriveState(s.form.Rules, s.form.Fields, s.answers)
}
