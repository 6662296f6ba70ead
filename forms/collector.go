package forms

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Receipt is returned to the respondent after a stored submission.
type Receipt struct {
	SubmissionID string     `json:"submissionId"`
	Submission   Submission `json:"submission"`
	RedirectURL  string     `json:"redirectUrl,omitempty"`
}

// Collector connects sessions to the storage and notification
// collaborators: it opens sessions on published forms and hands finished
// submissions over for persistence.
type Collector struct {
	loader   FormLoader
	store    SubmissionStore
	notifier Notifier
	now      func() time.Time
	log      *logrus.Entry
}

// NewCollector returns a collector. notifier may be nil; a nil logger
// discards output.
func NewCollector(loader FormLoader, store SubmissionStore, notifier Notifier, logger *logrus.Logger) *Collector {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Collector{
		loader:   loader,
		store:    store,
		notifier: notifier,
		now:      time.Now,
		log:      logger.WithField("component", "forms"),
	}
}

// Open loads the published form behind shareToken and starts a session on
// it. Loader errors such as ErrNotFound and ErrNotPublished pass through.
func (c *Collector) Open(ctx context.Context, shareToken string, submitter Submitter) (*Session, error) {
	form, err := c.loader.LoadPublishedForm(ctx, shareToken)
	if err != nil {
		return nil, err
	}
	if !form.AcceptingResponses(c.now()) {
		return nil, ErrFormClosed
	}
	return NewSession(form, submitter, WithClock(c.now), WithLogger(c.log))
}

// Finalize submits the session. When validation fails the violations are
// returned and nothing is stored. Otherwise the submission is delivered as
// by Deliver. A form that closed while the session was open refuses the
// submission with ErrFormClosed and leaves the session untouched.
func (c *Collector) Finalize(ctx context.Context, s *Session) (*Receipt, ViolationMap, error) {
	if !s.Form().AcceptingResponses(c.now()) {
		return nil, nil, ErrFormClosed
	}
	sub, violations, err := s.TrySubmit()
	if err != nil {
		return nil, nil, err
	}
	if len(violations) > 0 {
		return nil, violations, nil
	}

	receipt, err := c.Deliver(ctx, s.Form(), *sub)
	if err != nil {
		return nil, nil, err
	}
	return receipt, nil, nil
}

// Deliver persists sub together with the form's response counters and
// fires the notifier without waiting for it. It may be retried with the
// same submission when persistence failed. ErrFormClosed is returned when
// the close date has passed or the store finds the response limit reached.
func (c *Collector) Deliver(ctx context.Context, form *Form, sub Submission) (*Receipt, error) {
	if form != nil && !form.AcceptingResponses(c.now()) {
		return nil, ErrFormClosed
	}

	id, err := c.store.PersistSubmission(ctx, sub)
	if err != nil {
		return nil, fmt.Errorf("persist submission: %w", err)
	}

	entry := c.log.WithFields(logrus.Fields{"form": sub.FormID, "submission": id})

	if c.notifier != nil {
		go c.notifier.Notify(context.WithoutCancel(ctx), sub, id)
	}

	entry.WithField("seconds", sub.CompletionTimeSeconds).Info("submission stored")

	receipt := &Receipt{SubmissionID: id, Submission: sub}
	if form != nil {
		receipt.RedirectURL = form.Settings.RedirectURL
	}
	return receipt, nil
}
