package forms

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a FormLoader for an unknown share token.
	ErrNotFound = errors.New("form not found")
	// ErrNotPublished is returned by a FormLoader when the form exists but
	// is not published.
	ErrNotPublished = errors.New("form is not published")
	// ErrFormClosed is returned when a published form no longer accepts
	// responses because of its close date or response limit.
	ErrFormClosed = errors.New("form is closed")
)

// FormLoader reads published forms by share token.
type FormLoader interface {
	LoadPublishedForm(ctx context.Context, shareToken string) (*Form, error)
}

// SubmissionStore persists completed submissions.
//
// PersistSubmission stores sub and increments the form's response counters
// as one atomic step. When the form's response limit is already reached it
// stores nothing and returns ErrFormClosed.
type SubmissionStore interface {
	PersistSubmission(ctx context.Context, sub Submission) (string, error)
}

// Notifier delivers a stored submission to third parties. Notify is called
// without waiting for it; its failures never affect the submission.
type Notifier interface {
	Notify(ctx context.Context, sub Submission, submissionID string)
}
