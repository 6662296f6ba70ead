package forms

import "time"

// SubmitterKind distinguishes signed-in respondents from anonymous ones.
type SubmitterKind string

const (
	SubmitterAuthenticated SubmitterKind = "authenticated"
	SubmitterAnonymous     SubmitterKind = "anonymous"
)

// Submitter is the caller-supplied identity attached to a submission. The
// core carries it through untouched.
type Submitter struct {
	Kind SubmitterKind `json:"kind"`
	ID   string        `json:"id,omitempty"`
}

// Anonymous is the submitter used when nobody is signed in.
func Anonymous() Submitter { return Submitter{Kind: SubmitterAnonymous} }

// Authenticated returns the submitter for a signed-in user.
func Authenticated(id string) Submitter {
	return Submitter{Kind: SubmitterAuthenticated, ID: id}
}

// ResponseItem is one answered field of a submission. FieldLabel is the
// label at submit time and is used verbatim as the export column header.
type ResponseItem struct {
	FieldID    string      `json:"fieldId"`
	FieldLabel string      `json:"fieldLabel"`
	FieldKind  FieldKind   `json:"fieldKind"`
	Value      AnswerValue `json:"value"`
}

// Submission is the normalised record of a completed session. It is never
// modified after assembly.
type Submission struct {
	FormID                string         `json:"formId"`
	Responses             []ResponseItem `json:"responses"`
	SubmittedAt           time.Time      `json:"submittedAt"`
	CompletionTimeSeconds float64        `json:"completionTimeSeconds"`
	Submitter             Submitter      `json:"submitter"`
}

// Response returns the item recorded for fieldID.
func (s Submission) Response(fieldID string) (ResponseItem, bool) {
	for _, r := range s.Responses {
		if r.FieldID == fieldID {
			return r, true
		}
	}
	return ResponseItem{}, false
}

// Assemble builds the submission for a session from its visible fields in
// schema order. Fields hidden at this point are left out entirely, whatever
// was typed into them earlier.
func Assemble(s *Session) Submission {
	visible := s.VisibleFields()
	items := make([]ResponseItem, 0, len(visible))
	for _, f := range visible {
		value, ok := s.answers[f.ID]
		if !ok || value.Kind() == ValueAbsent {
			value = EmptyValue(f.Kind)
		}
		items = append(items, ResponseItem{
			FieldID:    f.ID,
			FieldLabel: f.Label,
			FieldKind:  f.Kind,
			Value:      value,
		})
	}

	submittedAt := s.finishedAt
	if submittedAt.IsZero() {
		submittedAt = s.now()
	}

	return Submission{
		FormID:                s.form.ID,
		Responses:             items,
		SubmittedAt:           submittedAt.UTC(),
		CompletionTimeSeconds: submittedAt.Sub(s.startedAt).Seconds(),
		Submitter:             s.submitter,
	}
}
