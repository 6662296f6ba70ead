package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
)

type fieldAnalytics struct {
	Label        string          `json:"label"`
	Kind         forms.FieldKind `json:"kind"`
	Answered     int             `json:"answered"`
	OptionCounts map[string]int  `json:"optionCounts,omitempty"`
	Average      *float64        `json:"average,omitempty"`
	Answers      []string        `json:"answers,omitempty"`
}

type formAnalytics struct {
	TotalResponses           int                        `json:"totalResponses"`
	AverageCompletionSeconds float64                    `json:"averageCompletionSeconds"`
	Fields                   map[string]*fieldAnalytics `json:"fields"`
}

func (s *Server) loadSubmissions(r *http.Request, form models.Form) ([]models.Response, []forms.Submission, error) {
	var rows []models.Response
	err := s.DB.WithContext(r.Context()).
		Where("form_id = ?", form.ID).
		Preload("Answers").
		Order("submitted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}

	subs := make([]forms.Submission, 0, len(rows))
	for _, row := range rows {
		sub, err := db.ToSubmission(row)
		if err != nil {
			return nil, nil, err
		}
		subs = append(subs, sub)
	}
	return rows, subs, nil
}

func (s *Server) GetFormAnalytics(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	_, subs, err := s.loadSubmissions(r, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, _ := db.ToSchema(form)
	writeJSON(w, http.StatusOK, calculateAnalytics(fields, subs))
}

// calculateAnalytics summarises the submissions per field of the current
// design. Answers to fields that were since removed are ignored.
func calculateAnalytics(fields []forms.FieldSchema, subs []forms.Submission) formAnalytics {
	result := formAnalytics{
		TotalResponses: len(subs),
		Fields:         make(map[string]*fieldAnalytics, len(fields)),
	}

	var totalSeconds float64
	for _, sub := range subs {
		totalSeconds += sub.CompletionTimeSeconds
	}
	if len(subs) > 0 {
		result.AverageCompletionSeconds = totalSeconds / float64(len(subs))
	}

	for _, field := range fields {
		fa := &fieldAnalytics{Label: field.Label, Kind: field.Kind}
		if field.Kind.IsSelection() {
			fa.OptionCounts = make(map[string]int, len(field.Options))
			for _, o := range field.Options {
				fa.OptionCounts[o] = 0
			}
		}

		var sum float64
		var count int
		for _, sub := range subs {
			item, ok := sub.Response(field.ID)
			if !ok || item.Value.IsEmpty() {
				continue
			}
			fa.Answered++

			switch {
			case field.Kind.IsSelection():
				if items, ok := item.Value.Items(); ok {
					for _, it := range items {
						fa.OptionCounts[it]++
					}
				} else {
					fa.OptionCounts[item.Value.String()]++
				}
			case field.Kind == forms.KindRating:
				if n, ok := item.Value.NumberValue(); ok {
					sum += n
					count++
				}
			case field.Kind == forms.KindText, field.Kind == forms.KindLongText:
				fa.Answers = append(fa.Answers, item.Value.String())
			}
		}
		if count > 0 {
			avg := sum / float64(count)
			fa.Average = &avg
		}

		result.Fields[field.ID] = fa
	}
	return result
}

// ExportResponses writes every response as CSV. Field columns follow the
// current design, then fields that only old responses carry. A column is
// headed by the label its latest response recorded, written verbatim.
func (s *Server) ExportResponses(w http.ResponseWriter, r *http.Request) {
	form, err := s.loadForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, subs, err := s.loadSubmissions(r, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	fields, _ := db.ToSchema(form)
	columns, labels := exportColumns(fields, subs)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment;filename=form_%d_responses.csv", form.ID))

	csvWriter := csv.NewWriter(w)

	header := []string{"ResponseID", "Submitted At", "Completion Time (s)", "Submitter"}
	for _, key := range columns {
		header = append(header, labels[key])
	}
	csvWriter.Write(header)

	for i, sub := range subs {
		row := []string{
			strconv.FormatUint(uint64(rows[i].ID), 10),
			sub.SubmittedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(sub.CompletionTimeSeconds, 'f', 1, 64),
			sub.Submitter.ID,
		}
		for _, key := range columns {
			item, _ := sub.Response(key)
			row = append(row, item.Value.String())
		}
		csvWriter.Write(row)
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		s.Log.WithError(err).WithField("form", form.ID).Warn("csv export interrupted")
	}
}

func exportColumns(fields []forms.FieldSchema, subs []forms.Submission) ([]string, map[string]string) {
	var columns []string
	labels := make(map[string]string)
	for _, f := range fields {
		columns = append(columns, f.ID)
		labels[f.ID] = f.Label
	}

	for _, sub := range subs {
		for _, item := range sub.Responses {
			if _, known := labels[item.FieldID]; !known {
				columns = append(columns, item.FieldID)
			}
			// submissions are oldest first, so the latest label wins
			labels[item.FieldID] = item.FieldLabel
		}
	}
	return columns, labels
}
