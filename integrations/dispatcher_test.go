package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type captured struct {
	path    string
	headers http.Header
	body    []byte
}

type recorder struct {
	mu   sync.Mutex
	reqs []captured
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec.mu.Lock()
	rec.reqs = append(rec.reqs, captured{path: r.URL.Path, headers: r.Header.Clone(), body: body})
	rec.mu.Unlock()
	if r.URL.Path == "/fail" {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rec *recorder) byPath(path string) []captured {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var out []captured
	for _, c := range rec.reqs {
		if c.path == path {
			out = append(out, c)
		}
	}
	return out
}

func setup(t *testing.T) (*gorm.DB, *recorder, *httptest.Server) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	rec := &recorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return gdb, rec, srv
}

func sampleSubmission(formID uint) forms.Submission {
	return forms.Submission{
		FormID: db.FormID(formID),
		Responses: []forms.ResponseItem{
			{FieldID: "q1", FieldLabel: "Name", FieldKind: forms.KindText, Value: forms.Text("Ada")},
			{FieldID: "q2", FieldLabel: "Toppings", FieldKind: forms.KindMultiSelect, Value: forms.MultiText("Ham", "Olives")},
			{FieldID: "q3", FieldLabel: "Notes", FieldKind: forms.KindLongText, Value: forms.Text("")},
		},
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Submitter:   forms.Anonymous(),
	}
}

func TestNotifyFormatsPerKind(t *testing.T) {
	gdb, rec, srv := setup(t)
	form := models.Form{Title: "Pizza order"}
	require.NoError(t, gdb.Create(&form).Error)
	hooks := []models.Webhook{
		{FormID: form.ID, Kind: models.WebhookGeneric, URL: srv.URL + "/generic", Secret: "s3cret", Active: true},
		{FormID: form.ID, Kind: models.WebhookSlack, URL: srv.URL + "/slack", Active: true},
		{FormID: form.ID, Kind: models.WebhookDiscord, URL: srv.URL + "/discord", Active: true},
		{FormID: form.ID, Kind: models.WebhookGeneric, URL: srv.URL + "/inactive", Active: false},
		{FormID: form.ID, Kind: models.WebhookGeneric, URL: srv.URL + "/other-event", Events: "form_closed", Active: true},
	}
	require.NoError(t, gdb.Create(&hooks).Error)

	d := NewDispatcher(gdb, time.Second, logrus.New())
	d.Notify(context.Background(), sampleSubmission(form.ID), "17")

	generic := rec.byPath("/generic")
	require.Len(t, generic, 1)
	assert.Empty(t, generic[0].headers.Get("X-Webhook-Secret"), "the secret itself never travels")
	assert.Equal(t, "sha256="+Sign("s3cret", generic[0].body), generic[0].headers.Get("X-Webhook-Signature"))
	var payload struct {
		Event        string           `json:"event"`
		SubmissionID string           `json:"submission_id"`
		Submission   forms.Submission `json:"submission"`
	}
	require.NoError(t, json.Unmarshal(generic[0].body, &payload))
	assert.Equal(t, EventResponseSubmitted, payload.Event)
	assert.Equal(t, "17", payload.SubmissionID)
	assert.Len(t, payload.Submission.Responses, 3)

	slack := rec.byPath("/slack")
	require.Len(t, slack, 1)
	var slackBody map[string]string
	require.NoError(t, json.Unmarshal(slack[0].body, &slackBody))
	assert.Contains(t, slackBody["text"], `"Pizza order"`)
	assert.Contains(t, slackBody["text"], "*Toppings*: Ham, Olives")
	assert.Contains(t, slackBody["text"], "*Notes*: -")
	assert.Empty(t, slack[0].headers.Get("X-Webhook-Signature"))

	discord := rec.byPath("/discord")
	require.Len(t, discord, 1)
	var discordBody map[string]string
	require.NoError(t, json.Unmarshal(discord[0].body, &discordBody))
	assert.Contains(t, discordBody["content"], "**Name**: Ada")

	assert.Empty(t, rec.byPath("/inactive"))
	assert.Empty(t, rec.byPath("/other-event"))
}

func TestNotifyContinuesAfterFailure(t *testing.T) {
	gdb, rec, srv := setup(t)
	form := models.Form{Title: "Survey"}
	require.NoError(t, gdb.Create(&form).Error)
	hooks := []models.Webhook{
		{FormID: form.ID, URL: srv.URL + "/fail", Active: true},
		{FormID: form.ID, URL: "http://127.0.0.1:1/unreachable", Active: true},
		{FormID: form.ID, URL: srv.URL + "/ok", Active: true},
	}
	require.NoError(t, gdb.Create(&hooks).Error)

	d := NewDispatcher(gdb, time.Second, logrus.New())
	d.Notify(context.Background(), sampleSubmission(form.ID), "1")

	assert.Len(t, rec.byPath("/fail"), 1, "failed deliveries are not retried")
	assert.Len(t, rec.byPath("/ok"), 1)
}

func TestSubscribed(t *testing.T) {
	assert.True(t, subscribed("", EventResponseSubmitted))
	assert.True(t, subscribed("form_closed, response_submitted", EventResponseSubmitted))
	assert.False(t, subscribed("form_closed", EventResponseSubmitted))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
