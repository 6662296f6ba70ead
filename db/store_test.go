package db

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/nikhilsahni7/FormX/config"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(gdb))
	return gdb
}

func intPtr(n int) *int { return &n }

func sampleDesign() ([]forms.FieldSchema, []forms.ConditionalRule) {
	fields := []forms.FieldSchema{
		{ID: "q1", Kind: forms.KindSingleChoice, Label: "Do you drive?", Required: true, Options: []string{"Yes", "No"}},
		{ID: "q2", Kind: forms.KindText, Label: "Car model", Constraints: &forms.Constraints{MinLength: intPtr(2), Pattern: "^[A-Za-z ]+$"}},
		{ID: "q3", Kind: forms.KindMultiSelect, Label: "Extras", Options: []string{"GPS", "Heated seats", "Sunroof"}},
	}
	rules := []forms.ConditionalRule{
		{ID: "r1", SourceFieldID: "q1", Comparator: forms.Equals, ComparisonValue: "Yes", Action: forms.ActionShow, TargetFieldID: "q2"},
		{ID: "r2", SourceFieldID: "q1", Comparator: forms.Equals, ComparisonValue: "No", Action: forms.ActionHide, TargetFieldID: "q3"},
	}
	return fields, rules
}

func createPublished(t *testing.T, store *Store, token string) models.Form {
	t.Helper()
	fields, rules := sampleDesign()
	form := models.Form{UserID: 1, Title: "Cars", Status: models.FormPublished}
	require.NoError(t, store.SaveDesign(context.Background(), &form, fields, rules))
	require.NoError(t, store.DB.Create(&models.FormLink{FormID: form.ID, Token: token, IsActive: true}).Error)
	return form
}

func TestSaveDesignRoundTrip(t *testing.T) {
	store := NewStore(setupTestDB(t))
	form := createPublished(t, store, "tok")

	loaded, err := store.LoadPublishedForm(context.Background(), "tok")
	require.NoError(t, err)

	fields, rules := sampleDesign()
	assert.Equal(t, FormID(form.ID), loaded.ID)
	assert.Equal(t, "Cars", loaded.Title)
	assert.Equal(t, fields, loaded.Fields)
	assert.Equal(t, rules, loaded.Rules)
}

func TestSaveDesignReplacesFieldsAndKeepsKeys(t *testing.T) {
	store := NewStore(setupTestDB(t))
	form := createPublished(t, store, "tok")

	require.NoError(t, store.DB.Model(&form).Update("status", models.FormDraft).Error)
	fields, _ := sampleDesign()
	fields = []forms.FieldSchema{fields[2], fields[0]}
	fields[0].Label = "Optional extras"
	require.NoError(t, store.SaveDesign(context.Background(), &form, fields, nil))
	require.NoError(t, store.DB.Model(&form).Update("status", models.FormPublished).Error)

	loaded, err := store.LoadPublishedForm(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, loaded.Fields, 2)
	assert.Equal(t, "q3", loaded.Fields[0].ID)
	assert.Equal(t, "Optional extras", loaded.Fields[0].Label)
	assert.Equal(t, []string{"GPS", "Heated seats", "Sunroof"}, loaded.Fields[0].Options)
	assert.Empty(t, loaded.Rules)

	var optionRows int64
	store.DB.Unscoped().Model(&models.Option{}).Count(&optionRows)
	assert.EqualValues(t, 5, optionRows)
}

func TestSaveDesignRefusesPublishedForm(t *testing.T) {
	store := NewStore(setupTestDB(t))
	form := createPublished(t, store, "tok")

	fields, rules := sampleDesign()
	fields[0].ID = "renamed"
	err := store.SaveDesign(context.Background(), &form, fields[:1], rules[:0])
	assert.ErrorIs(t, err, ErrDesignLocked)

	loaded, err := store.LoadPublishedForm(context.Background(), "tok")
	require.NoError(t, err)
	want, _ := sampleDesign()
	assert.Equal(t, want, loaded.Fields)

	form.Title = "Cars and vans"
	require.NoError(t, store.SaveDetails(context.Background(), &form))
	loaded, err = store.LoadPublishedForm(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Cars and vans", loaded.Title)
	assert.Len(t, loaded.Fields, len(want))
}

func TestLoadPublishedFormErrors(t *testing.T) {
	store := NewStore(setupTestDB(t))
	ctx := context.Background()

	_, err := store.LoadPublishedForm(ctx, "missing")
	assert.ErrorIs(t, err, forms.ErrNotFound)

	form := createPublished(t, store, "tok")
	require.NoError(t, store.DB.Model(&form).Update("status", models.FormDraft).Error)
	_, err = store.LoadPublishedForm(ctx, "tok")
	assert.ErrorIs(t, err, forms.ErrNotPublished)

	require.NoError(t, store.DB.Create(&models.FormLink{FormID: form.ID, Token: "off", IsActive: false}).Error)
	_, err = store.LoadPublishedForm(ctx, "off")
	assert.ErrorIs(t, err, forms.ErrNotFound)
}

func TestPersistSubmission(t *testing.T) {
	store := NewStore(setupTestDB(t))
	form := createPublished(t, store, "tok")

	sub := forms.Submission{
		FormID: FormID(form.ID),
		Responses: []forms.ResponseItem{
			{FieldID: "q1", FieldLabel: "Do you drive?", FieldKind: forms.KindSingleChoice, Value: forms.Text("Yes")},
			{FieldID: "q2", FieldLabel: "Car model", FieldKind: forms.KindText, Value: forms.Text("Golf")},
			{FieldID: "q3", FieldLabel: "Extras", FieldKind: forms.KindMultiSelect, Value: forms.MultiText("GPS", "Sunroof")},
		},
		SubmittedAt:           time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		CompletionTimeSeconds: 42.5,
		Submitter:             forms.Authenticated("7"),
	}

	ctx := WithRequestMeta(context.Background(), "10.0.0.1", "curl/8")
	id, err := store.PersistSubmission(ctx, sub)
	require.NoError(t, err)

	responseID, err := ParseFormID(id)
	require.NoError(t, err)
	row, loaded, err := store.LoadSubmission(ctx, responseID)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1", row.IP)
	assert.Equal(t, "curl/8", row.UserAgent)
	assert.Equal(t, sub.Responses, loaded.Responses)
	assert.Equal(t, sub.Submitter, loaded.Submitter)
	assert.InDelta(t, 42.5, loaded.CompletionTimeSeconds, 0.001)

	var stored models.Form
	require.NoError(t, store.DB.First(&stored, form.ID).Error)
	assert.Equal(t, 1, stored.ResponseCount)
}

func TestPersistSubmissionStopsAtResponseLimit(t *testing.T) {
	store := NewStore(setupTestDB(t))
	form := createPublished(t, store, "tok")
	require.NoError(t, store.DB.Model(&form).Update("response_limit", 2).Error)

	sub := forms.Submission{
		FormID:    FormID(form.ID),
		Responses: []forms.ResponseItem{{FieldID: "q2", FieldLabel: "Car model", FieldKind: forms.KindText, Value: forms.Text("Golf")}},
		Submitter: forms.Anonymous(),
	}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.PersistSubmission(ctx, sub)
		require.NoError(t, err)
	}
	_, err := store.PersistSubmission(ctx, sub)
	assert.ErrorIs(t, err, forms.ErrFormClosed)

	var responses int64
	require.NoError(t, store.DB.Model(&models.Response{}).Where("form_id = ?", form.ID).Count(&responses).Error)
	assert.EqualValues(t, 2, responses)

	var stored models.Form
	require.NoError(t, store.DB.First(&stored, form.ID).Error)
	assert.Equal(t, 2, stored.ResponseCount)
}

func TestPersistSubmissionRejectsBadFormID(t *testing.T) {
	store := NewStore(setupTestDB(t))
	_, err := store.PersistSubmission(context.Background(), forms.Submission{FormID: "abc"})
	assert.Error(t, err)
}

func TestLoadSubmissionNotFound(t *testing.T) {
	store := NewStore(setupTestDB(t))
	_, _, err := store.LoadSubmission(context.Background(), 99)
	assert.ErrorIs(t, err, forms.ErrNotFound)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.Config{DatabaseDriver: "mysql"}, nil)
	assert.ErrorContains(t, err, "unsupported DATABASE_DRIVER")
}
