package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/nikhilsahni7/FormX/auth"
	"github.com/nikhilsahni7/FormX/config"
	"github.com/nikhilsahni7/FormX/db"
	"github.com/nikhilsahni7/FormX/fill"
	"github.com/nikhilsahni7/FormX/forms"
	"github.com/nikhilsahni7/FormX/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	t      *testing.T
	server *Server
	router *mux.Router
	user   models.User
	token  string
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))
	t.Cleanup(func() {
		sqlDB, _ := testDB.DB()
		sqlDB.Close()
	})
	return testDB
}

// setupTestServer wires a server to a fresh database. wrap, when set,
// decorates the submission store the collector writes through.
func setupTestServer(t *testing.T, wrap func(*db.Store) forms.SubmissionStore) *testEnv {
	t.Helper()
	testDB := setupTestDB(t)

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := db.NewStore(testDB)
	var submissions forms.SubmissionStore = store
	if wrap != nil {
		submissions = wrap(store)
	}

	s := &Server{
		DB:        testDB,
		Store:     store,
		Collector: forms.NewCollector(store, submissions, nil, log),
		Sessions:  fill.NewRegistry(time.Hour, log),
		Auth: &auth.Authenticator{
			Sessions: sessions.NewCookieStore([]byte("test-session-key-0123456789abcd")),
			Secret:   []byte("test-secret"),
			TTL:      time.Hour,
		},
		Config: config.Config{RateLimit: 1000, RateBurst: 1000, FrontendURL: "http://localhost:3000"},
		Log:    log,
	}

	env := &testEnv{t: t, server: s, router: s.Routes()}
	env.user, env.token = env.newUser("test@example.com")
	return env
}

func (e *testEnv) newUser(email string) (models.User, string) {
	e.t.Helper()
	user := models.User{Email: email, Name: "Test User"}
	require.NoError(e.t, e.server.DB.Create(&user).Error)
	token, err := e.server.Auth.IssueToken(user.ID, user.Email)
	require.NoError(e.t, err)
	return user, token
}

// request sends body as JSON. An empty token sends the request anonymously.
func (e *testEnv) request(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	return e.request(method, path, e.token, body)
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func intPtr(n int) *int { return &n }

// petForm asks for a pet name only when the respondent has a pet, and
// then requires it.
func petForm() formPayload {
	return formPayload{
		Title: "Pets",
		Fields: []forms.FieldSchema{
			{ID: "has_pet", Kind: forms.KindSingleChoice, Label: "Do you have a pet?", Required: true, Options: []string{"Yes", "No"}},
			{ID: "pet_name", Kind: forms.KindText, Label: "Pet name", Constraints: &forms.Constraints{MaxLength: intPtr(20)}},
			{ID: "notes", Kind: forms.KindLongText, Label: "Notes, comments \"and\" more"},
		},
		Rules: []forms.ConditionalRule{
			{ID: "r1", SourceFieldID: "has_pet", Comparator: forms.NotEquals, ComparisonValue: "Yes", Action: forms.ActionHide, TargetFieldID: "pet_name"},
			{ID: "r2", SourceFieldID: "has_pet", Comparator: forms.Equals, ComparisonValue: "Yes", Action: forms.ActionRequire, TargetFieldID: "pet_name"},
		},
	}
}

// publish creates and publishes p and returns the form id and share token.
func (e *testEnv) publish(p formPayload) (uint, string) {
	e.t.Helper()
	rr := e.do("POST", "/api/forms", p)
	require.Equal(e.t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[formView](e.t, rr)

	rr = e.do("POST", fmt.Sprintf("/api/forms/%d/publish", created.ID), nil)
	require.Equal(e.t, http.StatusOK, rr.Code, rr.Body.String())
	published := decode[formView](e.t, rr)
	require.True(e.t, strings.HasPrefix(published.Link, "/s/"))
	return created.ID, strings.TrimPrefix(published.Link, "/s/")
}

type flakyStore struct {
	*db.Store
	failures int
}

func (f *flakyStore) PersistSubmission(ctx context.Context, sub forms.Submission) (string, error) {
	if f.failures > 0 {
		f.failures--
		return "", fmt.Errorf("database is unavailable")
	}
	return f.Store.PersistSubmission(ctx, sub)
}
