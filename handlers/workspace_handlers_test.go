package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/nikhilsahni7/FormX/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderHandlers(t *testing.T) {
	env := setupTestServer(t, nil)

	rr := env.do("POST", "/api/folders", map[string]string{"name": " Surveys "})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	folder := decode[models.Folder](t, rr)
	assert.Equal(t, "Surveys", folder.Name)

	rr = env.do("POST", "/api/folders", map[string]string{"name": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	p := petForm()
	p.FolderID = &folder.ID
	rr = env.do("POST", "/api/forms", p)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	formID := decode[formView](t, rr).ID

	rr = env.do("POST", "/api/forms", formPayload{Title: "Loose"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do("GET", fmt.Sprintf("/api/forms?folder=%d", folder.ID), nil)
	list := decode[[]formSummary](t, rr)
	require.Len(t, list, 1)
	assert.Equal(t, formID, list[0].ID)

	rr = env.do("PUT", fmt.Sprintf("/api/folders/%d", folder.ID), map[string]string{"name": "Archive"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Archive", decode[models.Folder](t, rr).Name)

	_, other := env.newUser("other@example.com")
	rr = env.request("PUT", fmt.Sprintf("/api/folders/%d", folder.ID), other, map[string]string{"name": "Mine"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	p.FolderID = &folder.ID
	rr = env.request("POST", "/api/forms", other, p)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do("DELETE", fmt.Sprintf("/api/folders/%d", folder.ID), nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	var form models.Form
	require.NoError(t, env.server.DB.First(&form, formID).Error)
	assert.Nil(t, form.FolderID)
}

func TestWebhookHandlers(t *testing.T) {
	env := setupTestServer(t, nil)
	formID, _ := env.publish(petForm())

	rr := env.do("POST", "/api/webhooks", webhookPayload{FormID: formID, Kind: "pager", URL: "https://example.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do("POST", "/api/webhooks", webhookPayload{FormID: formID, Kind: models.WebhookSlack, URL: "ftp://example.com"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do("POST", "/api/webhooks", webhookPayload{FormID: formID + 100, Kind: models.WebhookSlack, URL: "https://hooks.example.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do("POST", "/api/webhooks", webhookPayload{FormID: formID, Kind: models.WebhookSlack, URL: "https://hooks.example.com/x"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	hook := decode[models.Webhook](t, rr)
	assert.True(t, hook.Active)

	rr = env.do("GET", fmt.Sprintf("/api/webhooks?form=%d", formID), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]models.Webhook](t, rr), 1)

	inactive := false
	rr = env.do("PUT", fmt.Sprintf("/api/webhooks/%d", hook.ID), webhookPayload{
		Kind: models.WebhookDiscord, URL: "https://discord.example.com/hook", Active: &inactive,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[models.Webhook](t, rr)
	assert.Equal(t, models.WebhookDiscord, updated.Kind)
	assert.False(t, updated.Active)

	_, other := env.newUser("other@example.com")
	rr = env.request("DELETE", fmt.Sprintf("/api/webhooks/%d", hook.ID), other, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do("DELETE", fmt.Sprintf("/api/webhooks/%d", hook.ID), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestTeamHandlers(t *testing.T) {
	env := setupTestServer(t, nil)
	member, memberToken := env.newUser("member@example.com")
	_, outsiderToken := env.newUser("outsider@example.com")

	rr := env.do("POST", "/api/teams", map[string]string{"name": "Research"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	team := decode[models.Team](t, rr)
	teamPath := fmt.Sprintf("/api/teams/%d", team.ID)

	rr = env.do("POST", teamPath+"/members", map[string]string{"email": "MEMBER@example.com "})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do("POST", teamPath+"/members", map[string]string{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.request("GET", teamPath, memberToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[models.Team](t, rr).Users, 2)

	rr = env.request("GET", teamPath, outsiderToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.request("PUT", teamPath, memberToken, map[string]string{"name": "Taken over"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	t.Run("TeamFormsAreShared", func(t *testing.T) {
		p := petForm()
		p.TeamID = &team.ID
		rr := env.do("POST", "/api/forms", p)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		formID := decode[formView](t, rr).ID

		rr = env.request("GET", fmt.Sprintf("/api/forms/%d", formID), memberToken, nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = env.request("GET", fmt.Sprintf("/api/forms/%d", formID), outsiderToken, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		rr = env.request("POST", "/api/forms", outsiderToken, p)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	rr = env.do("DELETE", fmt.Sprintf("%s/members/%d", teamPath, env.user.ID), nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do("DELETE", fmt.Sprintf("%s/members/%d", teamPath, member.ID), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.request("GET", teamPath, memberToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do("GET", "/api/teams", nil)
	assert.Len(t, decode[[]models.Team](t, rr), 1)
}
