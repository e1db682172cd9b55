// Copyright (C) 2026 Ouroboros Labs, Inc.
// See LICENSE for copying information.

package controlapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ouroboros.dev/ouroboros/control/accounts"
	"ouroboros.dev/ouroboros/control/agents"
	"ouroboros.dev/ouroboros/control/attacks"
	"ouroboros.dev/ouroboros/control/campaigns"
	"ouroboros.dev/ouroboros/control/controlapi"
	"ouroboros.dev/ouroboros/control/controltest"
	"ouroboros.dev/ouroboros/control/events"
	"ouroboros.dev/ouroboros/control/hashlists"
	"ouroboros.dev/ouroboros/control/objectstore/teststore"
	"ouroboros.dev/ouroboros/control/resources"
	"ouroboros.dev/ouroboros/control/systemstats"
	"ouroboros.dev/ouroboros/control/tasks"
)

const (
	memberKey = "ouro_memberkey"
	adminKey  = "ouro_adminkey"
)

type testServer struct {
	handler http.Handler
	db      *controltest.DB
	store   *teststore.Store
	project *accounts.Project
}

func newTestServer(t *testing.T, config controlapi.Config) *testServer {
	log := zaptest.NewLogger(t)
	db := controltest.New()
	store := teststore.New()
	bus := events.NewBus(log.Named("events"))
	auth := accounts.NewService(log.Named("accounts"), db.Accounts())

	project := db.AddProject("cracking")
	db.AddUser("member@example.test", memberKey, false, project.ID)
	db.AddUser("admin@example.test", adminKey, true)

	services := controlapi.Services{
		Accounts:  auth,
		Campaigns: campaigns.NewService(log.Named("campaigns"), db.Campaigns(), db.HashLists(), auth, bus),
		Attacks:   attacks.NewService(log.Named("attacks"), db.Attacks(), db.Campaigns(), db.Resources(), auth, bus),
		HashLists: hashlists.NewService(log.Named("hashlists"), db.HashLists(), auth, bus),
		Resources: resources.NewService(log.Named("resources"), db.Resources(), store, auth, bus, resources.Config{
			UploadTimeout: time.Minute,
			PresignExpiry: time.Hour,
			MaxUploadSize: 1 << 20,
		}),
		Tasks:  tasks.NewService(log.Named("tasks"), db.Tasks(), auth, bus),
		Agents: agents.NewService(log.Named("agents"), db.Agents(), auth),
		Stats:  systemstats.NewService(log.Named("stats"), db.Stats(), systemstats.Config{}, "test"),
	}

	server := controlapi.NewServer(log.Named("api"), nil, services, config)
	t.Cleanup(func() { _ = server.Close() })

	return &testServer{handler: server.Router(), db: db, store: store, project: project}
}

func defaultConfig() controlapi.Config {
	return controlapi.Config{
		AuthAttempts:     10,
		AuthAttemptsSpan: time.Minute,
		AuthLockDuration: time.Minute,
	}
}

func (ts *testServer) request(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "/api/v1/control"+path, reader)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (ts *testServer) addCampaign(t *testing.T, state campaigns.State) *campaigns.Campaign {
	ctx := context.Background()
	list, err := ts.db.HashLists().Insert(ctx, &hashlists.HashList{
		ProjectID:  &ts.project.ID,
		Name:       "domain dump",
		HashTypeID: 1000,
	})
	require.NoError(t, err)
	campaign, err := ts.db.Campaigns().Insert(ctx, &campaigns.Campaign{
		ProjectID:  ts.project.ID,
		HashListID: list.ID,
		Name:       "quarterly audit",
		State:      state,
	})
	require.NoError(t, err)
	return campaign
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	// no credentials
	rec := ts.request(t, "GET", "/users/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	require.Equal(t, float64(http.StatusUnauthorized), body["status"])
	require.Equal(t, "/api/v1/control/users/me", body["instance"])

	// wrong key
	rec = ts.request(t, "GET", "/users/me", "ouro_bogus", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// good key
	rec = ts.request(t, "GET", "/users/me", memberKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	require.Equal(t, "member@example.test", body["email"])
	require.Equal(t, []any{float64(ts.project.ID)}, body["project_ids"])
}

func TestAuthThrottling(t *testing.T) {
	config := defaultConfig()
	config.AuthAttempts = 2
	ts := newTestServer(t, config)

	rec := ts.request(t, "GET", "/users/me", "ouro_bogus", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.request(t, "GET", "/users/me", "ouro_bogus", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// over budget, even valid credentials are locked out
	rec = ts.request(t, "GET", "/users/me", "ouro_bogus", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, float64(http.StatusTooManyRequests), body["status"])
}

func TestPaginationValidation(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	for _, query := range []string{"?limit=0", "?limit=101", "?offset=-1", "?limit=abc"} {
		rec := ts.request(t, "GET", "/campaigns"+query, memberKey, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, query)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"), query)
	}
}

func TestCampaignLifecycle(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	list, err := ts.db.HashLists().Insert(context.Background(), &hashlists.HashList{
		ProjectID:  &ts.project.ID,
		Name:       "domain dump",
		HashTypeID: 1000,
	})
	require.NoError(t, err)

	rec := ts.request(t, "POST", "/campaigns", memberKey, map[string]any{
		"project_id":   ts.project.ID,
		"hash_list_id": list.ID,
		"name":         "spring audit",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	require.Equal(t, "draft", created["state"])
	id := int64(created["id"].(float64))

	rec = ts.request(t, "POST", fmt.Sprintf("/campaigns/%d/start", id), memberKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "active", decodeBody(t, rec)["state"])

	// lifecycle actions are idempotent
	rec = ts.request(t, "POST", fmt.Sprintf("/campaigns/%d/start", id), memberKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "active", decodeBody(t, rec)["state"])
}

func TestCampaignActionConflict(t *testing.T) {
	ts := newTestServer(t, defaultConfig())
	campaign := ts.addCampaign(t, campaigns.StateArchived)

	path := fmt.Sprintf("/campaigns/%d/start", campaign.ID)
	rec := ts.request(t, "POST", path, memberKey, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	body := decodeBody(t, rec)
	require.Equal(t, "invalid-state-transition", body["type"])
	require.Equal(t, float64(http.StatusConflict), body["status"])
	require.Equal(t, "/api/v1/control"+path, body["instance"])
	require.Equal(t, "archived", body["current_state"])
	require.Equal(t, "campaign", body["entity_type"])
	require.Equal(t, "start", body["action"])
	require.Equal(t, []any{"draft"}, body["valid_transitions"])
}

func TestAttackActionStrict(t *testing.T) {
	ts := newTestServer(t, defaultConfig())
	campaign := ts.addCampaign(t, campaigns.StateActive)

	attack, err := ts.db.Attacks().Insert(context.Background(), &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "mask sweep",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
		State:      attacks.StatePending,
	})
	require.NoError(t, err)

	// pending attacks cannot pause; unlike campaigns there is no no-op path
	rec := ts.request(t, "POST", fmt.Sprintf("/attacks/%d/pause", attack.ID), memberKey, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "invalid-state-transition", body["type"])
	require.Equal(t, "attack", body["entity_type"])

	rec = ts.request(t, "POST", fmt.Sprintf("/attacks/%d/start", attack.ID), memberKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "running", decodeBody(t, rec)["state"])
}

func TestResourceUploadFlow(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.request(t, "POST", "/resources/initiate-upload", memberKey, map[string]any{
		"file_name":     "rockyou.txt",
		"resource_type": "word_list",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	initiated := decodeBody(t, rec)
	resourceID := initiated["resource_id"].(string)
	require.NotEmpty(t, initiated["upload_url"])
	require.Equal(t, float64(3600), initiated["expires_in_seconds"])

	// confirming before the object arrives is a client error
	rec = ts.request(t, "POST", "/resources/"+resourceID+"/confirm-upload", memberKey, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid-resource-state", decodeBody(t, rec)["type"])

	ts.store.Put(resourceID, []byte("password\n123456\n"))

	rec = ts.request(t, "POST", "/resources/"+resourceID+"/confirm-upload", memberKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decodeBody(t, rec)
	require.Equal(t, true, confirmed["is_uploaded"])
	require.Equal(t, float64(2), confirmed["line_count"])

	rec = ts.request(t, "GET", "/resources/"+resourceID+"/preview?lines=1", memberKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	preview := decodeBody(t, rec)
	require.Equal(t, []any{"password"}, preview["preview_lines"])
	require.Nil(t, preview["preview_error"])
}

func TestUserAdminEndpoints(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	// regular users cannot create users
	rec := ts.request(t, "POST", "/users", memberKey, map[string]any{
		"email": "new@example.test",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "insufficient-permissions", decodeBody(t, rec)["type"])

	rec = ts.request(t, "POST", "/users", adminKey, map[string]any{
		"email":       "new@example.test",
		"name":        "New Operator",
		"project_ids": []int64{ts.project.ID},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)
	apiKey := created["api_key"].(string)
	require.NotEmpty(t, apiKey)

	// the issued key works immediately
	rec = ts.request(t, "GET", "/users/me", apiKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "new@example.test", decodeBody(t, rec)["email"])

	// a duplicate email conflicts
	rec = ts.request(t, "POST", "/users", adminKey, map[string]any{
		"email": "new@example.test",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "user-conflict", decodeBody(t, rec)["type"])
}

func TestReorderAttacksReturnsList(t *testing.T) {
	ts := newTestServer(t, defaultConfig())
	campaign := ts.addCampaign(t, campaigns.StateDraft)

	ctx := context.Background()
	first, err := ts.db.Attacks().Insert(ctx, &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "first pass",
		Mode:       attacks.ModeMask,
		Mask:       "?d?d?d?d",
		Position:   0,
		State:      attacks.StatePending,
	})
	require.NoError(t, err)
	second, err := ts.db.Attacks().Insert(ctx, &attacks.Attack{
		CampaignID: campaign.ID,
		Name:       "second pass",
		Mode:       attacks.ModeMask,
		Mask:       "?l?l?l?l",
		Position:   1,
		State:      attacks.StatePending,
	})
	require.NoError(t, err)

	rec := ts.request(t, "POST", fmt.Sprintf("/campaigns/%d/attacks/reorder", campaign.ID), memberKey,
		map[string]any{
			"attack_order": []map[string]any{
				{"attack_id": second.ID, "priority": 0},
				{"attack_id": first.ID, "priority": 1},
			},
		})
	require.Equal(t, http.StatusOK, rec.Code)

	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	require.Equal(t, float64(second.ID), listed[0]["id"])
	require.Equal(t, float64(first.ID), listed[1]["id"])
}

func TestProjectMembership(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	outsider := ts.db.AddUser("outsider@example.test", "ouro_outsiderkey", false)

	// the outsider cannot see the project yet
	rec := ts.request(t, "GET", fmt.Sprintf("/projects/%d", ts.project.ID), "ouro_outsiderkey", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	path := fmt.Sprintf("/projects/%d/members", ts.project.ID)
	rec = ts.request(t, "POST", path, memberKey, map[string]any{"user_id": outsider.ID})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.request(t, "POST", path, adminKey, map[string]any{"user_id": outsider.ID})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, "GET", fmt.Sprintf("/projects/%d", ts.project.ID), "ouro_outsiderkey", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(t, "DELETE", fmt.Sprintf("%s/%d", path, outsider.ID), adminKey, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.request(t, "GET", fmt.Sprintf("/projects/%d", ts.project.ID), "ouro_outsiderkey", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownBodyField(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.request(t, "POST", "/campaigns", memberKey, map[string]any{
		"name":       "x",
		"surprising": true,
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "about:blank", body["type"])
}

func TestHashGuess(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.request(t, "POST", "/hash-guess", memberKey, map[string]any{
		"hash_material": "5f4dcc3b5aa765d61d8327deb882cf99",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	candidates := body["candidates"].([]any)
	require.NotEmpty(t, candidates)
	top := candidates[0].(map[string]any)
	require.Equal(t, "MD5", top["name"])
	require.Equal(t, float64(0), top["hash_type_id"])

	rec = ts.request(t, "POST", "/hash-guess", memberKey, map[string]any{
		"hash_material": "   ",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid-hash-format", decodeBody(t, rec)["type"])
}

func TestNotFoundProblem(t *testing.T) {
	ts := newTestServer(t, defaultConfig())

	rec := ts.request(t, "GET", "/campaigns/9999", memberKey, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "campaign-not-found", body["type"])
	require.Equal(t, "/api/v1/control/campaigns/9999", body["instance"])
}
