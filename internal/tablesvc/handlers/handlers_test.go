package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/pokerclub-services/internal/tablesvc/models"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/service"
	"github.com/avvvet/pokerclub-services/internal/tablesvc/store"
)

type fakeInvites struct {
	invites map[string]models.Invite
	now     time.Time
	owner   string
	lastReq service.CreateInvite
}

func (f *fakeInvites) Create(ctx context.Context, req service.CreateInvite) (*service.CreatedInvite, error) {
	f.lastReq = req
	if req.RequesterID != "" && req.RequesterID != f.owner {
		return nil, service.ErrForbidden
	}
	return &service.CreatedInvite{
		Invite:   models.Invite{Token: "new-token", TableID: req.TableID, MaxUses: 100},
		JoinLink: "pokerclub://join?server=ws%3A%2F%2Fhost&token=new-token",
	}, nil
}

func (f *fakeInvites) Resolve(ctx context.Context, token string) (models.Resolution, error) {
	inv, ok := f.invites[token]
	if !ok {
		return models.Resolution{}, store.ErrNotFound
	}
	return models.Resolution{Status: inv.Status(f.now), Invite: inv}, nil
}

func (f *fakeInvites) Consume(ctx context.Context, token string) (*models.Invite, error) {
	inv, ok := f.invites[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	switch inv.Status(f.now) {
	case models.InviteExpired:
		return nil, store.ErrExpired
	case models.InviteExhausted:
		return nil, store.ErrExhausted
	}
	inv.UsedCount++
	f.invites[token] = inv
	return &inv, nil
}

func (f *fakeInvites) ListByTable(ctx context.Context, tableID string) ([]models.Invite, error) {
	return []models.Invite{}, nil
}

type fakeTables struct{}

func (fakeTables) GetTable(ctx context.Context, id string) (*models.Table, error) {
	if id != "t1" {
		return nil, fmt.Errorf("table %s: %w", id, store.ErrNotFound)
	}
	return &models.Table{ID: "t1", OwnerID: "alice", Players: []models.Player{}}, nil
}

func (fakeTables) LoadAll(ctx context.Context) ([]models.Table, error) {
	return []models.Table{{ID: "t1"}}, nil
}

type fakeHands struct {
	limit, offset int
}

func (f *fakeHands) ListHands(ctx context.Context, tableID string, limit, offset int) ([]models.Hand, error) {
	f.limit, f.offset = limit, offset
	return []models.Hand{{ID: 2, TableID: tableID}, {ID: 1, TableID: tableID}}, nil
}

func (f *fakeHands) ListActions(ctx context.Context, handID int64) ([]models.Action, error) {
	return []models.Action{{ID: 1, HandID: handID, Action: "post"}}, nil
}

type fakeUsers struct{}

func (fakeUsers) GetUser(ctx context.Context, id string) (*models.User, error) {
	return nil, store.ErrNotFound
}

func newTestServer(t *testing.T) (*httptest.Server, *Handler, *fakeInvites, *fakeHands) {
	t.Helper()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	invites := &fakeInvites{
		now:   now,
		owner: "alice",
		invites: map[string]models.Invite{
			"live":    {Token: "live", TableID: "t1", ExpiresAt: &future, MaxUses: 3, UsedCount: 1},
			"old":     {Token: "old", TableID: "t1", ExpiresAt: &past, MaxUses: 3},
			"used-up": {Token: "used-up", TableID: "t1", MaxUses: 1, UsedCount: 1},
		},
	}
	hands := &fakeHands{}

	h := NewHandler(invites, fakeTables{}, hands, fakeUsers{}, "8080")
	h.InitAuth("test-secret")
	r := chi.NewRouter()
	h.SetRoutes(r, 1000)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h, invites, hands
}

func bearer(t *testing.T, h *Handler, claims map[string]interface{}) string {
	t.Helper()
	_, token, err := h.TokenAuth().Encode(claims)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, method, url, auth, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestResolveInvite(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/invites/live", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t1", body["tableId"])
	assert.Equal(t, float64(2), body["remainingUses"])
	assert.NotEmpty(t, body["expiresAt"])

	resp, body = do(t, http.MethodGet, srv.URL+"/invites/old", "", "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "expired", body["error"])

	resp, body = do(t, http.MethodGet, srv.URL+"/invites/used-up", "", "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "exhausted", body["error"])

	resp, _ = do(t, http.MethodGet, srv.URL+"/invites/nope", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConsumeInvite(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/invites/live/consume", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["usedCount"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/invites/live/consume", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, http.MethodPost, srv.URL+"/invites/live/consume", "", "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	assert.Equal(t, "exhausted", body["error"])
}

func TestSecureRoutesRequireToken(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/v1/health", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateInviteRoute(t *testing.T) {
	srv, h, invites, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/v1/tables/t1/invites",
		bearer(t, h, map[string]interface{}{"user_id": "alice"}), `{"expiresInSeconds":0,"maxUses":1}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "new-token", data["token"])
	assert.NotEmpty(t, data["joinLink"])
	require.NotNil(t, invites.lastReq.ExpiresInSeconds)
	assert.Equal(t, int64(0), *invites.lastReq.ExpiresInSeconds)
	assert.Equal(t, 1, *invites.lastReq.MaxUses)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/tables/t1/invites",
		bearer(t, h, map[string]interface{}{"user_id": "mallory"}), "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/tables/t1/invites",
		bearer(t, h, map[string]interface{}{"service_id": "engine"}), "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, invites.lastReq.RequesterID)
	assert.Nil(t, invites.lastReq.MaxUses)

	resp, _ = do(t, http.MethodPost, srv.URL+"/v1/tables/t1/invites",
		bearer(t, h, map[string]interface{}{"service_id": "engine"}), `{"maxUses":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadRoutes(t *testing.T) {
	srv, h, _, hands := newTestServer(t)
	auth := bearer(t, h, map[string]interface{}{"service_id": "ops"})

	resp, body := do(t, http.MethodGet, srv.URL+"/v1/health", auth, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["message"], "8080")

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/tables/t1", auth, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/tables/zzz", auth, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/tables/t1/hands?limit=5&offset=10", auth, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 2)
	assert.Equal(t, 5, hands.limit)
	assert.Equal(t, 10, hands.offset)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/tables/t1/hands?limit=lots", auth, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/hands/abc/actions", auth, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = do(t, http.MethodGet, srv.URL+"/v1/hands/7/actions", auth, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["data"], 1)

	resp, _ = do(t, http.MethodGet, srv.URL+"/v1/users/u1", auth, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(store.ErrVersionConflict))
	assert.Equal(t, http.StatusBadRequest, statusFor(store.ErrInvalidInvite))
	assert.Equal(t, http.StatusForbidden, statusFor(fmt.Errorf("x: %w", service.ErrForbidden)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}
