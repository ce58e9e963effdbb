package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cachemem "github.com/seralabs/tokend/internal/cache/memory"
	"github.com/seralabs/tokend/internal/grant"
	"github.com/seralabs/tokend/internal/security/password"
	"github.com/seralabs/tokend/internal/store/core"
	"github.com/seralabs/tokend/internal/store/memory"
)

type fixture struct {
	router http.Handler
	store  *memory.Store
	user   *core.User
	client *core.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()

	hash, err := password.Hash(password.Default, "correct")
	require.NoError(t, err)

	user, err := st.CreateUser(ctx, &core.User{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		PasswordHash: hash,
	})
	require.NoError(t, err)

	client, err := st.CreateClient(ctx, &core.Client{
		ID:   uuid.NewString(),
		Name: "clientx",
	})
	require.NoError(t, err)

	fp, err := st.CreateClient(ctx, &core.Client{
		ID:   uuid.NewString(),
		Name: "accounts",
	})
	require.NoError(t, err)

	svc := grant.New(st, *fp, nil, grant.Options{}, nil)
	router := NewRouter(svc, st, cachemem.New(time.Second), time.Second, nil)
	return &fixture{router: router, store: st, user: user, client: client}
}

func (f *fixture) post(t *testing.T, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tokens", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) issue(t *testing.T) grant.TokenResponse {
	t.Helper()
	w := f.post(t, url.Values{
		"grant_type": {"password"},
		"username":   {"alice@example.com"},
		"password":   {"correct"},
		"client_id":  {f.client.ID},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp grant.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestIssuePasswordGrant(t *testing.T) {
	f := newFixture(t)
	resp := f.issue(t)
	require.NotEmpty(t, resp.ID)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Equal(t, int64(3600), resp.ExpiresIn)
}

func TestIssueWrongPasswordIs401(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, url.Values{
		"grant_type": {"password"},
		"username":   {"alice@example.com"},
		"password":   {"wrong"},
		"client_id":  {f.client.ID},
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "invalid_grant", body["error"])
}

func TestIssueMissingFieldsIs400(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, url.Values{
		"grant_type": {"password"},
		"username":   {"alice@example.com"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueUnknownGrantTypeIs422(t *testing.T) {
	f := newFixture(t)
	w := f.post(t, url.Values{
		"grant_type": {"implicit"},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRefreshGrantOverHTTP(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	w := f.post(t, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {issued.RefreshToken},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp grant.TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Empty(t, resp.ID)
	require.Equal(t, issued.AccessToken, resp.AccessToken)
}

func TestInspectRequiresBearer(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	req := httptest.NewRequest(http.MethodGet, "/tokens/"+issued.ID, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInspectOwnToken(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	req := httptest.NewRequest(http.MethodGet, "/tokens/"+issued.ID, nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp grant.InspectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, issued.ID, resp.ID)
	require.Equal(t, f.user.ID, resp.User)
	require.True(t, resp.Has.Can("tokens:"+issued.ID, "read"))
}

func TestInspectForeignTokenIs401(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	req := httptest.NewRequest(http.MethodGet, "/tokens/"+uuid.NewString(), nil)
	req.Header.Set("Authorization", "Bearer "+issued.AccessToken)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t)
	issued := f.issue(t)

	req := httptest.NewRequest(http.MethodDelete, "/tokens/"+issued.AccessToken, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// a second delete of the same string no longer matches anything
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/tokens/"+issued.AccessToken, nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
