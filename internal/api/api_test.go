package api_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/movienight/internal/api"
	"github.com/mcoot/movienight/internal/api/apierr"
	"github.com/mcoot/movienight/internal/api/response"
	"github.com/mcoot/movienight/internal/factory"
)

const fridayID = "0b6f1c2e-8d1a-4f5b-9c3e-7a2d4e6f8a10"

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	app := factory.NewTestApp()

	router := api.NewRouter(api.RouterConfig{
		Logger:          logger,
		AuthService:     app.AuthService,
		Sessions:        app.Issuer,
		Coordinator:     app.Coordinator,
		WatchController: app.WatchController,
	})

	return &testServer{
		handler: router,
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// signup registers and logs in a user, returning its tokens
func (ts *testServer) signup(t *testing.T, username string) response.Tokens {
	t.Helper()

	body := map[string]string{"username": username, "password": username + "-pw"}
	rr := ts.request(http.MethodPost, "/api/v1/users/register", body, "")
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, "/api/v1/users/login", body, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var tokens response.Tokens
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokens))
	return tokens
}

// createGroup creates the Friday group owned by the token holder
func (ts *testServer) createGroup(t *testing.T, token string) response.GroupRef {
	t.Helper()

	ts.app.MockIDs.Queue(fridayID)
	rr := ts.request(http.MethodPost, "/api/v1/groups", map[string]string{"group_name": "Friday"}, token)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var ref response.GroupRef
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ref))
	return ref
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) apierr.APIError {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
	assert.NotEmpty(t, rr.Header().Get("X-Trace-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestOversizedBodyRejected(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"username": "alice", "password": strings.Repeat("x", 70<<10)}
	rr := ts.request(http.MethodPost, "/api/v1/users/register", body, "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, apierr.CodeBodyTooLarge, decodeError(t, rr).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	ts.request(http.MethodGet, "/api/v1/health", nil, "")

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "http_requests_total")
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	// Register
	body := map[string]string{"username": "alice", "password": "secret123"}
	rr := ts.request(http.MethodPost, "/api/v1/users/register", body, "")
	assert.Equal(t, http.StatusCreated, rr.Code)

	var user response.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
	assert.Empty(t, user.Groups)
	assert.NotContains(t, rr.Body.String(), "password")
	assert.NotContains(t, rr.Body.String(), "salt")

	// Login
	rr = ts.request(http.MethodPost, "/api/v1/users/login", body, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var tokens response.Tokens
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &tokens))
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)

	// Me
	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, tokens.AccessToken)
	assert.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &user))
	assert.Equal(t, "alice", user.Username)
}

func TestRegisterDuplicate(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/users/register",
		map[string]string{"username": "alice", "password": "other"}, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeUsernameExists, decodeError(t, rr).Code)
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{name: "missing password", body: map[string]string{"username": "alice"}, code: apierr.CodeInvalidRequest},
		{name: "short username", body: map[string]string{"username": "al", "password": "pw"}, code: apierr.CodeInvalidRequest},
		{name: "bad characters", body: map[string]string{"username": "al ice", "password": "pw"}, code: apierr.CodeInvalidIdentifier},
		{name: "not json", body: "nope", code: apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/api/v1/users/register", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, tt.code, decodeError(t, rr).Code)
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	ts := newTestServer(t)
	ts.signup(t, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "alice", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, decodeError(t, rr).Code)

	// Unknown users are indistinguishable from a wrong password
	rr = ts.request(http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "nobody", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeInvalidCredentials, decodeError(t, rr).Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/users/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/groups", map[string]string{"group_name": "x"}, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestExpiredTokenAndRefresh(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.signup(t, "alice")

	ts.app.MockClock.Advance(time.Hour)

	rr := ts.request(http.MethodGet, "/api/v1/users/me", nil, tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeTokenExpired, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/users/refresh",
		map[string]string{"refresh_token": tokens.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var next response.Tokens
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &next))

	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, next.AccessToken)
	assert.Equal(t, http.StatusOK, rr.Code)

	// The old refresh token was consumed
	rr = ts.request(http.MethodPost, "/api/v1/users/refresh",
		map[string]string{"refresh_token": tokens.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.signup(t, "alice")

	rr := ts.request(http.MethodPost, "/api/v1/users/logout",
		map[string]string{"refresh_token": tokens.RefreshToken}, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/users/refresh",
		map[string]string{"refresh_token": tokens.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdatePassword(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.signup(t, "alice")

	rr := ts.request(http.MethodPut, "/api/v1/users/me/password",
		map[string]string{"old_password": "wrong", "new_password": "next"}, tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPut, "/api/v1/users/me/password",
		map[string]string{"old_password": "alice-pw", "new_password": "next"}, tokens.AccessToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "alice", "password": "next"}, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGroupFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	bob := ts.signup(t, "bob")

	// Create
	ref := ts.createGroup(t, alice.AccessToken)
	assert.Equal(t, fridayID, ref.ID)
	assert.Equal(t, "Friday", ref.Name)

	path := "/api/v1/groups/" + ref.ID

	// Bob is not a member yet
	rr := ts.request(http.MethodGet, path, nil, bob.AccessToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, apierr.CodeNotMember, decodeError(t, rr).Code)

	// Join
	rr = ts.request(http.MethodPost, path+"/join", nil, bob.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	var group response.Group
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &group))
	assert.Equal(t, []string{"alice", "bob"}, group.Members)
	assert.Equal(t, "alice", group.Turn)
	assert.Equal(t, "adding_movies", group.SystemState)

	// Bob's index lists the group
	rr = ts.request(http.MethodGet, "/api/v1/users/me", nil, bob.AccessToken)
	var me response.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	assert.Equal(t, []response.GroupRef{{ID: fridayID, Name: "Friday"}}, me.Groups)

	// Add a movie and ready up
	rr = ts.request(http.MethodPost, path+"/movies", map[string]any{"id": "tt0078748", "title": "Alien", "year": 1979}, bob.AccessToken)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = ts.request(http.MethodPost, path+"/movies", map[string]any{"id": "tt0078748", "title": "Alien"}, alice.AccessToken)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeMovieAlreadyAdded, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, path+"/ready", map[string]bool{"ready": true}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = ts.request(http.MethodPost, path+"/ready", map[string]bool{"ready": true}, bob.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &group))
	assert.Equal(t, "voting", group.SystemState)

	// Leave
	rr = ts.request(http.MethodPost, path+"/leave", nil, bob.AccessToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodPost, path+"/leave", nil, bob.AccessToken)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Last member leaving deletes the group
	rr = ts.request(http.MethodPost, path+"/leave", nil, alice.AccessToken)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = ts.request(http.MethodGet, path, nil, alice.AccessToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeGroupNotFound, decodeError(t, rr).Code)
}

func TestAddMember(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	ts.signup(t, "bob")
	ref := ts.createGroup(t, alice.AccessToken)

	rr := ts.request(http.MethodPost, "/api/v1/groups/"+ref.ID+"/members",
		map[string]string{"username": "bob"}, alice.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/groups/"+ref.ID+"/members",
		map[string]string{"username": "nobody"}, alice.AccessToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeUserNotFound, decodeError(t, rr).Code)
}

func TestReadyRequiresMovies(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	ref := ts.createGroup(t, alice.AccessToken)

	rr := ts.request(http.MethodPost, "/api/v1/groups/"+ref.ID+"/ready", map[string]bool{"ready": true}, alice.AccessToken)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, apierr.CodeNoMovies, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/groups/"+ref.ID+"/ready", map[string]string{}, alice.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGroupErrors(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")

	rr := ts.request(http.MethodGet, "/api/v1/groups/not-a-uuid", nil, alice.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeInvalidIdentifier, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/groups/"+fridayID+"/join", nil, alice.AccessToken)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeGroupNotFound, decodeError(t, rr).Code)

	rr = ts.request(http.MethodPost, "/api/v1/groups", map[string]string{}, alice.AccessToken)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRepairEndpoints(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.signup(t, "alice")
	ref := ts.createGroup(t, alice.AccessToken)

	rr := ts.request(http.MethodPost, "/api/v1/groups/"+ref.ID+"/repair", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	var repair response.Repair
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &repair))
	assert.Equal(t, 0, repair.Repaired)

	rr = ts.request(http.MethodPost, "/api/v1/users/me/repair", nil, alice.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &repair))
	assert.Equal(t, 0, repair.Repaired)
}
