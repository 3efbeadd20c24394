package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/leafline/internal/common"
	"github.com/dmitrijs2005/leafline/internal/dbx"
	"github.com/dmitrijs2005/leafline/internal/logging"
	"github.com/dmitrijs2005/leafline/internal/server/auth"
	"github.com/dmitrijs2005/leafline/internal/server/metrics"
	"github.com/dmitrijs2005/leafline/internal/server/models"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/comments"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/likes"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/posts"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/scans"
	"github.com/dmitrijs2005/leafline/internal/server/repositories/users"
	"github.com/dmitrijs2005/leafline/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fixtures ---

type usersOnly struct{ u users.Repository }

func (m usersOnly) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m usersOnly) Users(dbx.DBTX) users.Repository             { return m.u }
func (m usersOnly) Posts(dbx.DBTX) posts.Repository             { return nil }
func (m usersOnly) Comments(dbx.DBTX) comments.Repository       { return nil }
func (m usersOnly) Likes(dbx.DBTX) likes.Repository             { return nil }
func (m usersOnly) Scans(dbx.DBTX) scans.Repository             { return nil }

type memImages struct{ n int }

func (m *memImages) Put(_ context.Context, _ []byte, _ string) (string, error) {
	m.n++
	return fmt.Sprintf("http://img.local/%d", m.n), nil
}

type stubPosts struct {
	err  error
	list []*models.Post
}

func (p *stubPosts) Create(_ context.Context, userID, title, description string, img *services.Image) (*models.Post, error) {
	if p.err != nil {
		return nil, p.err
	}
	if img == nil {
		return nil, common.NewError("posts.Create", common.ErrValidation, "image is required")
	}
	return &models.Post{ID: "p1", UserID: userID, Title: title, Description: description, Image: "http://img.local/p1"}, nil
}
func (p *stubPosts) ListOwn(context.Context, string) ([]*models.Post, error) { return p.list, p.err }
func (p *stubPosts) EditDetails(_ context.Context, userID, postID, title, description string) (*models.Post, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &models.Post{ID: postID, UserID: userID, Title: title, Description: description}, nil
}
func (p *stubPosts) EditImage(_ context.Context, userID, postID string, _ *services.Image) (*models.Post, error) {
	return &models.Post{ID: postID, UserID: userID}, p.err
}
func (p *stubPosts) Delete(context.Context, string, string) error { return p.err }

type testEnv struct {
	srv    *HTTPServer
	users  *services.UserService
	tokens *auth.TokenIssuer
	posts  *stubPosts
	reg    *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:     []byte("http-test-secret"),
		Issuer:     "leafline-test",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	require.NoError(t, err)
	hasher, err := auth.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	mt, err := metrics.NewAuth(reg)
	require.NoError(t, err)

	us := services.NewUserService(nil, usersOnly{users.NewMemoryRepository()}, tokens, hasher, &memImages{}, mt)
	ps := &stubPosts{}

	srv := NewHTTPServer(":0", logging.Nop{}, Deps{
		Users:      us,
		Posts:      ps,
		Metrics:    metrics.Handler(reg),
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	}, CookieConfig{Secure: true, SameSite: "strict", Path: "/"})

	return &testEnv{srv: srv, users: us, tokens: tokens, posts: ps, reg: reg}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var body apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func jsonReq(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(r *http.Request, token string) *http.Request {
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (e *testEnv) signup(t *testing.T, username, email, password string) {
	t.Helper()
	rec, _ := e.do(t, jsonReq(http.MethodPost, "/api/v1/users/register",
		map[string]string{"username": username, "email": email, "password": password}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (e *testEnv) loginAs(t *testing.T, identifier, password string) (*httptest.ResponseRecorder, loginResponse) {
	t.Helper()
	rec, body := e.do(t, jsonReq(http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": identifier, "password": password}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	var lr loginResponse
	require.NoError(t, json.Unmarshal(raw, &lr))
	return rec, lr
}

// --- tests ---

func TestLogin_SetsCookiesAndReturnsTokens(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")

	rec, lr := e.loginAs(t, "alice", "secret123")
	assert.NotEmpty(t, lr.AccessToken)
	assert.NotEmpty(t, lr.RefreshToken)
	assert.Equal(t, "alice", lr.User.Username)

	at := cookie(rec, common.AccessTokenCookieName)
	require.NotNil(t, at)
	assert.Equal(t, lr.AccessToken, at.Value)
	assert.True(t, at.HttpOnly)
	assert.True(t, at.Secure)
	assert.Equal(t, http.SameSiteStrictMode, at.SameSite)
	assert.Equal(t, int((15 * time.Minute).Seconds()), at.MaxAge)

	rt := cookie(rec, common.RefreshTokenCookieName)
	require.NotNil(t, rt)
	assert.Equal(t, lr.RefreshToken, rt.Value)

	assert.NotContains(t, rec.Body.String(), "passwordHash")
	assert.NotContains(t, rec.Body.String(), "$2a$")
}

func TestLogin_FailuresLookTheSame(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")

	wrong, wrongBody := e.do(t, jsonReq(http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "alice", "password": "nope-nope"}))
	nobody, nobodyBody := e.do(t, jsonReq(http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "nobody@x.com", "password": "nope-nope"}))

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, nobody.Code)
	assert.Equal(t, wrongBody, nobodyBody)
	assert.False(t, wrongBody.Success)
	assert.Nil(t, cookie(wrong, common.AccessTokenCookieName))
}

func TestGuard_HeaderThenCookie(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	rec, body := e.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), lr.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", body.Data.(map[string]any)["username"])

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil)
	req.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: lr.AccessToken})
	rec, _ = e.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// A bad header wins over a good cookie.
	req = withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), "garbage")
	req.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: lr.AccessToken})
	rec, _ = e.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated: no token", body.Message)
}

func TestGuard_ExpiredToken(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	me, err := e.users.Authenticate(context.Background(), lr.AccessToken)
	require.NoError(t, err)
	old, err := e.tokens.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }).IssueAccess(me.ID)
	require.NoError(t, err)

	rec, body := e.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), old))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "token expired", body.Message)
}

func TestRegister(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")

	rec, _ := e.do(t, jsonReq(http.MethodPost, "/api/v1/users/register",
		map[string]string{"username": "alice", "email": "again@x.com", "password": "secret123"}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = e.do(t, jsonReq(http.MethodPost, "/api/v1/users/register",
		map[string]string{"username": "bob", "email": "bob", "password": "secret123"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec, _ = e.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartReq(t *testing.T, method, path string, fields map[string]string, fileField string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, "upload.bin")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestRegister_MultipartWithAvatar(t *testing.T) {
	e := newTestEnv(t)

	rec, body := e.do(t, multipartReq(t, http.MethodPost, "/api/v1/users/register",
		map[string]string{"username": "carol", "email": "carol@x.com", "password": "secret123"},
		"avatar", pngBytes))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "http://img.local/1", body.Data.(map[string]any)["avatar"])

	rec, _ = e.do(t, multipartReq(t, http.MethodPost, "/api/v1/users/register",
		map[string]string{"username": "dave", "email": "dave@x.com", "password": "secret123"},
		"avatar", []byte("plain text, not an image")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefresh_CookieRotationAndReplay(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: lr.RefreshToken})
	rec, _ := e.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rt := cookie(rec, common.RefreshTokenCookieName)
	require.NotNil(t, rt)
	assert.NotEqual(t, lr.RefreshToken, rt.Value)

	rec, _ = e.do(t, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": lr.RefreshToken}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(t, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": rt.Value}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout_ClearsCookiesAndEndsRefresh(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	rec, _ := e.do(t, withBearer(httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil), lr.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := cookie(rec, name)
		require.NotNil(t, c, name)
		assert.Less(t, c.MaxAge, 0)
	}

	rec, _ = e.do(t, jsonReq(http.MethodPost, "/api/v1/users/refresh-token", map[string]string{"refreshToken": lr.RefreshToken}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(t, withBearer(httptest.NewRequest(http.MethodGet, "/api/v1/users/current-user", nil), lr.AccessToken))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	rec, _ := e.do(t, withBearer(jsonReq(http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "wrong-one", "newPassword": "newsecret456"}), lr.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = e.do(t, withBearer(jsonReq(http.MethodPost, "/api/v1/users/change-password",
		map[string]string{"oldPassword": "secret123", "newPassword": "newsecret456"}), lr.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)

	e.loginAs(t, "alice", "newsecret456")
}

func TestUpdateAccount(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	rec, body := e.do(t, withBearer(jsonReq(http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"city": "Pune", "occupation": "farmer"}), lr.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Pune", body.Data.(map[string]any)["city"])

	rec, _ = e.do(t, withBearer(jsonReq(http.MethodPatch, "/api/v1/users/update-account",
		map[string]string{"city": " "}), lr.AccessToken))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPosts_StatusMapping(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	rec, _ := e.do(t, withBearer(multipartReq(t, http.MethodPost, "/api/v1/post/add-post",
		map[string]string{"title": "Tomato", "description": "spots"}, "image", pngBytes), lr.AccessToken))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cases := []struct {
		err  error
		want int
		msg  string
	}{
		{common.NewError("posts.Delete", common.ErrForbidden, "not the owner"), http.StatusForbidden, "forbidden: not the owner"},
		{common.NewError("posts.Delete", common.ErrorNotFound, ""), http.StatusNotFound, "not found"},
		{common.WrapError("posts.Delete", common.ErrInfrastructure, sql.ErrConnDone), http.StatusServiceUnavailable, "service unavailable"},
	}
	for _, tc := range cases {
		e.posts.err = tc.err
		rec, body := e.do(t, withBearer(httptest.NewRequest(http.MethodDelete, "/api/v1/post/delete/p1", nil), lr.AccessToken))
		assert.Equal(t, tc.want, rec.Code)
		assert.Equal(t, tc.msg, body.Message)
		assert.NotContains(t, rec.Body.String(), "connection")
	}

	e.posts.err = nil
	rec, _ = e.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/post/get-all-post", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	e.loginAs(t, "alice", "secret123")

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `leafline_auth_login_total{result="ok"} 1`)
}

func TestStatusFor(t *testing.T) {
	for kind, want := range map[error]int{
		common.ErrValidation:         http.StatusBadRequest,
		common.ErrInvalidCredentials: http.StatusUnauthorized,
		common.ErrUnauthenticated:    http.StatusUnauthorized,
		common.ErrInvalidToken:       http.StatusUnauthorized,
		common.ErrTokenExpired:       http.StatusUnauthorized,
		common.ErrUnknownIdentity:    http.StatusUnauthorized,
		common.ErrAlreadyExists:      http.StatusConflict,
		common.ErrForbidden:          http.StatusForbidden,
		common.ErrorNotFound:         http.StatusNotFound,
		common.ErrInfrastructure:     http.StatusServiceUnavailable,
	} {
		assert.Equal(t, want, StatusFor(common.NewError("op", kind, "")), kind.Error())
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("boom")))
}

func TestLogin_RejectsBothIdentifiers(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")

	rec, body := e.do(t, jsonReq(http.MethodPost, "/api/v1/users/login",
		map[string]string{"username": "alice", "email": "alice@x.com", "password": "secret123"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, body.Message, "not both")
	assert.Nil(t, cookie(rec, common.AccessTokenCookieName))

	rec, _ = e.do(t, jsonReq(http.MethodPost, "/api/v1/users/login",
		map[string]string{"email": "alice@x.com", "password": "secret123"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRefresh_MalformedBodyIsRejected(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "alice@x.com", "secret123")
	_, lr := e.loginAs(t, "alice", "secret123")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", strings.NewReader(`{"refreshToken":`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: lr.RefreshToken})
	rec, _ := e.do(t, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, cookie(rec, common.RefreshTokenCookieName))

	// The cookie was not consumed by the rejected call.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: lr.RefreshToken})
	rec, _ = e.do(t, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
