package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvvault/internal/auth"
	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/JonMunkholm/csvvault/internal/core"
)

// fakeUploads records the last call and returns canned results.
type fakeUploads struct {
	mu        sync.Mutex
	lastFile  *core.FileInput
	created   bool
	createErr error
	upload    core.Upload
	rows      []core.UploadRow
	content   string
	deleted   []uuid.UUID
}

func (f *fakeUploads) Create(_ context.Context, p core.Principal, file *core.FileInput) (core.Upload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = true
	f.lastFile = file
	if f.createErr != nil {
		return core.Upload{}, f.createErr
	}
	u := f.upload
	u.UserID = p.ID
	return u, nil
}

func (f *fakeUploads) visible(p core.Principal, id uuid.UUID) bool {
	return id == f.upload.ID && core.CanView(p, f.upload)
}

func (f *fakeUploads) Read(_ context.Context, p core.Principal, id uuid.UUID) (core.UploadDetail, error) {
	if !f.visible(p, id) {
		return core.UploadDetail{}, core.ErrNotFound
	}
	return core.UploadDetail{Upload: f.upload, Rows: f.rows}, nil
}

func (f *fakeUploads) ListOwn(_ context.Context, p core.Principal) ([]core.Upload, error) {
	if f.upload.UserID == p.ID {
		return []core.Upload{f.upload}, nil
	}
	return []core.Upload{}, nil
}

func (f *fakeUploads) ListAll(_ context.Context, p core.Principal) ([]core.Upload, error) {
	if !core.CanListAll(p) {
		return nil, core.ErrForbidden
	}
	return []core.Upload{f.upload}, nil
}

func (f *fakeUploads) Download(_ context.Context, p core.Principal, id uuid.UUID) (core.Download, error) {
	if !f.visible(p, id) {
		return core.Download{}, core.ErrNotFound
	}
	return core.Download{
		Filename: f.upload.Filename,
		Size:     int64(len(f.content)),
		Body:     io.NopCloser(strings.NewReader(f.content)),
	}, nil
}

func (f *fakeUploads) Delete(_ context.Context, p core.Principal, id uuid.UUID) error {
	if !f.visible(p, id) {
		return core.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

// fakeAuthn accepts tokens of the form "token-<user id>".
type fakeAuthn struct {
	users     map[string]core.User
	session   auth.Session
	loginErr  error
	lastCode  string
	loggedOut []string
}

func (a *fakeAuthn) Authenticate(_ context.Context, token string) (core.User, error) {
	u, ok := a.users[token]
	if !ok {
		return core.User{}, fmt.Errorf("%w: unknown token", core.ErrUnauthenticated)
	}
	return u, nil
}

func (a *fakeAuthn) LoginURL(state string) string {
	return "https://accounts.example.com/o/oauth2/auth?state=" + state
}

func (a *fakeAuthn) CompleteLogin(_ context.Context, code string) (auth.Session, error) {
	a.lastCode = code
	if a.loginErr != nil {
		return auth.Session{}, a.loginErr
	}
	return a.session, nil
}

func (a *fakeAuthn) Logout(_ context.Context, token string) error {
	a.loggedOut = append(a.loggedOut, token)
	return nil
}

type testEnv struct {
	server  *Server
	uploads *fakeUploads
	authn   *fakeAuthn
	owner   core.User
	other   core.User
	admin   core.User
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 1 << 10},
		Rate:   config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{
			SecureCookies: true,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	owner := core.User{ID: uuid.New(), Email: "owner@example.com"}
	other := core.User{ID: uuid.New(), Email: "other@example.com"}
	admin := core.User{ID: uuid.New(), Email: "admin@example.com", Admin: true}

	uploads := &fakeUploads{
		upload: core.Upload{
			ID:          uuid.New(),
			UserID:      owner.ID,
			Filename:    "people.csv",
			ContentHash: strings.Repeat("a", 64),
			RowCount:    2,
			ColumnCount: 2,
			UploadedAt:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		rows: []core.UploadRow{
			{RowIndex: 0, Values: []string{"name", "age"}},
			{RowIndex: 1, Values: []string{"ada", "36"}},
		},
		content: "name,age\nada,36\n",
	}
	authn := &fakeAuthn{
		users: map[string]core.User{
			"token-owner": owner,
			"token-other": other,
			"token-admin": admin,
		},
		session: auth.Session{Token: "new-token", ExpiresAt: time.Now().Add(time.Hour), User: owner},
	}

	srv := NewServer(uploads, authn, testConfig())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, uploads: uploads, authn: authn, owner: owner, other: other, admin: admin}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func authed(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: token})
	req.Header.Set("Accept", "application/json")
	return req
}

func multipartUpload(t *testing.T, filename, contentType, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)
	env.server.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	for _, path := range []string{"/", "/api/health_check"} {
		rec := env.do(httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var got healthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "ok", got.Status)
		assert.Equal(t, "2024-05-06T07:08:09Z", got.Timestamp)
	}

	rec := env.do(httptest.NewRequest(http.MethodGet, "/up", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLoginRedirectsWithState(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/auth/google_oauth2", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	state := cookieNamed(rec, auth.StateCookieName)
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)
	assert.Equal(t, "/auth", state.Path)
	assert.Equal(t, "https://accounts.example.com/o/oauth2/auth?state="+state.Value, rec.Header().Get("Location"))
}

func TestCallback(t *testing.T) {
	tests := []struct {
		name        string
		cookieState string
		query       string
		wantStatus  int
		wantSession bool
	}{
		{"valid", "abc", "state=abc&code=xyz", http.StatusFound, true},
		{"state mismatch", "abc", "state=zzz&code=xyz", http.StatusUnauthorized, false},
		{"no state cookie", "", "state=abc&code=xyz", http.StatusUnauthorized, false},
		{"missing code", "abc", "state=abc", http.StatusUnauthorized, false},
		{"provider error", "abc", "error=access_denied&state=abc", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(http.MethodGet, "/auth/google_oauth2/callback?"+tt.query, nil)
			req.Header.Set("Accept", "application/json")
			if tt.cookieState != "" {
				req.AddCookie(&http.Cookie{Name: auth.StateCookieName, Value: tt.cookieState})
			}

			rec := env.do(req)
			assert.Equal(t, tt.wantStatus, rec.Code)

			session := cookieNamed(rec, auth.SessionCookieName)
			if !tt.wantSession {
				assert.Nil(t, session)
				return
			}
			require.NotNil(t, session)
			assert.Equal(t, "new-token", session.Value)
			assert.True(t, session.HttpOnly)
			assert.True(t, session.Secure)
			assert.Equal(t, "/", rec.Header().Get("Location"))
			assert.Equal(t, "xyz", env.authn.lastCode)
		})
	}
}

func TestLogout(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			env := newTestEnv(t)
			req := httptest.NewRequest(method, "/logout", nil)
			req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "token-owner"})

			rec := env.do(req)
			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))
			assert.Equal(t, []string{"token-owner"}, env.authn.loggedOut)

			cleared := cookieNamed(rec, auth.SessionCookieName)
			require.NotNil(t, cleared)
			assert.Less(t, cleared.MaxAge, 0)
		})
	}
}

func TestDashboardAuthentication(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/auth/google_oauth2", rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	rec = env.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, "/dashboard", nil), "token-owner"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got uploadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Uploads, 1)
	assert.Equal(t, env.uploads.upload.ID, got.Uploads[0].ID)
}

func TestCreateUpload(t *testing.T) {
	env := newTestEnv(t)

	req := authed(multipartUpload(t, "people.csv", "text/csv", "name,age\nada,36\n"), "token-owner")
	rec := env.do(req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "/uploads/"+env.uploads.upload.ID.String(), rec.Header().Get("Location"))

	require.NotNil(t, env.uploads.lastFile)
	assert.Equal(t, "people.csv", env.uploads.lastFile.Filename)
	assert.Equal(t, "text/csv", env.uploads.lastFile.ContentType)
	assert.Equal(t, "name,age\nada,36\n", string(env.uploads.lastFile.Data))

	var got core.Upload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, env.owner.ID, got.UserID)
	assert.Equal(t, 2, got.RowCount)
}

func TestCreateUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t)
	env.uploads.createErr = &core.Rejection{Reason: core.NoFileProvided}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("note", "nothing attached"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(authed(req, "token-owner"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, env.uploads.created)
	assert.Nil(t, env.uploads.lastFile)
}

func TestCreateUploadTooLarge(t *testing.T) {
	env := newTestEnv(t)

	big := strings.Repeat("a,b\n", 1024)
	rec := env.do(authed(multipartUpload(t, "big.csv", "text/csv", big), "token-owner"))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, env.uploads.created)
	assert.Contains(t, rec.Body.String(), "FILE001")
}

func TestCreateUploadRejections(t *testing.T) {
	tests := []struct {
		reason core.RejectionReason
		status int
		code   string
	}{
		{core.NoFileProvided, http.StatusBadRequest, "FILE004"},
		{core.InvalidFileType, http.StatusUnsupportedMediaType, "FILE006"},
		{core.EmptyFile, http.StatusUnprocessableEntity, "FILE005"},
		{core.MalformedContent, http.StatusUnprocessableEntity, "FILE002"},
		{core.InconsistentColumns, http.StatusUnprocessableEntity, "FILE007"},
		{core.DuplicateFile, http.StatusConflict, "FILE008"},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			env := newTestEnv(t)
			env.uploads.createErr = &core.Rejection{Reason: tt.reason}

			rec := env.do(authed(multipartUpload(t, "x.csv", "text/csv", "a\n"), "token-owner"))
			require.Equal(t, tt.status, rec.Code)

			var got ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.code, got.Code)
			assert.Equal(t, string(tt.reason), got.Reason)
			assert.Equal(t, tt.reason.Message(), got.Message)
		})
	}
}

func TestShowUpload(t *testing.T) {
	env := newTestEnv(t)
	path := "/uploads/" + env.uploads.upload.ID.String()

	rec := env.do(authed(httptest.NewRequest(http.MethodGet, path, nil), "token-owner"))
	require.Equal(t, http.StatusOK, rec.Code)

	var got core.UploadDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"ada", "36"}, got.Rows[1].Values)

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, path, nil), "token-other"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, "/uploads/not-a-uuid", nil), "token-owner"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDownloadUpload(t *testing.T) {
	env := newTestEnv(t)
	path := "/uploads/" + env.uploads.upload.ID.String() + "/download"

	rec := env.do(authed(httptest.NewRequest(http.MethodGet, path, nil), "token-owner"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=people.csv`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "16", rec.Header().Get("Content-Length"))
	assert.Equal(t, env.uploads.content, rec.Body.String())

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, path, nil), "token-other"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUpload(t *testing.T) {
	env := newTestEnv(t)
	path := "/uploads/" + env.uploads.upload.ID.String()

	rec := env.do(authed(httptest.NewRequest(http.MethodDelete, path, nil), "token-other"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, env.uploads.deleted)

	rec = env.do(authed(httptest.NewRequest(http.MethodDelete, path, nil), "token-admin"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{env.uploads.upload.ID}, env.uploads.deleted)
}

func TestAdminRoutes(t *testing.T) {
	env := newTestEnv(t)
	detail := "/admin/uploads/" + env.uploads.upload.ID.String()

	rec := env.do(authed(httptest.NewRequest(http.MethodGet, "/admin/uploads", nil), "token-owner"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, detail, nil), "token-other"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, "/admin/uploads", nil), "token-admin"))
	require.Equal(t, http.StatusOK, rec.Code)
	var got uploadListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.Uploads, 1)

	rec = env.do(authed(httptest.NewRequest(http.MethodGet, detail, nil), "token-admin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBrowserErrorsArePlainText(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/uploads/"+uuid.NewString(), nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "token-owner"})

	rec := env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPL003")
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}
