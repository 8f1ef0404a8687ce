package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/password"
	"github.com/mentorloop/authcore/permission"
	"github.com/mentorloop/authcore/session"
	"github.com/mentorloop/authcore/store"
	"github.com/mentorloop/authcore/store/memstore"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testEnv struct {
	server *Server
	app    *httptest.Server
	store  *memstore.Store
	engine *authcore.Engine
	ids    map[string]string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	hasher, err := password.NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	st := memstore.New()
	ids := map[string]string{}
	for _, seed := range []struct {
		email string
		pw    string
		role  permission.Role
	}{
		{"student@x.com", "pw-student", permission.Student},
		{"mentor@x.com", "pw-mentor", permission.Mentor},
		{"admin@x.com", "pw-admin", permission.Admin},
	} {
		hash, err := hasher.Hash(seed.pw)
		require.NoError(t, err)
		rec, err := st.Create(context.Background(), store.NewIdentity{Email: seed.email, Name: seed.email, PasswordHash: hash, Role: seed.role})
		require.NoError(t, err)
		ids[seed.email] = rec.ID
	}

	cfg := authcore.DefaultConfig()
	cfg.Token.PrivateKey = []byte("httpapi-test-signing-key-0123456789abcdef")
	cfg.Password.Cost = bcrypt.MinCost
	cfg.RateLimit.MaxLoginAttempts = 3
	cfg.Metrics.Enabled = true

	engine, err := authcore.New().WithConfig(cfg).WithIdentityStore(st).WithRedis(rdb).Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("authcore_login_success_total 0\n"))
	})
	srv, err := NewServer(engine, Options{Metrics: metrics})
	require.NoError(t, err)

	app := httptest.NewServer(srv.Router())
	t.Cleanup(app.Close)

	return &testEnv{server: srv, app: app, store: st, engine: engine, ids: ids}
}

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func (e *testEnv) client(t *testing.T) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, base: e.app.URL, http: &http.Client{Jar: jar}}
}

type apiResponse struct {
	Status  int
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Cookies []*http.Cookie
	Header  http.Header
}

func (c *testClient) do(method, path string, body any) apiResponse {
	c.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	out := apiResponse{Status: resp.StatusCode, Cookies: resp.Cookies(), Header: resp.Header}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out
}

func (c *testClient) login(email, pw string) apiResponse {
	c.t.Helper()
	return c.do(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": pw})
}

func cookieNamed(cookies []*http.Cookie, name string) *http.Cookie {
	for _, ck := range cookies {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := pqtotp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return code
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.client(t).do(http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"ok","redis":true}`, string(resp.Data))
}

func TestMetricsMounted(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.app.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWithoutSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	resp := c.login("student@x.com", "pw-student")
	require.Equal(t, http.StatusOK, resp.Status)
	assert.True(t, resp.Success)

	var data struct {
		User authcore.IdentitySummary `json:"user"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, "student@x.com", data.User.Email)
	assert.Equal(t, permission.Student, data.User.Role)
	assert.NotContains(t, string(resp.Data), "pw-student")

	ck := cookieNamed(resp.Cookies, session.SessionCookie)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, "/", ck.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), ck.MaxAge)

	me := c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, me.Status)
	assert.Contains(t, string(me.Data), `"role":"student"`)
}

func TestLoginFailuresShareMessage(t *testing.T) {
	env := newTestEnv(t)

	wrong := env.client(t).login("student@x.com", "nope")
	unknown := env.client(t).login("ghost@x.com", "nope")

	assert.Equal(t, http.StatusUnauthorized, wrong.Status)
	assert.Equal(t, http.StatusUnauthorized, unknown.Status)
	assert.False(t, wrong.Success)
	assert.Equal(t, "invalid credentials", wrong.Error)
	assert.Equal(t, wrong.Error, unknown.Error)
	assert.Nil(t, cookieNamed(wrong.Cookies, session.SessionCookie))
}

func TestMalformedBodies(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, body := range []string{`{`, `{"email":"a@x.com","password":"x","extra":1}`, `[]`, `{"email":"a@x.com","password":"x"}{}`} {
		req, err := http.NewRequest(http.MethodPost, env.app.URL+"/auth/login", bytes.NewBufferString(body))
		require.NoError(t, err)
		resp, err := c.http.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %s", body)
	}

	empty := c.login("", "")
	assert.Equal(t, http.StatusBadRequest, empty.Status)
	assert.Equal(t, "invalid request", empty.Error)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/auth/me"},
		{http.MethodPost, "/auth/2fa/enroll"},
		{http.MethodPost, "/auth/2fa/confirm"},
		{http.MethodPost, "/auth/2fa/disable"},
	} {
		resp := c.do(route.method, route.path, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.Status, route.path)
		assert.Equal(t, "invalid or expired session", resp.Error)
	}
}

func TestSecondFactorLifecycle(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	require.Equal(t, http.StatusOK, c.login("mentor@x.com", "pw-mentor").Status)

	enroll := c.do(http.MethodPost, "/auth/2fa/enroll", nil)
	require.Equal(t, http.StatusOK, enroll.Status)
	assert.Equal(t, "no-store", enroll.Header.Get("Cache-Control"))
	var enrollment authcore.Enrollment
	require.NoError(t, json.Unmarshal(enroll.Data, &enrollment))
	require.NotEmpty(t, enrollment.Secret)
	assert.Contains(t, enrollment.ProvisioningURI, "otpauth://totp/")
	assert.Contains(t, enrollment.QRImage, "data:image/png;base64,")

	rec, err := env.store.FindByID(context.Background(), env.ids["mentor@x.com"])
	require.NoError(t, err)
	assert.False(t, rec.TwoFactorEnabled, "enroll must not persist")

	bad := c.do(http.MethodPost, "/auth/2fa/confirm", map[string]string{"code": "000000", "secret": enrollment.Secret})
	if bad.Status != http.StatusUnauthorized {
		// 000000 can be the live code; the confirm then already succeeded.
		require.Equal(t, http.StatusOK, bad.Status)
	} else {
		assert.Equal(t, "invalid verification code", bad.Error)
		confirm := c.do(http.MethodPost, "/auth/2fa/confirm", map[string]string{"code": currentCode(t, enrollment.Secret), "secret": enrollment.Secret})
		require.Equal(t, http.StatusOK, confirm.Status)
		assert.JSONEq(t, `{"twoFactorEnabled":true}`, string(confirm.Data))
	}

	again := c.do(http.MethodPost, "/auth/2fa/enroll", nil)
	assert.Equal(t, http.StatusBadRequest, again.Status, "active second factor must not be re-enrolled")

	logout := c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, logout.Status)
	assert.JSONEq(t, `{"loggedOut":true}`, string(logout.Data))

	// A fresh client so no session cookie lingers.
	c2 := env.client(t)
	login := c2.login("mentor@x.com", "pw-mentor")
	require.Equal(t, http.StatusOK, login.Status)
	assert.JSONEq(t, `{"twoFactorRequired":true}`, string(login.Data))
	require.NotNil(t, cookieNamed(login.Cookies, session.PendingCookie))
	sessionCk := cookieNamed(login.Cookies, session.SessionCookie)
	require.NotNil(t, sessionCk)
	assert.Empty(t, sessionCk.Value)

	// The pending cookie grants no access to protected routes.
	assert.Equal(t, http.StatusUnauthorized, c2.do(http.MethodGet, "/auth/me", nil).Status)

	pendingValue := cookieNamed(login.Cookies, session.PendingCookie).Value

	verify := c2.do(http.MethodPost, "/auth/2fa/verify", map[string]string{"code": currentCode(t, enrollment.Secret)})
	require.Equal(t, http.StatusOK, verify.Status)
	assert.Contains(t, string(verify.Data), `"email":"mentor@x.com"`)
	require.NotNil(t, cookieNamed(verify.Cookies, session.SessionCookie))
	cleared := cookieNamed(verify.Cookies, session.PendingCookie)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	assert.Equal(t, http.StatusOK, c2.do(http.MethodGet, "/auth/me", nil).Status)

	// Replaying the pending token is rejected once it has been used.
	replay, err := http.NewRequest(http.MethodPost, env.app.URL+"/auth/2fa/verify",
		bytes.NewBufferString(`{"code":"`+currentCode(t, enrollment.Secret)+`"}`))
	require.NoError(t, err)
	replay.AddCookie(&http.Cookie{Name: session.PendingCookie, Value: pendingValue})
	replayResp, err := http.DefaultClient.Do(replay)
	require.NoError(t, err)
	replayResp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, replayResp.StatusCode)

	disable := c2.do(http.MethodPost, "/auth/2fa/disable", map[string]string{"code": currentCode(t, enrollment.Secret)})
	require.Equal(t, http.StatusOK, disable.Status)
	assert.JSONEq(t, `{"twoFactorEnabled":false}`, string(disable.Data))
}

func TestVerifyWithoutPendingCookie(t *testing.T) {
	env := newTestEnv(t)
	resp := env.client(t).do(http.MethodPost, "/auth/2fa/verify", map[string]string{"code": "123456"})

	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, "invalid or expired session", resp.Error)
}

func TestLogoutAlwaysClearsCookies(t *testing.T) {
	env := newTestEnv(t)
	resp := env.client(t).do(http.MethodPost, "/auth/logout", nil)

	require.Equal(t, http.StatusOK, resp.Status)
	for _, name := range []string{session.SessionCookie, session.PendingCookie} {
		ck := cookieNamed(resp.Cookies, name)
		require.NotNil(t, ck, name)
		assert.Less(t, ck.MaxAge, 0, name)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)
	c := env.client(t)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusUnauthorized, c.login("student@x.com", "wrong").Status)
	}
	resp := c.login("student@x.com", "pw-student")
	assert.Equal(t, http.StatusTooManyRequests, resp.Status)
	assert.Equal(t, "too many attempts, try again later", resp.Error)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func TestGuardRoles(t *testing.T) {
	env := newTestEnv(t)

	r := chi.NewRouter()
	r.With(env.server.Guard(permission.Mentor, permission.Admin)).Get("/mentors", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"ok": "yes"})
	})
	r.Mount("/", env.server.Router())
	app := httptest.NewServer(r)
	defer app.Close()

	for _, tc := range []struct {
		email, pw string
		want      int
	}{
		{"student@x.com", "pw-student", http.StatusForbidden},
		{"mentor@x.com", "pw-mentor", http.StatusOK},
		{"admin@x.com", "pw-admin", http.StatusOK},
	} {
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		c := &testClient{t: t, base: app.URL, http: &http.Client{Jar: jar}}
		require.Equal(t, http.StatusOK, c.login(tc.email, tc.pw).Status)

		resp := c.do(http.MethodGet, "/mentors", nil)
		assert.Equal(t, tc.want, resp.Status, tc.email)
		if tc.want == http.StatusForbidden {
			assert.Equal(t, "forbidden", resp.Error)
		}
	}
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(nil, Options{})
	assert.Error(t, err)
}
