package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/iliyagoodarzi28/ModernBlog/internal/account"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/credentials"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/provider"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/resolver"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/state"
	"github.com/iliyagoodarzi28/ModernBlog/internal/middleware"
	"github.com/iliyagoodarzi28/ModernBlog/internal/session"

	"github.com/gin-gonic/gin"
)

// fakeProvider returns a configured identity or error from ExchangeCode.
type fakeProvider struct {
	name        string
	identity    *auth.Identity
	exchangeErr error

	lastVerifier string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) AuthCodeURL(stateToken, codeChallenge string) string {
	return "https://provider.example/authorize?state=" + stateToken +
		"&code_challenge=" + codeChallenge
}

func (f *fakeProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*auth.Identity, error) {
	f.lastVerifier = codeVerifier
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	cp := *f.identity
	return &cp, nil
}

// memPending is an in-memory single-use pending-state store.
type memPending struct {
	entries map[string]state.Pending
}

func newMemPending() *memPending {
	return &memPending{entries: make(map[string]state.Pending)}
}

func (m *memPending) Save(ctx context.Context, token string, p state.Pending) error {
	m.entries[token] = p
	return nil
}

func (m *memPending) Consume(ctx context.Context, token string) (*state.Pending, error) {
	p, ok := m.entries[token]
	if !ok {
		return nil, nil
	}
	delete(m.entries, token)
	return &p, nil
}

// memSessions is an in-memory session store.
type memSessions struct {
	sessions map[string]session.Session
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]session.Session)}
}

func (m *memSessions) Create(ctx context.Context, s session.Session) error {
	m.sessions[s.Token] = s
	return nil
}

func (m *memSessions) Get(ctx context.Context, token string) (*session.Session, error) {
	s, ok := m.sessions[token]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (m *memSessions) Delete(ctx context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

type noLockout struct{}

func (noLockout) Locked(ctx context.Context, key string) (bool, error) { return false, nil }
func (noLockout) RecordFailure(ctx context.Context, key string) error  { return nil }
func (noLockout) Reset(ctx context.Context, key string) error          { return nil }

type fixture struct {
	router   *gin.Engine
	provider *fakeProvider
	pending  *memPending
	sessions *memSessions
	accounts *account.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	p := &fakeProvider{
		name: "google",
		identity: &auth.Identity{
			Provider:       "google",
			ProviderUserID: "sub-1",
			Email:          "user@example.com",
			EmailVerified:  true,
			Name:           "Test User",
		},
	}

	accounts := account.NewMemoryStore()
	sessions := newMemSessions()
	pending := newMemPending()

	h := NewHandler(
		provider.NewRegistry(p),
		sessions,
		pending,
		resolver.NewStoreResolver(accounts),
		credentials.NewService(accounts, noLockout{}),
		accounts,
		Options{
			SessionTTL:      time.Hour,
			RememberMeTTL:   30 * 24 * time.Hour,
			ProviderTimeout: time.Second,
		},
	)

	router := gin.New()
	h.RegisterRoutes(router)

	authMiddleware := middleware.NewAuthMiddleware(sessions)
	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))
	api.GET("/me", h.Me)
	api.POST("/password", h.ChangePassword)

	return &fixture{
		router:   router,
		provider: p,
		pending:  pending,
		sessions: sessions,
		accounts: accounts,
	}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

// beginOAuth runs the start leg and returns the issued state token.
func (f *fixture) beginOAuth(t *testing.T) string {
	t.Helper()

	w := f.do(httptest.NewRequest(http.MethodGet, "/oauth/google/start", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("start status = %d, want 302", w.Code)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	stateToken := loc.Query().Get("state")
	if stateToken == "" {
		t.Fatal("redirect missing state")
	}
	if _, ok := f.pending.entries[stateToken]; !ok {
		t.Fatal("state not persisted")
	}
	return stateToken
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

func TestOAuthFlow_Success(t *testing.T) {
	f := newFixture(t)
	stateToken := f.beginOAuth(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state="+stateToken+"&code=authcode", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("callback status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != successPath {
		t.Fatalf("redirect = %q, want %q", loc, successPath)
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("no session cookie issued")
	}

	sess, _ := f.sessions.Get(context.Background(), cookie.Value)
	if sess == nil {
		t.Fatal("session not persisted")
	}

	accounts, identities := f.accounts.Counts()
	if accounts != 1 || identities != 1 {
		t.Fatalf("counts = %d accounts, %d identities, want 1/1", accounts, identities)
	}

	if f.provider.lastVerifier == "" {
		t.Error("PKCE verifier not passed to exchange")
	}
}

func TestOAuthCallback_TamperedState(t *testing.T) {
	f := newFixture(t)
	f.beginOAuth(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state=forged&code=authcode", nil))

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != loginPath+"?error=state_mismatch" {
		t.Fatalf("redirect = %q, want state_mismatch", loc)
	}
	if sessionCookie(w) != nil {
		t.Fatal("session cookie issued on state mismatch")
	}
	if len(f.sessions.sessions) != 0 {
		t.Fatal("session persisted on state mismatch")
	}
}

func TestOAuthCallback_MissingState(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?code=authcode", nil))

	if loc := w.Header().Get("Location"); loc != loginPath+"?error=state_mismatch" {
		t.Fatalf("redirect = %q, want state_mismatch", loc)
	}
}

func TestOAuthCallback_StateIsSingleUse(t *testing.T) {
	f := newFixture(t)
	stateToken := f.beginOAuth(t)

	target := "/oauth/google/callback?state=" + stateToken + "&code=authcode"

	first := f.do(httptest.NewRequest(http.MethodGet, target, nil))
	if loc := first.Header().Get("Location"); loc != successPath {
		t.Fatalf("first callback redirect = %q", loc)
	}

	replay := f.do(httptest.NewRequest(http.MethodGet, target, nil))
	if loc := replay.Header().Get("Location"); loc != loginPath+"?error=state_mismatch" {
		t.Fatalf("replay redirect = %q, want state_mismatch", loc)
	}

	if accounts, _ := f.accounts.Counts(); accounts != 1 {
		t.Errorf("accounts = %d, want 1", accounts)
	}
}

func TestOAuthCallback_StateBoundToProvider(t *testing.T) {
	f := newFixture(t)

	// State issued for a different provider must not satisfy google's
	// callback.
	f.pending.entries["cross"] = state.Pending{
		Provider:     "facebook",
		CodeVerifier: "v",
		CreatedAt:    time.Now(),
	}

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state=cross&code=authcode", nil))

	if loc := w.Header().Get("Location"); loc != loginPath+"?error=state_mismatch" {
		t.Fatalf("redirect = %q, want state_mismatch", loc)
	}
}

func TestOAuthCallback_ConsentDenied(t *testing.T) {
	f := newFixture(t)
	f.beginOAuth(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?error=access_denied&error_description=denied", nil))

	if loc := w.Header().Get("Location"); loc != loginPath+"?error=provider_denied" {
		t.Fatalf("redirect = %q, want provider_denied", loc)
	}
	if accounts, _ := f.accounts.Counts(); accounts != 0 {
		t.Errorf("accounts = %d, want 0", accounts)
	}
}

func TestOAuthCallback_ExchangeFailure(t *testing.T) {
	f := newFixture(t)
	f.provider.exchangeErr = fmt.Errorf("token endpoint: connection refused")
	stateToken := f.beginOAuth(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state="+stateToken+"&code=authcode", nil))

	if loc := w.Header().Get("Location"); loc != loginPath+"?error=provider_exchange_failed" {
		t.Fatalf("redirect = %q, want provider_exchange_failed", loc)
	}
}

func TestOAuthCallback_ProfileIncomplete(t *testing.T) {
	f := newFixture(t)
	f.provider.exchangeErr = fmt.Errorf("missing email claim: %w", auth.ErrProviderProfileIncomplete)
	stateToken := f.beginOAuth(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state="+stateToken+"&code=authcode", nil))

	if loc := w.Header().Get("Location"); loc != loginPath+"?error=profile_incomplete" {
		t.Fatalf("redirect = %q, want profile_incomplete", loc)
	}
}

func TestOAuthCallback_UnknownProvider(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/twitter/callback?state=s&code=c", nil))

	if loc := w.Header().Get("Location"); loc != loginPath+"?error=unknown_provider" {
		t.Fatalf("redirect = %q, want unknown_provider", loc)
	}
}

func TestCredentialLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@x.com","password":"correct-horse"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", w.Code)
	}

	w = f.do(httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@x.com","password":"wrong"}`)))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("login status = %d, want 401", w.Code)
	}
	if sessionCookie(w) != nil {
		t.Fatal("session cookie issued for wrong password")
	}
}

// Register locally, then complete an OAuth callback claiming the same
// email: the identity must attach to the existing account.
func TestLocalThenOAuthSameEmail_LinksNotDuplicates(t *testing.T) {
	f := newFixture(t)
	f.provider.identity.Email = "a@x.com"

	w := f.do(httptest.NewRequest(http.MethodPost, "/auth/register",
		strings.NewReader(`{"email":"a@x.com","password":"correct-horse"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, want 201", w.Code)
	}

	w = f.do(httptest.NewRequest(http.MethodPost, "/auth/login",
		strings.NewReader(`{"email":"a@x.com","password":"correct-horse"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}

	stateToken := f.beginOAuth(t)
	w = f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state="+stateToken+"&code=authcode", nil))
	if loc := w.Header().Get("Location"); loc != successPath {
		t.Fatalf("callback redirect = %q", loc)
	}

	accounts, identities := f.accounts.Counts()
	if accounts != 1 {
		t.Errorf("accounts = %d, want 1", accounts)
	}
	if identities != 1 {
		t.Errorf("identities = %d, want 1", identities)
	}
}

func TestLogout_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	stateToken := f.beginOAuth(t)

	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state="+stateToken+"&code=authcode", nil))
	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("no session cookie")
	}

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie.Value})
	if w := f.do(logout); w.Code != http.StatusNoContent {
		t.Fatalf("first logout status = %d, want 204", w.Code)
	}
	if len(f.sessions.sessions) != 0 {
		t.Fatal("session not deleted")
	}

	again := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	again.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie.Value})
	if w := f.do(again); w.Code != http.StatusNoContent {
		t.Fatalf("second logout status = %d, want 204", w.Code)
	}
}

func TestProtectedRoutes(t *testing.T) {
	f := newFixture(t)

	if w := f.do(httptest.NewRequest(http.MethodGet, "/api/me", nil)); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated /api/me status = %d, want 401", w.Code)
	}

	stateToken := f.beginOAuth(t)
	w := f.do(httptest.NewRequest(http.MethodGet,
		"/oauth/google/callback?state="+stateToken+"&code=authcode", nil))
	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("no session cookie")
	}

	me := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	me.AddCookie(&http.Cookie{Name: session.CookieName, Value: cookie.Value})
	res := f.do(me)
	if res.Code != http.StatusOK {
		t.Fatalf("/api/me status = %d, want 200", res.Code)
	}
	if !strings.Contains(res.Body.String(), "user@example.com") {
		t.Errorf("/api/me body = %s, want email present", res.Body.String())
	}
}
