package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/repository/sqlite"
	"github.com/sakif/microblog/internal/service"
)

// stubResolver serves canned profiles keyed by provider/code, standing in
// for the real OAuth round trip.
type stubResolver struct {
	profiles map[string]*auth.RemoteProfile
}

func (s *stubResolver) AuthURL(provider, state string) (string, error) {
	if !model.KnownProvider(provider) {
		return "", apperror.InvalidProvider(provider)
	}
	return "https://provider.example/" + provider + "/authorize?state=" + state, nil
}

func (s *stubResolver) Resolve(_ context.Context, provider, code string) (*auth.RemoteProfile, error) {
	if !model.KnownProvider(provider) {
		return nil, apperror.InvalidProvider(provider)
	}
	profile, ok := s.profiles[provider+"/"+code]
	if !ok {
		return nil, apperror.IdentityUnavailable(errors.New("code rejected"))
	}
	return profile, nil
}

type stubBilling struct {
	calls int
}

func (s *stubBilling) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	s.calls++
	return "cus_test", nil
}

// testApp is the handler layer mounted on the real router wiring, with
// the identity and billing edges stubbed out.
type testApp struct {
	router   *chi.Mux
	db       *sqlite.DB
	resolver *stubResolver
	billing  *stubBilling
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	passwords := auth.NewPasswordServiceForTest(4)
	tokens := auth.NewTokenService(db)
	resolver := &stubResolver{profiles: map[string]*auth.RemoteProfile{}}
	billingClient := &stubBilling{}

	accounts := service.NewAccountProvisioner(db, db, passwords, logger)
	billingProv := service.NewBillingProvisioner(db, billingClient, logger)
	authenticator := service.NewAuthenticator(accounts, billingProv, resolver, tokens, passwords, db, logger)
	tweetsSvc := service.NewTweetService(db, logger)

	authHandler := NewAuthHandler(authenticator, logger)
	tweetHandler := NewTweetHandler(tweetsSvc, logger)
	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	router := chi.NewRouter()
	router.Post("/register", authHandler.HandleRegister)
	router.Post("/login", authHandler.HandleLogin)
	router.Get("/auth/redirect/{provider}", authHandler.HandleProviderRedirect)
	router.Get("/auth/callback/{provider}", authHandler.HandleProviderCallback)
	router.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/me", authHandler.HandleMe)
		r.Put("/me/password", authHandler.HandleUpdatePassword)
	})
	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/tweets", tweetHandler.HandleList)
			r.Get("/tweets/{id}", tweetHandler.HandleGetByID)
		})
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/tweets", tweetHandler.HandleCreate)
			r.Delete("/tweets/{id}", tweetHandler.HandleDelete)
		})
	})

	return &testApp{router: router, db: db, resolver: resolver, billing: billingClient}
}

func (a *testApp) do(method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": []string{"Bearer " + token}}
}

// registerAnn creates the standard test user and returns her token.
func (a *testApp) registerAnn(t *testing.T) string {
	t.Helper()
	rec := a.do(http.MethodPost, "/register",
		`{"name":"Ann Example","username":"ann","email":"ann@example.com","password":"P@ssw0rd1"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("register: decoding response: %v", err)
	}
	return resp.Token
}

func TestHandleLogin(t *testing.T) {
	app := newTestApp(t)
	app.registerAnn(t)

	rec := app.do(http.MethodPost, "/login",
		`{"email":"ann@example.com","password":"P@ssw0rd1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string      `json:"message"`
		Token   string      `json:"token"`
		User    *model.User `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Logged in Successfully.", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "ann@example.com", resp.User.Email)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestHandleLoginWrongPassword(t *testing.T) {
	app := newTestApp(t)
	app.registerAnn(t)

	rec := app.do(http.MethodPost, "/login",
		`{"email":"ann@example.com","password":"Wr0ng-pass"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_credentials", resp.Error)
	assert.Equal(t, "Invalid Credentials", resp.Message)
}

func TestHandleLoginUnknownEmailSameResponse(t *testing.T) {
	app := newTestApp(t)
	app.registerAnn(t)

	wrongPassword := app.do(http.MethodPost, "/login",
		`{"email":"ann@example.com","password":"Wr0ng-pass"}`, nil)
	unknownEmail := app.do(http.MethodPost, "/login",
		`{"email":"ghost@example.com","password":"Wr0ng-pass"}`, nil)

	// Identical status and body: the response must not leak which
	// emails are registered.
	assert.Equal(t, wrongPassword.Code, unknownEmail.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestHandleLoginValidation(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/login", `{"email":"not-an-email","password":"weak"}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The given data was invalid.", resp.Message)
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "password")
}

func TestHandleLoginMalformedJSON(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/login", `{"email": `, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleRegister(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodPost, "/register",
		`{"name":"Ann Example","username":"ann","email":"ann@example.com","password":"P@ssw0rd1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message string `json:"message"`
		Token   string `json:"token"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "User Registered", resp.Message)

	// The registration token is immediately usable.
	me := app.do(http.MethodGet, "/me", "", bearer(resp.Token))
	assert.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"ann@example.com"`)
}

func TestHandleRegisterDuplicateUsername(t *testing.T) {
	app := newTestApp(t)
	app.registerAnn(t)

	rec := app.do(http.MethodPost, "/register",
		`{"name":"Another Ann","username":"ann","email":"other@example.com","password":"P@ssw0rd1"}`, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Fields, "username")
}

func TestHandleProviderRedirect(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/auth/redirect/github", "", nil)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://provider.example/github/authorize")

	cookies := rec.Result().Cookies()
	var state string
	for _, c := range cookies {
		if c.Name == stateCookie {
			state = c.Value
			assert.True(t, c.HttpOnly, "state cookie must be HttpOnly")
		}
	}
	assert.NotEmpty(t, state, "redirect must set the state cookie")
	assert.Contains(t, location, "state="+state)
}

func TestHandleProviderRedirectUnknownProvider(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/auth/redirect/myspace", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "no state cookie for a rejected provider")
}

// completeOAuth walks the full redirect → callback flow and returns the
// callback response.
func (a *testApp) completeOAuth(t *testing.T, provider, code string) *httptest.ResponseRecorder {
	t.Helper()

	redirect := a.do(http.MethodGet, "/auth/redirect/"+provider, "", nil)
	if redirect.Code != http.StatusTemporaryRedirect {
		t.Fatalf("redirect: status %d", redirect.Code)
	}
	var state *http.Cookie
	for _, c := range redirect.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}
	if state == nil {
		t.Fatal("redirect did not set the state cookie")
	}

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback/"+provider+"?code="+code+"&state="+state.Value, nil)
	req.AddCookie(state)
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleProviderCallback(t *testing.T) {
	app := newTestApp(t)
	app.resolver.profiles["github/good-code"] = &auth.RemoteProfile{
		RemoteID: "123", Email: "bob@example.com", Name: "Bob",
	}

	rec := app.completeOAuth(t, "github", "good-code")

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Message             string      `json:"message"`
		Token               string      `json:"token"`
		User                *model.User `json:"user"`
		BillingCustomerID   string      `json:"billingCustomerId"`
		SocialAccountLinked *bool       `json:"socialAccountLinked"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Logged in Successfully.", resp.Message)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Bob", resp.User.Name)
	assert.Equal(t, "cus_test", resp.BillingCustomerID)
	if assert.NotNil(t, resp.SocialAccountLinked) {
		assert.False(t, *resp.SocialAccountLinked, "first login links fresh")
	}

	// The user and link were provisioned.
	user, err := app.db.GetUserByEmail(context.Background(), "bob@example.com")
	assert.NoError(t, err)
	link, err := app.db.GetSocialAccount(context.Background(), "github", "123")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, link.UserID)
}

func TestHandleProviderCallbackRepeatLogin(t *testing.T) {
	app := newTestApp(t)
	app.resolver.profiles["github/good-code"] = &auth.RemoteProfile{
		RemoteID: "123", Email: "bob@example.com", Name: "Bob",
	}

	app.completeOAuth(t, "github", "good-code")
	rec := app.completeOAuth(t, "github", "good-code")

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SocialAccountLinked *bool `json:"socialAccountLinked"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	if assert.NotNil(t, resp.SocialAccountLinked) {
		assert.True(t, *resp.SocialAccountLinked, "repeat login finds the link")
	}
	assert.Equal(t, 1, app.billing.calls, "billing customer is created once")
}

func TestHandleProviderCallbackStateMismatch(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback/github?code=x&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "real-state"})
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_state")
}

func TestHandleProviderCallbackMissingCookie(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(http.MethodGet, "/auth/callback/github?code=x&state=s", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_state")
}

func TestHandleProviderCallbackUserDenied(t *testing.T) {
	app := newTestApp(t)

	redirect := app.do(http.MethodGet, "/auth/redirect/github", "", nil)
	var state *http.Cookie
	for _, c := range redirect.Result().Cookies() {
		if c.Name == stateCookie {
			state = c
		}
	}

	req := httptest.NewRequest(http.MethodGet,
		"/auth/callback/github?error=access_denied&state="+state.Value, nil)
	req.AddCookie(state)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "identity_unavailable")
}

func TestHandleProviderCallbackUnknownProvider(t *testing.T) {
	app := newTestApp(t)

	// A direct hit with no state cookie at all: the allow-list check
	// comes before the state check, so this is a 422, not a 400.
	rec := app.do(http.MethodGet, "/auth/callback/myspace?code=x&state=s", "", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Error)
	assert.Contains(t, resp.Fields, "provider")

	// Nothing was provisioned along the way.
	_, err := app.db.GetSocialAccount(context.Background(), "myspace", "x")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	assert.Zero(t, app.billing.calls)
}

func TestHandleProviderCallbackAllowListedBadCode(t *testing.T) {
	app := newTestApp(t)

	// twitter is allow-listed; a code the provider rejects is a 400.
	rec := app.completeOAuth(t, "twitter", "code")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "identity_unavailable")
}

func TestHandleLogout(t *testing.T) {
	app := newTestApp(t)
	token := app.registerAnn(t)

	rec := app.do(http.MethodPost, "/logout", "", bearer(token))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Logged out Successfully.")

	// Revocation is effective on the very next request.
	me := app.do(http.MethodGet, "/me", "", bearer(token))
	assert.Equal(t, http.StatusUnauthorized, me.Code)
}

func TestHandleMeRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusUnauthorized, app.do(http.MethodGet, "/me", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		app.do(http.MethodGet, "/me", "", bearer("not-a-real-token")).Code)
}

func TestHandleUpdatePassword(t *testing.T) {
	app := newTestApp(t)
	token := app.registerAnn(t)

	wrong := app.do(http.MethodPut, "/me/password",
		`{"oldPassword":"Wr0ng-pass","password":"N3w-P@ssw0rd"}`, bearer(token))
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)

	rec := app.do(http.MethodPut, "/me/password",
		`{"oldPassword":"P@ssw0rd1","password":"N3w-P@ssw0rd"}`, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Old password is dead, new one works, the session survives.
	oldLogin := app.do(http.MethodPost, "/login",
		`{"email":"ann@example.com","password":"P@ssw0rd1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, oldLogin.Code)
	newLogin := app.do(http.MethodPost, "/login",
		`{"email":"ann@example.com","password":"N3w-P@ssw0rd"}`, nil)
	assert.Equal(t, http.StatusOK, newLogin.Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/me", "", bearer(token)).Code)
}
