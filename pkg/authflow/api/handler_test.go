package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyatra/auth-service/pkg/account"
	"github.com/voyatra/auth-service/pkg/authflow"
	"github.com/voyatra/auth-service/pkg/loginattempt"
	"github.com/voyatra/auth-service/pkg/notice"
	"github.com/voyatra/auth-service/pkg/otp"
	"github.com/voyatra/auth-service/pkg/password"
	"github.com/voyatra/auth-service/pkg/sessions"
	"github.com/voyatra/auth-service/pkg/tokens"
)

const jwtSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	nm, _, err := notice.NewMockNotificationManager()
	require.NoError(t, err)

	minter := tokens.NewMinter(jwtSecret, "auth-service", "auth-service", 15*time.Minute)
	deps := &authflow.ServiceDependencies{
		Store:         account.NewInMemStore(),
		Attempts:      loginattempt.NewService(loginattempt.NewInMemRepository(), nm),
		OTP:           otp.NewService(otp.NewInMemRepository(), nm),
		Sessions:      sessions.NewService(sessions.NewInMemRepository(), minter),
		PolicyChecker: password.NewDefaultPolicyChecker(nil),
	}

	handler := NewHandler(
		authflow.NewService(deps),
		jwtauth.New("HS256", []byte(jwtSecret), nil),
	)

	srv := httptest.NewServer(handler.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body interface{}, token string) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/125.0")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestRegisterAndLoginOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/register", RegisterRequest{
		Email:    "alice@example.com",
		Name:     "Alice",
		Password: "Abcdef1!",
	}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, body, "access_token")
	assert.Contains(t, body, "refresh_token")

	resp, body = postJSON(t, srv.URL+"/login", LoginRequest{
		Email:    "alice@example.com",
		Password: "Abcdef1!",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var accessToken, refreshToken string
	require.NoError(t, json.Unmarshal(body["access_token"], &accessToken))
	require.NoError(t, json.Unmarshal(body["refresh_token"], &refreshToken))

	t.Run("RefreshToken", func(t *testing.T) {
		resp, body := postJSON(t, srv.URL+"/token/refresh", RefreshRequest{RefreshToken: refreshToken}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "access_token")
	})

	t.Run("ListSessionsAuthenticated", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/sessions", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var infos []SessionResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
		assert.NotEmpty(t, infos)
	})

	t.Run("ListSessionsWithoutToken", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/sessions")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestLoginFailureEnvelope(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/login", LoginRequest{
		Email:    "nobody@example.com",
		Password: "Abcdef1!",
	}, "")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var code, message string
	require.NoError(t, json.Unmarshal(body["code"], &code))
	require.NoError(t, json.Unmarshal(body["message"], &message))
	assert.Equal(t, "INVALID_CREDENTIALS", code)
	assert.Equal(t, "invalid email or password", message)
}

func TestPasswordForgotIsGeneric(t *testing.T) {
	srv := newTestServer(t)

	resp, known := postJSON(t, srv.URL+"/password/forgot", ForgotPasswordRequest{Email: "alice@example.com"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, unknown := postJSON(t, srv.URL+"/password/forgot", ForgotPasswordRequest{Email: "nobody@example.com"}, "")
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	assert.Equal(t, known["message"], unknown["message"])
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/login", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
