// Package oidctest runs an in-process OpenID Connect issuer supporting the
// password and refresh token grants, for testing identity backends.
package oidctest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RouteWellKnownOpenIDConfig = "/.well-known/openid-configuration"
	RouteWellKnownJWKS         = "/.well-known/jwks.json"
	RouteToken                 = "/oauth2/token"
)

// Issuer is a test identity provider. Every token it issues is a JWT signed
// with its key pair.
type Issuer struct {
	*httptest.Server

	ClientID string
	key      *KeyPair

	mu            sync.Mutex
	passwords     map[string]string
	refreshTokens map[string]string // refresh token -> username
	rotateRefresh bool
	idTokenAud    string
	tokenExpiry   time.Duration
	tokenGrants   []string
	NowTimeFunc   func() time.Time
}

// NewIssuer starts an issuer for clientID that is closed when the test ends.
func NewIssuer(t testing.TB, clientID string) *Issuer {
	t.Helper()
	key, err := GenerateKeyPair(uuid.NewString())
	if err != nil {
		t.Fatalf("oidctest: %v", err)
	}

	iss := &Issuer{
		ClientID:      clientID,
		key:           key,
		passwords:     map[string]string{},
		refreshTokens: map[string]string{},
		tokenExpiry:   time.Hour,
		NowTimeFunc:   time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(RouteWellKnownOpenIDConfig, iss.wellKnownOpenIDConfig)
	mux.HandleFunc(RouteWellKnownJWKS, iss.jwks)
	mux.HandleFunc(RouteToken, iss.token)
	iss.Server = httptest.NewServer(mux)
	t.Cleanup(iss.Close)
	return iss
}

// AddUser registers a user the password grant accepts.
func (iss *Issuer) AddUser(username, password string) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.passwords[username] = password
}

// RotateRefreshTokens makes the refresh grant issue a new refresh token.
func (iss *Issuer) RotateRefreshTokens(rotate bool) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.rotateRefresh = rotate
}

// SetIDTokenAudience overrides the aud claim of issued ID tokens.
func (iss *Issuer) SetIDTokenAudience(aud string) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.idTokenAud = aud
}

// SetTokenExpiry sets the lifetime of issued access and ID tokens.
func (iss *Issuer) SetTokenExpiry(expiry time.Duration) {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.tokenExpiry = expiry
}

// RevokeRefreshTokens forgets every refresh token issued so far.
func (iss *Issuer) RevokeRefreshTokens() {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	iss.refreshTokens = map[string]string{}
}

// Grants returns the grant_type of every token request received.
func (iss *Issuer) Grants() []string {
	iss.mu.Lock()
	defer iss.mu.Unlock()
	return append([]string(nil), iss.tokenGrants...)
}

func (iss *Issuer) wellKnownOpenIDConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                iss.URL,
		"authorization_endpoint":                iss.URL + "/oauth2/authorize",
		"token_endpoint":                        iss.URL + RouteToken,
		"jwks_uri":                              iss.URL + RouteWellKnownJWKS,
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{jwtlib.SigningMethodRS256.Alg()},
		"grant_types_supported":                 []string{"password", "refresh_token"},
	})
}

func (iss *Issuer) jwks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, iss.key.JWKS())
}

func (iss *Issuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, "invalid_request", "Malformed form body", http.StatusBadRequest)
		return
	}

	clientID := r.PostForm.Get("client_id")
	if user, _, ok := r.BasicAuth(); ok {
		clientID = user
	}
	if clientID != iss.ClientID {
		writeJSONError(w, "invalid_client", "Unknown client", http.StatusUnauthorized)
		return
	}

	grant := r.PostForm.Get("grant_type")
	iss.mu.Lock()
	iss.tokenGrants = append(iss.tokenGrants, grant)
	iss.mu.Unlock()

	switch grant {
	case "password":
		username := r.PostForm.Get("username")
		iss.mu.Lock()
		want, found := iss.passwords[username]
		iss.mu.Unlock()
		if !found || want != r.PostForm.Get("password") {
			writeJSONError(w, "invalid_grant", "Invalid credentials", http.StatusBadRequest)
			return
		}
		iss.issue(w, username, "")

	case "refresh_token":
		refreshToken := r.PostForm.Get("refresh_token")
		iss.mu.Lock()
		username, found := iss.refreshTokens[refreshToken]
		rotate := iss.rotateRefresh
		if found && rotate {
			delete(iss.refreshTokens, refreshToken)
		}
		iss.mu.Unlock()
		if !found {
			writeJSONError(w, "invalid_grant", "Refresh token is invalid or expired", http.StatusBadRequest)
			return
		}
		if rotate {
			refreshToken = ""
		}
		iss.issue(w, username, refreshToken)

	default:
		writeJSONError(w, "unsupported_grant_type", "Grant type not supported", http.StatusBadRequest)
	}
}

// issue writes a token response. With reuseRefresh set the response omits the
// refresh token, as issuers that do not rotate them do.
func (iss *Issuer) issue(w http.ResponseWriter, username, reuseRefresh string) {
	iss.mu.Lock()
	expiry := iss.tokenExpiry
	aud := iss.idTokenAud
	iss.mu.Unlock()
	if aud == "" {
		aud = iss.ClientID
	}

	now := iss.NowTimeFunc()
	exp := now.Add(expiry)

	accessToken, err := iss.key.Sign(jwtlib.MapClaims{
		"iss":       iss.URL,
		"sub":       subject(username),
		"client_id": iss.ClientID,
		"username":  username,
		"token_use": "access",
		"scope":     "openid profile email",
		"iat":       now.Unix(),
		"exp":       exp.Unix(),
		"jti":       uuid.NewString(),
	})
	if err != nil {
		writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return
	}
	idToken, err := iss.key.Sign(jwtlib.MapClaims{
		"iss":                iss.URL,
		"sub":                subject(username),
		"aud":                aud,
		"email":              username + "@example.com",
		"preferred_username": username,
		"token_use":          "id",
		"iat":                now.Unix(),
		"exp":                exp.Unix(),
		"jti":                uuid.NewString(),
	})
	if err != nil {
		writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"access_token": accessToken,
		"id_token":     idToken,
		"token_type":   "Bearer",
		"expires_in":   int(expiry.Seconds()),
	}
	if reuseRefresh == "" {
		refreshToken := uuid.NewString()
		iss.mu.Lock()
		iss.refreshTokens[refreshToken] = username
		iss.mu.Unlock()
		resp["refresh_token"] = refreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func subject(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(username)).String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
