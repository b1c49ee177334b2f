// Package oauth encapsulates outbound HTTP calls to Google's OAuth2
// endpoints.
package oauth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainoauth "github.com/socialimageapp/authentication-api-service/internal/domain/oauth"
)

const (
	authorizeURL = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenURL     = "https://oauth2.googleapis.com/token"
	userInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"
)

// Client encapsulates the provider round trips of the login flow.
type Client interface {
	Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (domainoauth.TokenResponse, error)
	FetchUserInfo(ctx context.Context, accessToken string) (domainoauth.UserInfo, error)
}

// Config carries the registered Google OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// AuthURL builds the Google authorization redirect for a persisted state,
// attaching the S256 PKCE challenge derived from the code verifier.
func AuthURL(cfg Config, state domainoauth.State) string {
	challenge := sha256.Sum256([]byte(state.CodeVerifier))

	params := url.Values{}
	params.Set("client_id", cfg.ClientID)
	params.Set("redirect_uri", cfg.RedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", "openid email profile")
	params.Set("state", state.State)
	params.Set("nonce", state.Nonce)
	params.Set("code_challenge", base64.RawURLEncoding.EncodeToString(challenge[:]))
	params.Set("code_challenge_method", "S256")
	params.Set("access_type", "offline")

	return authorizeURL + "?" + params.Encode()
}

// HTTPClient is the default HTTP implementation of Client.
type HTTPClient struct {
	cfg        Config
	tokenURL   string
	userURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs the default Google client.
func NewHTTPClient(cfg Config, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{cfg: cfg, tokenURL: tokenURL, userURL: userInfoURL, httpClient: client}
}

// WithEndpoints overrides the provider endpoints. Used in tests.
func (c *HTTPClient) WithEndpoints(token, userinfo string) *HTTPClient {
	c.tokenURL = token
	c.userURL = userinfo
	return c
}

// Exchange performs the authorization code token exchange.
func (c *HTTPClient) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (domainoauth.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", c.cfg.ClientID)
	data.Set("client_secret", c.cfg.ClientSecret)
	data.Set("redirect_uri", redirectURI)
	if strings.TrimSpace(codeVerifier) != "" {
		data.Set("code_verifier", codeVerifier)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return domainoauth.TokenResponse{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainoauth.TokenResponse{}, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domainoauth.TokenResponse{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return domainoauth.TokenResponse{}, fmt.Errorf("%w: token exchange status=%d", domainoauth.ErrTokenInvalid, resp.StatusCode)
	}

	var token struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		ExpiresIn    int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &token); err != nil {
		return domainoauth.TokenResponse{}, fmt.Errorf("decode token response: %w", err)
	}

	return domainoauth.TokenResponse{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		IDToken:      token.IDToken,
		TokenType:    token.TokenType,
		Scope:        token.Scope,
		ExpiresIn:    token.ExpiresIn,
	}, nil
}

// FetchUserInfo loads the OpenID Connect userinfo profile.
func (c *HTTPClient) FetchUserInfo(ctx context.Context, accessToken string) (domainoauth.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL, nil)
	if err != nil {
		return domainoauth.UserInfo{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domainoauth.UserInfo{}, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domainoauth.UserInfo{}, fmt.Errorf("read userinfo: %w", err)
	}
	if resp.StatusCode >= 300 {
		return domainoauth.UserInfo{}, fmt.Errorf("%w: userinfo status=%d", domainoauth.ErrTokenInvalid, resp.StatusCode)
	}

	var info domainoauth.UserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return domainoauth.UserInfo{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if strings.TrimSpace(info.Email) == "" {
		return domainoauth.UserInfo{}, fmt.Errorf("%w: userinfo missing email", domainoauth.ErrTokenInvalid)
	}
	return info, nil
}
