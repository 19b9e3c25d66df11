// Copyright (c) 2026 HMCTS
// Licensed under the MIT License. See LICENSE file in the project root for details.

package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/hmcts/acr-transfer/internal/middleware"
	"github.com/hmcts/acr-transfer/internal/pkg/logger"
	"github.com/hmcts/acr-transfer/internal/service"
	"github.com/hmcts/acr-transfer/internal/types"
)

const stateCookieName = "acr_transfer_oauth_state"

// AuthHandler handles OIDC login, callback, logout, and user info requests.
// When OIDC is disabled all endpoints respond accordingly and the auth
// middleware passes every request through.
type AuthHandler struct {
	cfg      *types.OIDCConfig
	sessions *service.SessionService
	logger   logger.Logger

	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewAuthHandler creates an AuthHandler. When OIDC is enabled it discovers the
// provider configuration from the issuer URL.
func NewAuthHandler(cfg *types.OIDCConfig, sessions *service.SessionService, logger logger.Logger) (*AuthHandler, error) {
	h := &AuthHandler{
		cfg:      cfg,
		sessions: sessions,
		logger:   logger,
	}

	if !cfg.Enabled {
		return h, nil
	}

	provider, err := oidc.NewProvider(context.Background(), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider %s: %w", cfg.Issuer, err)
	}

	h.provider = provider
	h.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	h.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	return h, nil
}

// Login redirects the client to the OIDC provider's authorization endpoint.
// A random state value is stored in a short-lived cookie for CSRF protection.
func (h *AuthHandler) Login(c *gin.Context) {
	if !h.cfg.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "OIDC authentication is not enabled"})
		return
	}

	state, err := randomState()
	if err != nil {
		h.logger.Error("Failed to generate OAuth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.SetCookie(stateCookieName, state, 300, "/", "", false, true)
	c.Redirect(http.StatusFound, h.oauth2Config.AuthCodeURL(state))
}

// Callback handles the OIDC provider's redirect: it validates the state,
// exchanges the code, verifies the ID token, and creates a session.
func (h *AuthHandler) Callback(c *gin.Context) {
	if !h.cfg.Enabled {
		c.JSON(http.StatusNotFound, gin.H{"error": "OIDC authentication is not enabled"})
		return
	}

	expectedState, err := c.Cookie(stateCookieName)
	if err != nil || c.Query("state") != expectedState {
		h.logger.Error("OAuth state mismatch in callback")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", false, true)

	token, err := h.oauth2Config.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Error("Failed to exchange authorization code: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		h.logger.Error("Token response did not include an id_token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No id_token in token response"})
		return
	}

	idToken, err := h.verifier.Verify(c.Request.Context(), rawIDToken)
	if err != nil {
		h.logger.Error("Failed to verify ID token: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid ID token"})
		return
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		h.logger.Error("Failed to parse ID token claims: %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid ID token claims"})
		return
	}

	sessionID := h.sessions.CreateSession(claims.Email)
	c.SetCookie(middleware.SessionCookieName, sessionID, 0, "/", "", false, true)

	h.logger.Info("User logged in: %s", claims.Email)
	c.Redirect(http.StatusFound, "/")
}

// Logout deletes the current session and clears the session cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil {
		h.sessions.DeleteSession(cookie)
	}
	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// UserInfo returns the current session's user information.
func (h *AuthHandler) UserInfo(c *gin.Context) {
	if !h.cfg.Enabled {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	cookie, err := c.Cookie(middleware.SessionCookieName)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}

	session := h.sessions.GetSession(cookie)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"email":         session.Email,
	})
}

// randomState generates a URL-safe random state string.
func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
