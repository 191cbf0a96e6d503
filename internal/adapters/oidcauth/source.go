package oidcauth

// Package oidcauth verifies credentials against an OIDC identity provider
// using the resource-owner password grant. It is the enterprise-SSO mode of
// the credential source; role and display-name claims are extracted with
// configurable JMESPath expressions since claim layout varies per IdP.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/gestia/sessiond/internal/domain/auth"
	"github.com/gestia/sessiond/internal/ports"
)

var _ ports.CredentialSource = (*Source)(nil)

// Config holds configuration for the OIDC credential source.
type Config struct {
	ClientID     string
	ClientSecret string
	IssuerURL    string
	Scope        string

	// RoleExpr is a JMESPath expression over the ID token claims that must
	// yield one of the application roles. NameExpr and AvatarExpr are
	// optional expressions for display name and avatar.
	RoleExpr   string
	NameExpr   string
	AvatarExpr string

	HTTPClient *http.Client // Optional, defaults to a 30s-timeout client
}

// Source implements the CredentialSource port against an OIDC provider.
type Source struct {
	oauth    *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	client   *http.Client

	roleExpr   string
	nameExpr   string
	avatarExpr string
}

// NewSource creates an OIDC credential source. It performs a single discovery
// fetch against the issuer and validates the claim expressions up front.
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("oidc auth: client ID is required")
	}
	if cfg.IssuerURL == "" {
		return nil, errors.New("oidc auth: issuer URL is required")
	}
	if cfg.RoleExpr == "" {
		return nil, errors.New("oidc auth: role expression is required")
	}
	for _, expr := range []string{cfg.RoleExpr, cfg.NameExpr, cfg.AvatarExpr} {
		if expr == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("oidc auth: compile claim expression %q: %w", expr, err)
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	discoveryCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	provider, err := gooidc.NewProvider(discoveryCtx, strings.TrimSuffix(cfg.IssuerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc auth: discover provider: %w", err)
	}

	scopes := strings.Fields(cfg.Scope)
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	return &Source{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
		verifier:   provider.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
		client:     httpClient,
		roleExpr:   cfg.RoleExpr,
		nameExpr:   cfg.NameExpr,
		avatarExpr: cfg.AvatarExpr,
	}, nil
}

// Verify implements ports.CredentialSource via the password grant. A rejected
// grant is the normal negative outcome; transport and token-shape failures
// are errors.
func (s *Source) Verify(ctx context.Context, email, password string) (domainauth.Principal, bool, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.client)

	token, err := s.oauth.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			(retrieveErr.Response.StatusCode == http.StatusBadRequest ||
				retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return domainauth.Principal{}, false, nil
		}
		return domainauth.Principal{}, false, fmt.Errorf("password grant: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return domainauth.Principal{}, false, errors.New("token response missing id_token")
	}

	idToken, err := s.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return domainauth.Principal{}, false, fmt.Errorf("verify id_token: %w", err)
	}

	var claims map[string]any
	if claimsErr := idToken.Claims(&claims); claimsErr != nil {
		return domainauth.Principal{}, false, fmt.Errorf("decode claims: %w", claimsErr)
	}

	principal, err := s.principalFromClaims(idToken.Subject, email, claims)
	if err != nil {
		return domainauth.Principal{}, false, err
	}
	return principal, true, nil
}

func (s *Source) principalFromClaims(subject, email string, claims map[string]any) (domainauth.Principal, error) {
	roleVal, err := jmespath.Search(s.roleExpr, claims)
	if err != nil {
		return domainauth.Principal{}, fmt.Errorf("extract role claim: %w", err)
	}
	roleStr, ok := roleVal.(string)
	if !ok {
		return domainauth.Principal{}, fmt.Errorf("role claim is %T, want string", roleVal)
	}
	role := domainauth.Role(roleStr)
	if !role.Valid() {
		return domainauth.Principal{}, fmt.Errorf("role claim %q is not an application role", roleStr)
	}

	principal := domainauth.Principal{
		ID:    subject,
		Email: email,
		Role:  role,
	}
	if v, ok := claims["email"].(string); ok && v != "" {
		principal.Email = v
	}
	principal.Name = searchString(s.nameExpr, claims)
	principal.AvatarURL = searchString(s.avatarExpr, claims)
	return principal, nil
}

func searchString(expr string, claims map[string]any) string {
	if expr == "" {
		return ""
	}
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return ""
	}
	str, _ := v.(string)
	return str
}
