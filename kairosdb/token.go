package kairosdb

import (
	"golang.org/x/oauth2"
)

//go:generate mockgen -source=token.go -destination=mock/token.go -package=mock

// TokenProvider supplies the bearer token for authenticated clients.
type TokenProvider interface {
	Token() (string, error)
}

// TokenProviderFunc adapts a plain function to TokenProvider.
type TokenProviderFunc func() (string, error)

// Token implements TokenProvider.
func (f TokenProviderFunc) Token() (string, error) {
	return f()
}

// OAuth2TokenProvider takes access tokens from an oauth2.TokenSource.
type OAuth2TokenProvider struct {
	Source oauth2.TokenSource
}

// Token implements TokenProvider.
func (p OAuth2TokenProvider) Token() (string, error) {
	tok, err := p.Source.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
