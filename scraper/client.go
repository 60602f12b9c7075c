package scraper

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/SPCU/KairosDB/kairosdb"
)

// TokenSource returns a client credentials token provider for the config.
func (tc TokenConfig) TokenSource(ctx context.Context) kairosdb.TokenProvider {
	cc := clientcredentials.Config{
		ClientID:     tc.ClientID,
		ClientSecret: tc.ClientSecret,
		TokenURL:     tc.TokenURL,
		Scopes:       tc.Scopes,
	}
	return kairosdb.OAuth2TokenProvider{Source: cc.TokenSource(ctx)}
}

// NewClient builds the KairosDB client described by the global section.
func (gc GlobalConfig) NewClient(ctx context.Context) (*kairosdb.Client, error) {
	var opts []kairosdb.Option
	if gc.Timeout > 0 {
		opts = append(opts, kairosdb.WithHTTPClient(&http.Client{Timeout: gc.Timeout}))
	}
	if gc.OAuth2 {
		opts = append(opts, kairosdb.WithOAuth2(gc.Token.TokenSource(ctx)))
	}

	return kairosdb.New(gc.URL, opts...)
}
