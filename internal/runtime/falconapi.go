// internal/runtime/falconapi.go — constructs the authenticated API client
package runtime

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-errors/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/joshsymonds/hostsweep/internal/config"
	"github.com/joshsymonds/hostsweep/internal/falcon"
	"github.com/joshsymonds/hostsweep/internal/rate"
)

// Version is stamped at build time.
var Version = "dev"

// NewFalconClient builds an API client whose HTTP transport exchanges client
// credentials at <base_url>/oauth2/token and refreshes the bearer token as it
// expires. An optional proxy from the config applies to both the token
// exchange and API calls.
func NewFalconClient(ctx context.Context, cfg *config.Config, limiter rate.Limiter, logger zerolog.Logger) (falcon.Client, error) {
	transport, err := newTransport(cfg.API.Proxy)
	if err != nil {
		return nil, err
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: transport})

	creds := clientcredentials.Config{
		ClientID:     cfg.API.ClientID,
		ClientSecret: cfg.API.ClientSecret,
		TokenURL:     cfg.API.BaseURL + "/oauth2/token",
	}
	httpc := creds.Client(ctx)

	return falcon.NewAPIClient(httpc, cfg.API.BaseURL, "hostsweep/"+Version, limiter, logger), nil
}

func newTransport(proxy string) (*http.Transport, error) {
	transport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		transport = &http.Transport{}
	}
	transport = transport.Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}
	return transport, nil
}
