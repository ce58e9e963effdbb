// Package facebook exchanges a federated authorization code for the
// end-user's verified profile via the Facebook Graph API.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTokenURL   = "https://graph.facebook.com/v2.3/oauth/access_token"
	defaultProfileURL = "https://graph.facebook.com/me"
)

// ErrDenied marks a non-success response from the provider (bad or expired
// code, revoked app, ...). Callers map it to an unauthorized grant without
// leaking the provider's own error detail.
var ErrDenied = fmt.Errorf("facebook: provider denied the request")

type Provider struct {
	AppID       string
	AppSecret   string
	RedirectURI string

	TokenURL   string
	ProfileURL string

	http *http.Client
}

type Profile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func New(appID, appSecret, redirectURI string, timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		AppID:       appID,
		AppSecret:   appSecret,
		RedirectURI: redirectURI,
		TokenURL:    defaultTokenURL,
		ProfileURL:  defaultProfileURL,
		http:        &http.Client{Timeout: timeout},
	}
}

// ExchangeCode trades the authorization code for a provider access token.
func (p *Provider) ExchangeCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("code", code)
	q.Set("client_id", p.AppID)
	q.Set("client_secret", p.AppSecret)
	q.Set("redirect_uri", p.RedirectURI)

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := p.get(ctx, p.TokenURL, q, &body); err != nil {
		return "", err
	}
	return body.AccessToken, nil
}

// FetchProfile loads email and name for the provider access token. The
// provider may omit email; the caller decides what that means.
func (p *Provider) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	q := url.Values{}
	q.Set("access_token", accessToken)
	q.Set("fields", "email,first_name,last_name")

	var prof Profile
	if err := p.get(ctx, p.ProfileURL, q, &prof); err != nil {
		return nil, err
	}
	return &prof, nil
}

func (p *Provider) get(ctx context.Context, rawURL string, q url.Values, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrDenied, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
